package server

import (
	"errors"
	"fmt"

	"dungeonsync/logger"
	"dungeonsync/protocol"
	"dungeonsync/store"
)

var (
	ErrNoSuchItem = errors.New("server: no such floor item")
	ErrFloorFull  = errors.New("server: floor is full")
)

// FloorItems returns what is lying on the floor.
func (r *Registry) FloorItems() []protocol.FloorItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]protocol.FloorItem(nil), r.floor...)
}

// Spawn puts an item on the floor and tells everyone online. limit caps the
// floor size; zero means no cap.
func (r *Registry) Spawn(item protocol.FloorItem, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > 0 && len(r.floor) >= limit {
		return ErrFloorFull
	}
	r.spawnLocked(item)
	return nil
}

func (r *Registry) spawnLocked(item protocol.FloorItem) {
	r.floor = append(r.floor, item)
	r.m.IncSpawned()
	r.m.SetFloorItems(len(r.floor))
	r.broadcastLocked(protocol.CmdSpawnItem, item.Encode(), "")
	logger.Log.Debugf("spawned %s at (%d,%d)", item.Code, item.X, item.Y)
}

// ClearFloor removes every floor item. Clients learn about it through
// peer pickup notices.
func (r *Registry) ClearFloor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.floor)
	for _, it := range r.floor {
		r.broadcastLocked(protocol.CmdPickItem, protocol.PickNotice{Code: it.Code, HasPos: true, X: it.X, Y: it.Y}.Encode(), "")
	}
	r.floor = nil
	r.m.SetFloorItems(0)
	return n
}

// Pickup arbitrates a pickup request. The first request for an item wins:
// the item leaves the floor, goes into the picker's hand, and every client
// is told. The picker's previous weapon goes into the bag, or back on the
// floor when the bag is full.
func (r *Registry) Pickup(name string, item protocol.FloorItem) (store.Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[name]
	if !ok {
		return store.Character{}, fmt.Errorf("%w: %q", ErrNotOnline, name)
	}
	idx := -1
	for i, it := range r.floor {
		if it == item {
			idx = i
			break
		}
	}
	if idx < 0 {
		return store.Character{}, fmt.Errorf("%w: %s", ErrNoSuchItem, item.Encode())
	}
	r.floor = append(r.floor[:idx], r.floor[idx+1:]...)
	r.m.SetFloorItems(len(r.floor))
	r.m.IncPickedUp()

	notice := protocol.PickNotice{Code: item.Code, Own: true, HasPos: true, X: item.X, Y: item.Y}
	r.sendLocked(name, protocol.CmdPickItem, notice.Encode())
	notice.Own = false
	r.broadcastLocked(protocol.CmdPickItem, notice.Encode(), p.Conn)

	prev := p.Item
	p.Item = item.Code
	if prev != "" && prev != protocol.ItemNone {
		if p.stow(prev) {
			r.sendLocked(name, protocol.CmdRequestCharacterItem, p.pack().Encode())
		} else {
			r.spawnLocked(protocol.FloorItem{Code: prev, X: item.X, Y: item.Y})
		}
	}
	r.saveLocked(p)
	logger.Log.Debugf("%q picked up %s", name, item.Encode())
	return p.Character.Clone(), nil
}
