package server

import (
	"errors"
	"fmt"

	"dungeonsync/logger"
	"dungeonsync/protocol"
	"dungeonsync/store"
)

var (
	ErrBadSlot       = errors.New("server: slot out of range")
	ErrSlotEmpty     = errors.New("server: slot is empty")
	ErrInventoryFull = errors.New("server: inventory full")
)

// SendItemPack answers a bag request: from receives target's bag.
func (r *Registry) SendItemPack(from, target string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.players[target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotOnline, target)
	}
	r.sendLocked(from, protocol.CmdRequestCharacterItem, t.pack().Encode())
	return nil
}

// TakeSlot moves target's bag slot into from's first free slot. Both
// characters are queued for persisting and returned. from sees both bags afterwards;
// target sees its own.
func (r *Registry) TakeSlot(from, target string, slot int) (taker, giver store.Character, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if from == target {
		return store.Character{}, store.Character{}, fmt.Errorf("%w: %q cannot take from itself", ErrWrongPlayer, from)
	}
	f, ok := r.players[from]
	if !ok {
		return store.Character{}, store.Character{}, fmt.Errorf("%w: %q", ErrNotOnline, from)
	}
	t, ok := r.players[target]
	if !ok {
		return store.Character{}, store.Character{}, fmt.Errorf("%w: %q", ErrNotOnline, target)
	}
	if slot < 0 || slot >= len(t.Slots) {
		return store.Character{}, store.Character{}, fmt.Errorf("%w: %d", ErrBadSlot, slot)
	}
	code := t.Slots[slot]
	if code == "" {
		return store.Character{}, store.Character{}, fmt.Errorf("%w: %q slot %d", ErrSlotEmpty, target, slot)
	}
	if !f.stow(code) {
		return store.Character{}, store.Character{}, fmt.Errorf("%w: %q", ErrInventoryFull, from)
	}
	t.Slots[slot] = ""

	r.sendLocked(from, protocol.CmdRequestCharacterItem, t.pack().Encode())
	r.sendLocked(from, protocol.CmdRequestCharacterItem, f.pack().Encode())
	r.sendLocked(target, protocol.CmdRequestCharacterItem, t.pack().Encode())
	r.saveLocked(f, t)
	logger.Log.Infof("%q took %s from %q slot %d", from, code, target, slot)
	return f.Character.Clone(), t.Character.Clone(), nil
}

// DropSlot empties one of name's bag slots onto the floor where name stands.
func (r *Registry) DropSlot(name string, slot int) (store.Character, protocol.FloorItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[name]
	if !ok {
		return store.Character{}, protocol.FloorItem{}, fmt.Errorf("%w: %q", ErrNotOnline, name)
	}
	if slot < 0 || slot >= len(p.Slots) {
		return store.Character{}, protocol.FloorItem{}, fmt.Errorf("%w: %d", ErrBadSlot, slot)
	}
	code := p.Slots[slot]
	if code == "" {
		return store.Character{}, protocol.FloorItem{}, fmt.Errorf("%w: %q slot %d", ErrSlotEmpty, name, slot)
	}
	p.Slots[slot] = ""
	item := protocol.FloorItem{Code: code, X: p.X, Y: p.Y}
	r.spawnLocked(item)
	r.sendLocked(name, protocol.CmdRequestCharacterItem, p.pack().Encode())
	r.saveLocked(p)
	logger.Log.Infof("%q dropped %s from slot %d", name, code, slot)
	return p.Character.Clone(), item, nil
}
