package server

import (
	"fmt"

	"dungeonsync/logger"
	"dungeonsync/protocol"
	"dungeonsync/store"
)

// HitResult is what a Hit did to its victim.
type HitResult struct {
	HP   int
	Died bool
	// Dropped is the weapon left where the victim died, if any.
	Dropped *protocol.FloorItem
}

// Hit applies damage to name. A victim brought to zero health drops its
// weapon where it stood and respawns at spawn with full health. The victim
// always gets its new health; a death also sends Respawn.
func (r *Registry) Hit(name string, damage int, spawn Point) (store.Character, HitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[name]
	if !ok {
		return store.Character{}, HitResult{}, fmt.Errorf("%w: %q", ErrNotOnline, name)
	}
	state := p.State()
	state.SetHealth(p.HP - damage)
	p.HP = state.HP
	res := HitResult{HP: p.HP}
	r.sendLocked(name, protocol.CmdHit, protocol.EncodeHealth(p.HP))

	if p.HP == 0 {
		res.Died = true
		r.m.IncDeaths()
		if p.Item != "" && p.Item != protocol.ItemNone {
			drop := protocol.FloorItem{Code: p.Item, X: p.X, Y: p.Y}
			res.Dropped = &drop
			r.spawnLocked(drop)
		}
		state.Respawn(protocol.DefaultHealth, spawn.X, spawn.Y, "")
		p.HP, p.X, p.Y, p.Item = state.HP, state.X, state.Y, state.Item
		r.sendLocked(name, protocol.CmdRespawn, protocol.RespawnInfo{HP: p.HP, X: p.X, Y: p.Y, Item: p.Item}.Encode())
		logger.Log.Infof("%q died and respawned at (%d,%d)", name, p.X, p.Y)
	}
	r.saveLocked(p)
	return p.Character.Clone(), res, nil
}
