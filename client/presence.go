package client

import (
	"sort"

	"dungeonsync/protocol"
)

// PresenceSet is a client's view of who is online. It is not safe for
// concurrent use; Session guards it with its mutex.
type PresenceSet struct {
	local     string
	players   map[string]*protocol.PlayerState
	confirmed map[string]bool
}

// Diff is what one reconciliation changed.
type Diff struct {
	Added   []protocol.PlayerState
	Updated []protocol.PlayerState
	Removed []string
}

func NewPresenceSet(local string) *PresenceSet {
	return &PresenceSet{
		local:     local,
		players:   make(map[string]*protocol.PlayerState),
		confirmed: make(map[string]bool),
	}
}

// SetLocal installs or replaces the local player's state.
func (ps *PresenceSet) SetLocal(p protocol.PlayerState) {
	p.Name = ps.local
	ps.players[ps.local] = &p
	ps.confirmed[ps.local] = true
}

// Local returns the local player for in-place mutation.
func (ps *PresenceSet) Local() (*protocol.PlayerState, bool) {
	p, ok := ps.players[ps.local]
	return p, ok
}

func (ps *PresenceSet) Get(name string) (protocol.PlayerState, bool) {
	p, ok := ps.players[name]
	if !ok {
		return protocol.PlayerState{}, false
	}
	return *p, true
}

func (ps *PresenceSet) Len() int { return len(ps.players) }

// Snapshot copies every known player, sorted by name.
func (ps *PresenceSet) Snapshot() []protocol.PlayerState {
	out := make([]protocol.PlayerState, 0, len(ps.players))
	for _, p := range ps.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reconcile applies one full sync listing every remote player. Known players
// are updated in place, new ones added, and remote players missing from the
// listing removed. The local player is never touched.
func (ps *PresenceSet) Reconcile(listed []protocol.PlayerState) Diff {
	for name := range ps.confirmed {
		if name != ps.local {
			ps.confirmed[name] = false
		}
	}

	var diff Diff
	for _, p := range listed {
		if p.Name == ps.local {
			continue
		}
		if cur, ok := ps.players[p.Name]; ok {
			*cur = p
			diff.Updated = append(diff.Updated, p)
		} else {
			np := p
			ps.players[p.Name] = &np
			diff.Added = append(diff.Added, p)
		}
		ps.confirmed[p.Name] = true
	}

	for name, ok := range ps.confirmed {
		if ok || name == ps.local {
			continue
		}
		delete(ps.confirmed, name)
		delete(ps.players, name)
		diff.Removed = append(diff.Removed, name)
	}
	sort.Strings(diff.Removed)
	return diff
}

// Clear forgets everyone, the local player included.
func (ps *PresenceSet) Clear() {
	ps.players = make(map[string]*protocol.PlayerState)
	ps.confirmed = make(map[string]bool)
}
