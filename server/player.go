package server

import (
	"time"

	"github.com/google/uuid"

	"dungeonsync/protocol"
	"dungeonsync/store"
)

// ConnID identifies one accepted connection for its whole life.
type ConnID string

func newConnID() ConnID { return ConnID(uuid.NewString()) }

// Player is an online character and the connection it plays through.
type Player struct {
	store.Character
	Conn   ConnID
	Joined time.Time
}

// PlayerInfo is the admin view of one online player.
type PlayerInfo struct {
	protocol.PlayerState
	Slots  []string  `json:"slots"`
	Conn   ConnID    `json:"conn"`
	Addr   string    `json:"addr"`
	Joined time.Time `json:"joined"`
}

// pack is the player's bag as it travels on the wire.
func (p *Player) pack() protocol.ItemPack {
	return protocol.ItemPack{Name: p.Name, Slots: append([]string(nil), p.Slots...)}
}

// stow puts code in the first empty bag slot.
func (p *Player) stow(code string) bool {
	for i, s := range p.Slots {
		if s == "" {
			p.Slots[i] = code
			return true
		}
	}
	return false
}
