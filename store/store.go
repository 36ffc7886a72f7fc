// Package store persists character records between sessions.
package store

import (
	"context"
	"errors"
	"sync"

	"dungeonsync/protocol"
)

// ErrNotFound is returned by Load for a name that was never saved.
var ErrNotFound = errors.New("store: character not found")

// Character is the persisted record of one player.
type Character struct {
	Name  string   `json:"name"`
	HP    int      `json:"hp"`
	X     int      `json:"x"`
	Y     int      `json:"y"`
	Item  string   `json:"item"`
	Slots []string `json:"slots"`
}

// NewCharacter returns the record a first-time player starts with.
func NewCharacter(name string) Character {
	return Character{
		Name:  name,
		HP:    protocol.DefaultHealth,
		Slots: make([]string, protocol.InventorySlots),
	}
}

// State projects the record onto the wire player state.
func (c Character) State() protocol.PlayerState {
	return protocol.PlayerState{Name: c.Name, HP: c.HP, X: c.X, Y: c.Y, Item: c.Item}
}

// Normalize pads or trims the bag to the fixed slot count.
func (c *Character) Normalize() {
	slots := make([]string, protocol.InventorySlots)
	copy(slots, c.Slots)
	c.Slots = slots
	if c.HP < 0 {
		c.HP = 0
	}
}

// Clone returns a deep copy.
func (c Character) Clone() Character {
	out := c
	out.Slots = append([]string(nil), c.Slots...)
	return out
}

// Store loads and saves characters keyed by name.
type Store interface {
	Load(ctx context.Context, name string) (Character, error)
	Save(ctx context.Context, c Character) error
	Close() error
}

// LoadOrNew loads name, falling back to a fresh character when it was never saved.
func LoadOrNew(ctx context.Context, s Store, name string) (Character, error) {
	c, err := s.Load(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return NewCharacter(name), nil
	}
	if err != nil {
		return Character{}, err
	}
	c.Normalize()
	return c, nil
}

// Memory keeps characters in process memory.
type Memory struct {
	mu    sync.RWMutex
	chars map[string]Character
}

func NewMemory() *Memory {
	return &Memory{chars: make(map[string]Character)}
}

func (m *Memory) Load(_ context.Context, name string) (Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chars[name]
	if !ok {
		return Character{}, ErrNotFound
	}
	return c.Clone(), nil
}

func (m *Memory) Save(_ context.Context, c Character) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chars[c.Name] = c.Clone()
	return nil
}

func (m *Memory) Close() error { return nil }
