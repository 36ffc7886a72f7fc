package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// MaxNameLen bounds a player name in characters.
const MaxNameLen = 24

// DefaultHealth is the health of a fresh or respawned character.
const DefaultHealth = 100

// PlayerState is what every peer knows about one player.
type PlayerState struct {
	Name string `json:"name"`
	HP   int    `json:"hp"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Item string `json:"item"`
}

// DataPack serializes p as `name|hp|x|y|item`.
func (p PlayerState) DataPack() string {
	return strings.Join([]string{
		p.Name,
		strconv.Itoa(p.HP),
		strconv.Itoa(p.X),
		strconv.Itoa(p.Y),
		p.Item,
	}, FieldSep)
}

// ParseDataPack decodes a data pack. The trailing item field is optional.
func ParseDataPack(pack string) (PlayerState, error) {
	fields, err := Split(pack, FieldSep, 4)
	if err != nil {
		return PlayerState{}, err
	}
	var p PlayerState
	p.Name = fields[0]
	if p.Name == "" {
		return PlayerState{}, fmt.Errorf("%w: empty name in data pack", ErrMissingField)
	}
	if p.HP, err = parseInt(fields[1], "hp"); err != nil {
		return PlayerState{}, err
	}
	if p.X, err = parseInt(fields[2], "x"); err != nil {
		return PlayerState{}, err
	}
	if p.Y, err = parseInt(fields[3], "y"); err != nil {
		return PlayerState{}, err
	}
	if len(fields) > 4 {
		p.Item = fields[4]
	}
	p.SetHealth(p.HP)
	return p, nil
}

// SetHealth stores hp, clamping negatives to zero.
func (p *PlayerState) SetHealth(hp int) {
	if hp < 0 {
		hp = 0
	}
	p.HP = hp
}

// Respawn resets health, position and held item at once.
func (p *PlayerState) Respawn(hp, x, y int, item string) {
	p.SetHealth(hp)
	p.X, p.Y = x, y
	p.Item = item
}

// ValidName reports whether name can travel inside a frame unescaped. Frames
// are Windows-1252 on the wire, so every character must have a byte there.
func ValidName(name string) bool {
	if name == "" || len([]rune(name)) > MaxNameLen {
		return false
	}
	if strings.HasPrefix(name, "-") || strings.ContainsAny(name, ",|>") {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return false
		}
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return false
		}
	}
	return true
}
