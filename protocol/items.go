package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemNone is the code of the empty hand.
const ItemNone = "000"

// Item describes one entry of the weapon catalog.
type Item struct {
	Code string
	Name string
}

// Catalog lists every item a player can hold.
var Catalog = []Item{
	{Code: ItemNone, Name: "None"},
	{Code: "001", Name: "Rifle"},
	{Code: "002", Name: "Shotgun"},
	{Code: "003", Name: "Sniper"},
	{Code: "004", Name: "HeavyMachineGun"},
	{Code: "005", Name: "Laser"},
	{Code: "006", Name: "Grenade"},
	{Code: "007", Name: "RPG"},
}

// LookupItem finds a catalog entry by code.
func LookupItem(code string) (Item, bool) {
	for _, it := range Catalog {
		if it.Code == code {
			return it, true
		}
	}
	return Item{}, false
}

// FloorItem is an item lying in the shared world.
type FloorItem struct {
	Code string `json:"code" validate:"required"`
	X    int    `json:"x" validate:"gte=0"`
	Y    int    `json:"y" validate:"gte=0"`
}

// Encode renders the item as `code|x|y`.
func (f FloorItem) Encode() string {
	return f.Code + FieldSep + strconv.Itoa(f.X) + FieldSep + strconv.Itoa(f.Y)
}

// ParseFloorItem decodes `code|x|y`.
func ParseFloorItem(s string) (FloorItem, error) {
	items, err := ParseFloorItems(s)
	if err != nil {
		return FloorItem{}, err
	}
	if len(items) != 1 {
		return FloorItem{}, fmt.Errorf("%w: want one floor item, got %d", ErrMalformedFrame, len(items))
	}
	return items[0], nil
}

// EncodeFloorItems joins items as `code|x|y|code|x|y...`.
func EncodeFloorItems(items []FloorItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.Encode())
	}
	return strings.Join(parts, FieldSep)
}

// ParseFloorItems decodes a flat triple list. An empty string is an empty list.
func ParseFloorItems(s string) ([]FloorItem, error) {
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, FieldSep)
	if len(fields)%3 != 0 {
		return nil, fmt.Errorf("%w: floor item list has %d fields", ErrMalformedFrame, len(fields))
	}
	items := make([]FloorItem, 0, len(fields)/3)
	for i := 0; i < len(fields); i += 3 {
		x, err := parseInt(fields[i+1], "x")
		if err != nil {
			return nil, err
		}
		y, err := parseInt(fields[i+2], "y")
		if err != nil {
			return nil, err
		}
		items = append(items, FloorItem{Code: fields[i], X: x, Y: y})
	}
	return items, nil
}

// PickNotice tells a client that a floor item was taken. Own is true when the
// recipient is the one who picked it up.
type PickNotice struct {
	Code string
	Own  bool
	// HasPos is false for the bare `code` form.
	HasPos bool
	X, Y   int
}

// Encode renders `[-]code[|x|y]`.
func (n PickNotice) Encode() string {
	s := n.Code
	if !n.Own {
		s = "-" + s
	}
	if n.HasPos {
		s += FieldSep + strconv.Itoa(n.X) + FieldSep + strconv.Itoa(n.Y)
	}
	return s
}

// ParsePickNotice decodes `[-]code[|x|y]`.
func ParsePickNotice(payload string) (PickNotice, error) {
	if payload == "" {
		return PickNotice{}, fmt.Errorf("%w: empty pick notice", ErrMissingField)
	}
	var n PickNotice
	n.Own = true
	if payload[0] == '-' {
		n.Own = false
		payload = payload[1:]
	}
	fields := strings.Split(payload, FieldSep)
	n.Code = fields[0]
	if n.Code == "" {
		return PickNotice{}, fmt.Errorf("%w: empty item code", ErrMissingField)
	}
	switch len(fields) {
	case 1:
	case 3:
		var err error
		if n.X, err = parseInt(fields[1], "x"); err != nil {
			return PickNotice{}, err
		}
		if n.Y, err = parseInt(fields[2], "y"); err != nil {
			return PickNotice{}, err
		}
		n.HasPos = true
	default:
		return PickNotice{}, fmt.Errorf("%w: pick notice has %d fields", ErrMalformedFrame, len(fields))
	}
	return n, nil
}

// Matches reports whether the notice refers to item.
func (n PickNotice) Matches(item FloorItem) bool {
	if item.Code != n.Code {
		return false
	}
	return !n.HasPos || (item.X == n.X && item.Y == n.Y)
}

// PickupRequest is a client asking to take a floor item: `name,code|x|y`.
type PickupRequest struct {
	Name string
	Item FloorItem
}

// Encode renders the PickItem request.
func (r PickupRequest) Encode() string {
	return r.Name + ListSep + r.Item.Encode()
}

// ParsePickupRequest decodes a client PickItem request.
func ParsePickupRequest(payload string) (PickupRequest, error) {
	name, rest, ok := strings.Cut(payload, ListSep)
	if !ok || name == "" {
		return PickupRequest{}, fmt.Errorf("%w: pickup request %q", ErrMissingField, truncate(payload))
	}
	item, err := ParseFloorItem(rest)
	if err != nil {
		return PickupRequest{}, err
	}
	return PickupRequest{Name: name, Item: item}, nil
}

// InventorySlots is the number of bag slots every character has.
const InventorySlots = 6

// ItemPack is one character's bag: `name,slot0|slot1|...`. Empty slots are "".
type ItemPack struct {
	Name  string
	Slots []string
}

// Encode renders the RequestCharacterItem reply.
func (p ItemPack) Encode() string {
	return p.Name + ListSep + strings.Join(p.Slots, FieldSep)
}

// ParseItemPack decodes a bag reply. Slots are kept as sent.
func ParseItemPack(payload string) (ItemPack, error) {
	name, rest, ok := strings.Cut(payload, ListSep)
	if !ok || name == "" {
		return ItemPack{}, fmt.Errorf("%w: item pack %q", ErrMissingField, truncate(payload))
	}
	return ItemPack{Name: name, Slots: strings.Split(rest, FieldSep)}, nil
}
