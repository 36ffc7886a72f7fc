package protocol

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Move is an Action payload: `name|x|y`.
type Move struct {
	Name string
	X, Y int
}

// Encode renders the Action payload.
func (m Move) Encode() string {
	return m.Name + FieldSep + strconv.Itoa(m.X) + FieldSep + strconv.Itoa(m.Y)
}

// ParseMove decodes an Action payload.
func ParseMove(payload string) (Move, error) {
	fields, err := Split(payload, FieldSep, 3)
	if err != nil {
		return Move{}, err
	}
	m := Move{Name: fields[0]}
	if m.X, err = parseInt(fields[1], "x"); err != nil {
		return Move{}, err
	}
	if m.Y, err = parseInt(fields[2], "y"); err != nil {
		return Move{}, err
	}
	return m, nil
}

// Fire describes one shot: `from|weapon|lifetime|x0|y0|x1|y1`.
type Fire struct {
	From     string
	Weapon   string
	Lifetime int
	X0, Y0   int
	X1, Y1   int
}

// Encode renders the FireSingle payload.
func (f Fire) Encode() string {
	return strings.Join([]string{
		f.From,
		f.Weapon,
		strconv.Itoa(f.Lifetime),
		strconv.Itoa(f.X0),
		strconv.Itoa(f.Y0),
		strconv.Itoa(f.X1),
		strconv.Itoa(f.Y1),
	}, FieldSep)
}

// ParseFire decodes a FireSingle payload.
func ParseFire(payload string) (Fire, error) {
	fields, err := Split(payload, FieldSep, 7)
	if err != nil {
		return Fire{}, err
	}
	f := Fire{From: fields[0], Weapon: fields[1]}
	nums := []*int{&f.Lifetime, &f.X0, &f.Y0, &f.X1, &f.Y1}
	names := []string{"lifetime", "x0", "y0", "x1", "y1"}
	for i, dst := range nums {
		if *dst, err = parseInt(fields[i+2], names[i]); err != nil {
			return Fire{}, err
		}
	}
	return f, nil
}

// HitReport is a client reporting damage it took: `name|damage`.
type HitReport struct {
	Name   string
	Damage int
}

// Encode renders the Hit report sent by a client.
func (h HitReport) Encode() string {
	return h.Name + FieldSep + strconv.Itoa(h.Damage)
}

// ParseHitReport decodes a client Hit report.
func ParseHitReport(payload string) (HitReport, error) {
	fields, err := Split(payload, FieldSep, 2)
	if err != nil {
		return HitReport{}, err
	}
	h := HitReport{Name: fields[0]}
	if h.Damage, err = parseInt(fields[1], "damage"); err != nil {
		return HitReport{}, err
	}
	return h, nil
}

// EncodeHealth renders the delivered Hit payload.
func EncodeHealth(hp int) string {
	return strconv.Itoa(hp)
}

// ParseHealth decodes the Hit payload the server delivers to its victim.
func ParseHealth(payload string) (int, error) {
	return parseInt(payload, "health")
}

// RespawnInfo is `hp|x|y|item`.
type RespawnInfo struct {
	HP   int
	X, Y int
	Item string
}

// Encode renders the Respawn payload.
func (r RespawnInfo) Encode() string {
	return strings.Join([]string{strconv.Itoa(r.HP), strconv.Itoa(r.X), strconv.Itoa(r.Y), r.Item}, FieldSep)
}

// ParseRespawn decodes a Respawn payload.
func ParseRespawn(payload string) (RespawnInfo, error) {
	fields, err := Split(payload, FieldSep, 4)
	if err != nil {
		return RespawnInfo{}, err
	}
	var r RespawnInfo
	if r.HP, err = parseInt(fields[0], "hp"); err != nil {
		return RespawnInfo{}, err
	}
	if r.X, err = parseInt(fields[1], "x"); err != nil {
		return RespawnInfo{}, err
	}
	if r.Y, err = parseInt(fields[2], "y"); err != nil {
		return RespawnInfo{}, err
	}
	r.Item = fields[3]
	return r, nil
}

// OnlineReply is the server's answer to Online: `datapack,floorItems`.
type OnlineReply struct {
	Player PlayerState
	Floor  []FloorItem
}

// Encode renders the Online reply.
func (o OnlineReply) Encode() string {
	return o.Player.DataPack() + ListSep + EncodeFloorItems(o.Floor)
}

// ParseOnlineReply decodes the self data pack. A malformed floor list is
// reported through floorErr while the player is still returned.
func ParseOnlineReply(payload string) (reply OnlineReply, floorErr error, err error) {
	pack, items, _ := strings.Cut(payload, ListSep)
	if reply.Player, err = ParseDataPack(pack); err != nil {
		return OnlineReply{}, nil, err
	}
	reply.Floor, floorErr = ParseFloorItems(items)
	return reply, floorErr, nil
}

// EncodeSync renders `count,name|datapack,...` for the given players, sorted by name.
func EncodeSync(players []PlayerState) string {
	sorted := make([]PlayerState, len(players))
	copy(sorted, players)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString(strconv.Itoa(len(sorted)))
	b.WriteString(ListSep)
	for i, p := range sorted {
		if i > 0 {
			b.WriteString(ListSep)
		}
		b.WriteString(p.Name)
		b.WriteString(FieldSep)
		b.WriteString(p.DataPack())
	}
	return b.String()
}

// ParseSync decodes a SyncPlayerData reply.
func ParseSync(payload string) ([]PlayerState, error) {
	head, rest, ok := strings.Cut(payload, ListSep)
	if !ok {
		return nil, fmt.Errorf("%w: sync payload has no count", ErrMissingField)
	}
	count, err := parseInt(head, "count")
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrMalformedFrame, count)
	}
	if count == 0 {
		return nil, nil
	}
	entries := strings.Split(rest, ListSep)
	if len(entries) < count {
		return nil, fmt.Errorf("%w: sync lists %d of %d players", ErrMissingField, len(entries), count)
	}
	players := make([]PlayerState, 0, count)
	for _, entry := range entries[:count] {
		name, pack, ok := strings.Cut(entry, FieldSep)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: sync entry %q", ErrMissingField, truncate(entry))
		}
		p, err := ParseDataPack(pack)
		if err != nil {
			return nil, err
		}
		if p.Name != name {
			return nil, fmt.Errorf("%w: sync entry key %q does not match pack %q", ErrMalformedFrame, name, p.Name)
		}
		players = append(players, p)
	}
	return players, nil
}

// CharacterItemRequest asks for another character's bag: `from|target`.
type CharacterItemRequest struct {
	From, Target string
}

// Encode renders the bag request.
func (r CharacterItemRequest) Encode() string {
	return r.From + FieldSep + r.Target
}

// ParseCharacterItemRequest decodes a bag request.
func ParseCharacterItemRequest(payload string) (CharacterItemRequest, error) {
	fields, err := Split(payload, FieldSep, 2)
	if err != nil {
		return CharacterItemRequest{}, err
	}
	return CharacterItemRequest{From: fields[0], Target: fields[1]}, nil
}

// SlotTransfer moves a bag slot from Target to From: `from|target|slot`.
type SlotTransfer struct {
	From, Target string
	Slot         int
}

// Encode renders the RequestPickItem payload.
func (r SlotTransfer) Encode() string {
	return r.From + FieldSep + r.Target + FieldSep + strconv.Itoa(r.Slot)
}

// ParseSlotTransfer decodes a RequestPickItem payload.
func ParseSlotTransfer(payload string) (SlotTransfer, error) {
	fields, err := Split(payload, FieldSep, 3)
	if err != nil {
		return SlotTransfer{}, err
	}
	r := SlotTransfer{From: fields[0], Target: fields[1]}
	if r.Slot, err = parseInt(fields[2], "slot"); err != nil {
		return SlotTransfer{}, err
	}
	return r, nil
}

// SlotDrop empties one of the sender's bag slots onto the floor: `from|slot`.
type SlotDrop struct {
	From string
	Slot int
}

// Encode renders the RequestDropItem payload.
func (r SlotDrop) Encode() string {
	return r.From + FieldSep + strconv.Itoa(r.Slot)
}

// ParseSlotDrop decodes a RequestDropItem payload.
func ParseSlotDrop(payload string) (SlotDrop, error) {
	fields, err := Split(payload, FieldSep, 2)
	if err != nil {
		return SlotDrop{}, err
	}
	r := SlotDrop{From: fields[0]}
	if r.Slot, err = parseInt(fields[1], "slot"); err != nil {
		return SlotDrop{}, err
	}
	return r, nil
}
