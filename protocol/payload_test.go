package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataPack(t *testing.T) {
	p := PlayerState{Name: "Hero", HP: DefaultHealth}
	assert.Equal(t, "Hero|100|0|0|", p.DataPack())

	got, err := ParseDataPack("Villain|100|50|20")
	require.NoError(t, err)
	assert.Equal(t, PlayerState{Name: "Villain", HP: 100, X: 50, Y: 20}, got)

	got, err = ParseDataPack("Hero|-5|1|2|007")
	require.NoError(t, err)
	assert.Equal(t, 0, got.HP)
	assert.Equal(t, "007", got.Item)

	_, err = ParseDataPack("Hero|100|1")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = ParseDataPack("Hero|full|1|2")
	assert.ErrorIs(t, err, ErrBadNumber)
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("Hero"))
	assert.True(t, ValidName("Dark Knight"))
	assert.True(t, ValidName("Zoë"))
	for _, bad := range []string{"", "a,b", "a|b", "a>b", "-Hero", "tab\there", "abcdefghijklmnopqrstuvwxyz", "勇者", "Hero☃"} {
		assert.False(t, ValidName(bad), bad)
	}
}

func TestFloorItems(t *testing.T) {
	items := []FloorItem{{Code: "001", X: 1, Y: 2}, {Code: "007", X: 30, Y: 40}}
	s := EncodeFloorItems(items)
	assert.Equal(t, "001|1|2|007|30|40", s)

	got, err := ParseFloorItems(s)
	require.NoError(t, err)
	assert.Equal(t, items, got)

	got, err = ParseFloorItems("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseFloorItems("001|1")
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestPickNotice(t *testing.T) {
	n, err := ParsePickNotice("007")
	require.NoError(t, err)
	assert.True(t, n.Own)
	assert.False(t, n.HasPos)
	assert.True(t, n.Matches(FloorItem{Code: "007", X: 9, Y: 9}))

	n, err = ParsePickNotice("-007|3|4")
	require.NoError(t, err)
	assert.False(t, n.Own)
	assert.True(t, n.Matches(FloorItem{Code: "007", X: 3, Y: 4}))
	assert.False(t, n.Matches(FloorItem{Code: "007", X: 3, Y: 5}))
	assert.Equal(t, "-007|3|4", n.Encode())

	_, err = ParsePickNotice("-")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = ParsePickNotice("007|3")
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestSyncPayload(t *testing.T) {
	assert.Equal(t, "0,", EncodeSync(nil))

	s := EncodeSync([]PlayerState{
		{Name: "Zed", HP: 80, X: 1, Y: 1},
		{Name: "Villain", HP: 100, X: 50, Y: 20},
	})
	assert.Equal(t, "2,Villain|Villain|100|50|20|,Zed|Zed|80|1|1|", s)

	players, err := ParseSync("1,Villain|Villain|100|50|20")
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, PlayerState{Name: "Villain", HP: 100, X: 50, Y: 20}, players[0])

	players, err = ParseSync("0,")
	require.NoError(t, err)
	assert.Empty(t, players)

	_, err = ParseSync("2,Villain|Villain|100|50|20")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = ParseSync("1,Villain|Hero|100|50|20")
	assert.ErrorIs(t, err, ErrMalformedFrame)
	_, err = ParseSync("x,")
	assert.ErrorIs(t, err, ErrBadNumber)
}

func TestOnlineReply(t *testing.T) {
	reply := OnlineReply{Player: PlayerState{Name: "Hero", HP: 100}}
	assert.Equal(t, "Hero|100|0|0|,", reply.Encode())

	got, floorErr, err := ParseOnlineReply("Hero|100|0|0|,001|5|6")
	require.NoError(t, err)
	require.NoError(t, floorErr)
	assert.Equal(t, "Hero", got.Player.Name)
	assert.Equal(t, []FloorItem{{Code: "001", X: 5, Y: 6}}, got.Floor)

	got, floorErr, err = ParseOnlineReply("Hero|100|0|0|,001|5")
	require.NoError(t, err)
	assert.ErrorIs(t, floorErr, ErrMalformedFrame)
	assert.Equal(t, "Hero", got.Player.Name)
}

func TestEventPayloads(t *testing.T) {
	fire := Fire{From: "Hero", Weapon: "002", Lifetime: 600, X0: 1, Y0: 2, X1: 3, Y1: 4}
	gotFire, err := ParseFire(fire.Encode())
	require.NoError(t, err)
	assert.Equal(t, fire, gotFire)

	_, err = ParseFire("Hero|002|600")
	assert.ErrorIs(t, err, ErrMissingField)

	r, err := ParseRespawn("100|30|40|")
	require.NoError(t, err)
	assert.Equal(t, RespawnInfo{HP: 100, X: 30, Y: 40}, r)

	m, err := ParseMove("Hero|5|7")
	require.NoError(t, err)
	assert.Equal(t, Move{Name: "Hero", X: 5, Y: 7}, m)

	h, err := ParseHitReport("Hero|25")
	require.NoError(t, err)
	assert.Equal(t, 25, h.Damage)

	req, err := ParsePickupRequest("Hero,007|1|2")
	require.NoError(t, err)
	assert.Equal(t, PickupRequest{Name: "Hero", Item: FloorItem{Code: "007", X: 1, Y: 2}}, req)

	pack, err := ParseItemPack("Hero,001||007|||")
	require.NoError(t, err)
	assert.Equal(t, []string{"001", "", "007", "", "", ""}, pack.Slots)

	tr, err := ParseSlotTransfer("Hero|Villain|2")
	require.NoError(t, err)
	assert.Equal(t, SlotTransfer{From: "Hero", Target: "Villain", Slot: 2}, tr)

	d, err := ParseSlotDrop("Hero|0")
	require.NoError(t, err)
	assert.Equal(t, SlotDrop{From: "Hero", Slot: 0}, d)
}
