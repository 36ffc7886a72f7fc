package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEveryCommand(t *testing.T) {
	payloads := map[Command]string{
		CmdVerification:         "Hero",
		CmdOnline:               "Hero|100|0|0|,001|10|20",
		CmdOffline:              "Hero",
		CmdTextMessage:          "Hero : hello, world > everyone",
		CmdAction:               "Hero|5|7",
		CmdSyncPlayerData:       "1,Villain|Villain|100|50|20|",
		CmdSpawnItem:            "003|400|220",
		CmdPickItem:             "-007|1|2",
		CmdFireSingle:           "Hero|001|800|0|0|10|10",
		CmdHit:                  "Hero|25",
		CmdRespawn:              "100|30|40|",
		CmdRequestCharacterItem: "Hero|Villain",
		CmdRequestPickItem:      "Hero|Villain|2",
		CmdRequestDropItem:      "Hero|0",
		CmdClearItem:            "Hero",
	}
	require.Len(t, payloads, len(Commands()))

	for _, cmd := range Commands() {
		t.Run(cmd.String(), func(t *testing.T) {
			f, err := Decode(Encode(cmd, payloads[cmd]))
			require.NoError(t, err)
			assert.Equal(t, cmd, f.Cmd)
			assert.Equal(t, payloads[cmd], f.Payload)
		})
	}
}

func TestDiscriminantsArePinned(t *testing.T) {
	assert.Equal(t, "0>Hero", Encode(CmdVerification, "Hero"))
	assert.Equal(t, "5>Hero", Encode(CmdSyncPlayerData, "Hero"))
	assert.Equal(t, "13>Hero|1", Encode(CmdRequestDropItem, "Hero|1"))
	assert.Equal(t, 1, Version)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"non numeric", "abc>payload"},
		{"no separator", "5"},
		{"unknown command", "99>x"},
		{"negative", "-1>x"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedFrame)
			assert.ErrorIs(t, err, ErrBadDiscriminant)
		})
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	f, err := Decode("2>")
	require.NoError(t, err)
	assert.Equal(t, CmdOffline, f.Cmd)
	assert.Empty(t, f.Payload)
}

func TestResult(t *testing.T) {
	r, err := ParseResult(EncodeResult(ResultFail))
	require.NoError(t, err)
	assert.Equal(t, ResultFail, r)

	_, err = ParseResult("7")
	assert.ErrorIs(t, err, ErrMalformedFrame)
	_, err = ParseResult("yes")
	assert.ErrorIs(t, err, ErrBadNumber)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "SyncPlayerData", CmdSyncPlayerData.String())
	assert.Equal(t, "Command(42)", Command(42).String())
}
