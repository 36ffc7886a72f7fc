// Package protocol is the wire codec shared by the dungeon client and server.
//
// A frame is the text `<discriminant>'>'<payload>`. Payload fields are joined
// with ',' at the top level and '|' inside a field group.
package protocol

import (
	"fmt"
	"strconv"
)

// Version identifies the discriminant table below. Bump it whenever a
// discriminant changes meaning.
const Version = 1

// Command is the kind of a frame.
type Command int

// Discriminants are explicit so the client and server can never drift apart.
const (
	CmdVerification         Command = 0
	CmdOnline               Command = 1
	CmdOffline              Command = 2
	CmdTextMessage          Command = 3
	CmdAction               Command = 4
	CmdSyncPlayerData       Command = 5
	CmdSpawnItem            Command = 6
	CmdPickItem             Command = 7
	CmdFireSingle           Command = 8
	CmdHit                  Command = 9
	CmdRespawn              Command = 10
	CmdRequestCharacterItem Command = 11
	CmdRequestPickItem      Command = 12
	CmdRequestDropItem      Command = 13
	CmdClearItem            Command = 14
)

var commandNames = map[Command]string{
	CmdVerification:         "Verification",
	CmdOnline:               "Online",
	CmdOffline:              "Offline",
	CmdTextMessage:          "TextMessage",
	CmdAction:               "Action",
	CmdSyncPlayerData:       "SyncPlayerData",
	CmdSpawnItem:            "SpawnItem",
	CmdPickItem:             "PickItem",
	CmdFireSingle:           "FireSingle",
	CmdHit:                  "Hit",
	CmdRespawn:              "Respawn",
	CmdRequestCharacterItem: "RequestCharacterItem",
	CmdRequestPickItem:      "RequestPickItem",
	CmdRequestDropItem:      "RequestDropItem",
	CmdClearItem:            "ClearItem",
}

// Commands returns every known command in discriminant order.
func Commands() []Command {
	out := make([]Command, 0, len(commandNames))
	for c := CmdVerification; c <= CmdClearItem; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c is in the discriminant table.
func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "Command(" + strconv.Itoa(int(c)) + ")"
}

// ParseCommand maps a wire discriminant to its command.
func ParseCommand(s string) (Command, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadDiscriminant, s)
	}
	c := Command(n)
	if !c.Valid() {
		return 0, fmt.Errorf("%w: unknown command %d", ErrBadDiscriminant, n)
	}
	return c, nil
}

// Result is the outcome carried by a Verification reply.
type Result int

const (
	ResultNone    Result = 0
	ResultWaiting Result = 1
	ResultSuccess Result = 2
	ResultFail    Result = 3
)

func (r Result) String() string {
	switch r {
	case ResultNone:
		return "None"
	case ResultWaiting:
		return "Waiting"
	case ResultSuccess:
		return "Success"
	case ResultFail:
		return "Fail"
	}
	return "Result(" + strconv.Itoa(int(r)) + ")"
}

// EncodeResult renders a verification result payload.
func EncodeResult(r Result) string {
	return strconv.Itoa(int(r))
}

// ParseResult decodes a verification result payload.
func ParseResult(payload string) (Result, error) {
	n, err := parseInt(payload, "result")
	if err != nil {
		return ResultNone, err
	}
	r := Result(n)
	if r < ResultNone || r > ResultFail {
		return ResultNone, fmt.Errorf("%w: result %d out of range", ErrMalformedFrame, n)
	}
	return r, nil
}
