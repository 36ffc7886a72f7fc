package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedFrame is the root of every decode failure.
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	// ErrBadDiscriminant means the frame cannot be attributed to any command.
	// Receivers treat the connection as compromised.
	ErrBadDiscriminant = fmt.Errorf("%w: bad discriminant", ErrMalformedFrame)
	// ErrMissingField means a positional field is absent.
	ErrMissingField = fmt.Errorf("%w: missing field", ErrMalformedFrame)
	// ErrBadNumber means a numeric field did not parse.
	ErrBadNumber = fmt.Errorf("%w: bad number", ErrMalformedFrame)
)

const (
	// Separator splits the discriminant from the payload.
	Separator = '>'
	// ListSep joins top-level payload fields.
	ListSep = ","
	// FieldSep joins fields within a group.
	FieldSep = "|"
)

// Frame is one decoded message.
type Frame struct {
	Cmd     Command
	Payload string
}

func (f Frame) String() string {
	return Encode(f.Cmd, f.Payload)
}

// Encode renders cmd and payload as wire text.
func Encode(cmd Command, payload string) string {
	return strconv.Itoa(int(cmd)) + string(Separator) + payload
}

// Decode splits wire text into its command and payload. Only the first '>'
// separates, so payloads may contain '>'.
func Decode(text string) (Frame, error) {
	head, payload, ok := strings.Cut(text, string(Separator))
	if !ok {
		return Frame{}, fmt.Errorf("%w: no separator in %q", ErrBadDiscriminant, truncate(text))
	}
	cmd, err := ParseCommand(head)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Cmd: cmd, Payload: payload}, nil
}

// Split splits s on sep and requires at least want fields.
func Split(s, sep string, want int) ([]string, error) {
	fields := strings.Split(s, sep)
	if len(fields) < want {
		return nil, fmt.Errorf("%w: want %d fields, got %d in %q", ErrMissingField, want, len(fields), truncate(s))
	}
	return fields, nil
}

func parseInt(s, field string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadNumber, field, truncate(s))
	}
	return n, nil
}

func truncate(s string) string {
	const limit = 64
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
