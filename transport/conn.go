// Package transport moves encoded frames between peers. A TCP stream carries
// length-prefixed frames; a WebSocket carries one frame per text message.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DefaultMaxFrameSize bounds the encoded size of one frame.
const DefaultMaxFrameSize = 4096

// DefaultWriteTimeout bounds one write when Options leaves it unset.
const DefaultWriteTimeout = 5 * time.Second

var (
	// ErrConnectionClosed is returned by Receive and Send once the peer is gone.
	ErrConnectionClosed = errors.New("transport: connection closed")
	// ErrFrameTooLarge means a frame exceeded the negotiated maximum.
	ErrFrameTooLarge = errors.New("transport: frame too large")
)

// ConnectionError reports a failed dial or accept.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("transport: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendError reports a frame that could not be written.
type SendError struct {
	Addr string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("transport: send to %s: %v", e.Addr, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Conn is one logical connection carrying text frames.
type Conn interface {
	// Send writes exactly one frame.
	Send(text string) error
	// Receive blocks until exactly one frame has arrived.
	Receive() (string, error)
	// Close unblocks any pending Receive. It is safe to call more than once.
	Close() error
	RemoteAddr() string
}

// Options tunes a connection. A zero ReadTimeout disables the read deadline;
// a zero WriteTimeout means DefaultWriteTimeout, so a peer that stops reading
// can never block a writer for good.
type Options struct {
	MaxFrameSize int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (o Options) writeTimeout() time.Duration {
	if o.WriteTimeout <= 0 {
		return DefaultWriteTimeout
	}
	return o.WriteTimeout
}

func (o Options) maxFrame() int {
	if o.MaxFrameSize <= 0 {
		return DefaultMaxFrameSize
	}
	return o.MaxFrameSize
}

// Dial connects to addr. ws:// and wss:// addresses use the WebSocket
// transport, anything else is a TCP host:port.
func Dial(ctx context.Context, addr string, opts Options) (Conn, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return DialWS(ctx, addr, opts)
	}
	return DialTCP(ctx, addr, opts)
}

// Both ends pin Windows-1252 so the byte form never depends on the platform.
var textEncoding encoding.Encoding = charmap.Windows1252

func encodeText(s string) ([]byte, error) {
	b, err := encoding.ReplaceUnsupported(textEncoding.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("transport: encode text: %w", err)
	}
	return b, nil
}

func decodeText(b []byte) (string, error) {
	s, err := textEncoding.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("transport: decode text: %w", err)
	}
	return string(s), nil
}
