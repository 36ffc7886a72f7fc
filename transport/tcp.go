package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const headerLen = 4

// streamConn frames text over a byte stream with a 4-byte big-endian length.
type streamConn struct {
	nc   net.Conn
	r    *bufio.Reader
	opts Options

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps any stream connection, for instance a net.Pipe end in tests.
func NewConn(nc net.Conn, opts Options) Conn {
	return &streamConn{nc: nc, r: bufio.NewReader(nc), opts: opts}
}

// DialTCP opens a TCP connection to addr.
func DialTCP(ctx context.Context, addr string, opts Options) (Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	return NewConn(nc, opts), nil
}

func (c *streamConn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}

func (c *streamConn) Send(text string) error {
	body, err := encodeText(text)
	if err != nil {
		return &SendError{Addr: c.RemoteAddr(), Err: err}
	}
	if len(body) > c.opts.maxFrame() {
		return &SendError{Addr: c.RemoteAddr(), Err: fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, len(body), c.opts.maxFrame())}
	}

	buf := make([]byte, headerLen+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[headerLen:], body)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.nc.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout()))
	if _, err := c.nc.Write(buf); err != nil {
		return &SendError{Addr: c.RemoteAddr(), Err: closedErr(err)}
	}
	return nil
}

func (c *streamConn) Receive() (string, error) {
	if c.opts.ReadTimeout > 0 {
		_ = c.nc.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	}
	var header [headerLen]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		return "", closedErr(err)
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > uint32(c.opts.maxFrame()) {
		// The stream cannot be resynchronised past an oversized frame.
		_ = c.Close()
		return "", fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, n, c.opts.maxFrame())
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return "", closedErr(err)
	}
	return decodeText(body)
}

func (c *streamConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

// closedErr folds every way a stream can end into ErrConnectionClosed while
// keeping the cause inspectable.
func closedErr(err error) error {
	if errors.Is(err, ErrConnectionClosed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
}

// Listener accepts stream connections.
type Listener struct {
	ln   net.Listener
	opts Options
}

// Listen binds a TCP listener on addr.
func Listen(addr string, opts Options) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	return &Listener{ln: ln, opts: opts}, nil
}

// Accept waits for the next connection. After Close it returns an error
// wrapping net.ErrClosed.
func (l *Listener) Accept() (Conn, error) {
	nc, err := l.ln.Accept()
	if err != nil {
		return nil, &ConnectionError{Addr: l.ln.Addr().String(), Err: err}
	}
	return NewConn(nc, l.opts), nil
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) Close() error { return l.ln.Close() }
