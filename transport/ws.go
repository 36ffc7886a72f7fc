package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsSendQueue    = 64
	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
)

// wsConn carries one frame per WebSocket text message. Writes go through a
// queue drained by a single writePump goroutine.
type wsConn struct {
	ws   *websocket.Conn
	opts Options
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
	pumpDone  chan struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Game clients are not browsers; origin is not meaningful here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Upgrade turns an HTTP request into a frame connection.
func Upgrade(w http.ResponseWriter, r *http.Request, opts Options) (Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, &ConnectionError{Addr: r.RemoteAddr, Err: err}
	}
	return newWSConn(ws, opts), nil
}

// DialWS connects to a ws:// or wss:// URL.
func DialWS(ctx context.Context, url string, opts Options) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &ConnectionError{Addr: url, Err: err}
	}
	return newWSConn(ws, opts), nil
}

func newWSConn(ws *websocket.Conn, opts Options) *wsConn {
	c := &wsConn{
		ws:       ws,
		opts:     opts,
		send:     make(chan []byte, wsSendQueue),
		closed:   make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	// Leave room for the WebSocket header on top of the frame body.
	ws.SetReadLimit(int64(opts.maxFrame()) + 16)
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(c.readDeadline())
	})
	go c.writePump()
	return c
}

func (c *wsConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *wsConn) readDeadline() time.Time {
	wait := c.opts.ReadTimeout
	if wait <= 0 {
		wait = wsPongWait
	}
	return time.Now().Add(wait)
}

// Send queues text for the write pump. It blocks while the queue is full, up
// to the write timeout.
func (c *wsConn) Send(text string) error {
	body, err := encodeText(text)
	if err != nil {
		return &SendError{Addr: c.RemoteAddr(), Err: err}
	}
	if len(body) > c.opts.maxFrame() {
		return &SendError{Addr: c.RemoteAddr(), Err: fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, len(body), c.opts.maxFrame())}
	}

	t := time.NewTimer(c.opts.writeTimeout())
	defer t.Stop()
	select {
	case c.send <- body:
		return nil
	case <-c.closed:
		return &SendError{Addr: c.RemoteAddr(), Err: ErrConnectionClosed}
	case <-t.C:
		return &SendError{Addr: c.RemoteAddr(), Err: fmt.Errorf("send queue full after %s", c.opts.writeTimeout())}
	}
}

func (c *wsConn) Receive() (string, error) {
	_ = c.ws.SetReadDeadline(c.readDeadline())
	for {
		kind, payload, err := c.ws.ReadMessage()
		if err != nil {
			_ = c.Close()
			return "", closedErr(err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		return decodeText(payload)
	}
}

// Close flushes frames already queued, then closes the socket.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		<-c.pumpDone
		err = c.ws.Close()
	})
	return err
}

// writePump is the only writer on the socket.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer close(c.pumpDone)
	defer ticker.Stop()

	writeWait := c.opts.writeTimeout()
	write := func(kind int, msg []byte) error {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		return c.ws.WriteMessage(kind, msg)
	}
	for {
		select {
		case msg := <-c.send:
			if err := write(websocket.TextMessage, msg); err != nil {
				// Unblocks Receive, whose caller then runs Close.
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				_ = c.ws.Close()
				return
			}
		case <-c.closed:
			for {
				select {
				case msg := <-c.send:
					if err := write(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}
