package server

import (
	"sync"

	"dungeonsync/logger"
	"dungeonsync/protocol"
	"dungeonsync/transport"
)

const sendQueueSize = 256

// Peer owns the write side of one client connection. Frames are queued and
// written by a single goroutine so that handlers and broadcasts never block
// on a slow socket.
type Peer struct {
	ID   ConnID
	conn transport.Conn
	send chan string
	m    *Metrics

	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

func newPeer(conn transport.Conn, m *Metrics) *Peer {
	p := &Peer{
		ID:      newConnID(),
		conn:    conn,
		send:    make(chan string, sendQueueSize),
		m:       m,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.writePump()
	return p
}

func (p *Peer) Addr() string { return p.conn.RemoteAddr() }

// Enqueue queues one frame. A peer whose queue is full is too slow to keep
// in sync and is disconnected.
func (p *Peer) Enqueue(cmd protocol.Command, payload string) bool {
	select {
	case <-p.closing:
		return false
	default:
	}
	select {
	case p.send <- protocol.Encode(cmd, payload):
		return true
	default:
		logger.Log.Warnf("conn %s: send queue full, disconnecting", p.ID)
		p.m.IncSlowPeer()
		p.Close()
		return false
	}
}

// Close stops accepting frames. Frames already queued are still written
// before the socket closes.
func (p *Peer) Close() {
	p.closeOnce.Do(func() { close(p.closing) })
}

// Done is closed once the socket is closed.
func (p *Peer) Done() <-chan struct{} { return p.done }

func (p *Peer) writePump() {
	defer close(p.done)
	defer p.conn.Close()
	for {
		select {
		case text := <-p.send:
			if !p.write(text) {
				return
			}
		case <-p.closing:
			for {
				select {
				case text := <-p.send:
					if !p.write(text) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (p *Peer) write(text string) bool {
	if err := p.conn.Send(text); err != nil {
		logger.Log.Debugf("conn %s: write failed: %v", p.ID, err)
		p.Close()
		return false
	}
	p.m.IncFrameOut()
	return true
}
