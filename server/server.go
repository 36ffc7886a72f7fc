// Package server is the authoritative side of the dungeon: it owns the
// player registry and the floor, answers handshakes and syncs, and relays
// gameplay events between clients.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"dungeonsync/logger"
	"dungeonsync/protocol"
	"dungeonsync/store"
	"dungeonsync/transport"
)

const acceptBackoff = 50 * time.Millisecond

// Config is everything a Server needs besides its store.
type Config struct {
	Addr      string
	Transport transport.Options
	// MaxPlayers caps open connections; zero means no cap.
	MaxPlayers int
	Spawn      SpawnConfig
}

// Server accepts game connections and runs one receive loop per connection.
type Server struct {
	cfg     Config
	store   store.Store
	reg     *Registry
	metrics *Metrics
	spawner *Spawner
	saves   *saveQueue

	// ctx outlives every connection so that departing players are persisted.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	ln     *transport.Listener
	closed bool
	conns  sync.WaitGroup
	done   chan struct{}
}

func New(cfg Config, st store.Store) *Server {
	m := NewMetrics()
	reg := NewRegistry(m)
	saves := newSaveQueue(st)
	reg.saves = saves
	ctx, cancel := context.WithCancel(context.Background())
	go saves.run(ctx)
	return &Server{
		cfg:     cfg,
		store:   st,
		reg:     reg,
		metrics: m,
		spawner: NewSpawner(reg, cfg.Spawn),
		saves:   saves,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (s *Server) Registry() *Registry { return s.reg }
func (s *Server) Metrics() *Metrics   { return s.metrics }
func (s *Server) Spawner() *Spawner   { return s.spawner }

// ListenAndServe listens on the configured address and serves until ctx is
// done. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := transport.Listen(s.cfg.Addr, s.cfg.Transport)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Shutdown is called,
// then waits for the shutdown to finish.
func (s *Server) Serve(ctx context.Context, ln *transport.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	logger.Log.Infof("dungeon server listening on %s", ln.Addr())
	go s.spawner.Run(s.ctx)
	stop := context.AfterFunc(ctx, s.Shutdown)
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				<-s.done
				return nil
			}
			logger.Log.Warnf("accept: %v", err)
			time.Sleep(acceptBackoff)
			continue
		}
		go s.ServeConn(conn)
	}
}

// Addr is the game listener's address, once Serve has started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// admit registers a new connection unless the server is closing or full.
func (s *Server) admit(conn transport.Conn) (*Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	if s.cfg.MaxPlayers > 0 && s.reg.PeerCount() >= s.cfg.MaxPlayers {
		s.metrics.IncRefused()
		logger.Log.Warnf("refusing %s: %d connections open", conn.RemoteAddr(), s.cfg.MaxPlayers)
		return nil, false
	}
	peer := newPeer(conn, s.metrics)
	s.reg.AddPeer(peer)
	s.conns.Add(1)
	s.metrics.IncAccepted()
	return peer, true
}

// ServeConn runs the receive loop of one connection and cleans up after it.
// It blocks until the connection is gone.
func (s *Server) ServeConn(conn transport.Conn) {
	peer, ok := s.admit(conn)
	if !ok {
		_ = conn.Close()
		return
	}
	defer s.disconnect(peer)
	logger.Log.Infof("conn %s accepted from %s", peer.ID, peer.Addr())

	for {
		text, err := conn.Receive()
		if err != nil {
			logger.Log.Debugf("conn %s: receive: %v", peer.ID, err)
			return
		}
		frame, err := protocol.Decode(text)
		if err != nil {
			s.metrics.IncTeardown()
			logger.Log.Warnf("conn %s: closing on undecodable frame: %v", peer.ID, err)
			return
		}
		s.metrics.IncFrameIn(frame.Cmd)
		if err := s.handle(peer, frame); err != nil {
			if errors.Is(err, errHangUp) {
				return
			}
			if errors.Is(err, protocol.ErrMalformedFrame) {
				s.metrics.IncMalformed()
			} else {
				s.metrics.IncRejected()
			}
			logger.Log.Warnf("conn %s: dropped %s frame: %v", peer.ID, frame.Cmd, err)
		}
	}
}

// disconnect is the cleanup every connection gets, however it ended: the
// same as an Offline frame.
func (s *Server) disconnect(p *Peer) {
	defer s.conns.Done()
	s.reg.Leave(p.ID)
	s.reg.RemovePeer(p.ID)
	p.Close()
	<-p.Done()
	s.metrics.ConnClosed()
	logger.Log.Infof("conn %s closed", p.ID)
}

// Shutdown stops accepting, tells every client the server is going away,
// closes every connection, waits for their cleanup and for the last
// character saves.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	ln := s.ln
	s.mu.Unlock()

	logger.Log.Info("server shutting down")
	if ln != nil {
		_ = ln.Close()
	}
	peers := s.reg.CloseAll(protocol.CmdOffline, "")
	s.conns.Wait()
	s.saves.close()
	s.cancel()
	logger.Log.Infof("server stopped, %d connections closed", len(peers))
	close(s.done)
}
