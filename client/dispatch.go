package client

import (
	"errors"
	"fmt"

	"dungeonsync/logger"
	"dungeonsync/protocol"
	"dungeonsync/transport"
)

var (
	errStale      = errors.New("client: frame for a closed connection")
	errUnexpected = errors.New("client: unexpected command")
)

// receiveLoop handles frames from conn one at a time until conn fails.
func (s *Session) receiveLoop(conn transport.Conn, done chan struct{}) {
	defer close(done)
	for {
		text, err := conn.Receive()
		if err != nil {
			s.connectionLost(conn, err)
			return
		}
		frame, err := protocol.Decode(text)
		if err != nil {
			// Nothing after an undecodable discriminant can be trusted.
			logger.Log.Warnf("dropping connection to %s: %v", conn.RemoteAddr(), err)
			s.connectionLost(conn, err)
			return
		}
		if err := s.dispatch(conn, frame); err != nil {
			if errors.Is(err, errStale) {
				return
			}
			logger.Log.Warnf("dropped %s frame: %v", frame.Cmd, err)
		}
	}
}

func (s *Session) connectionLost(conn transport.Conn, cause error) {
	if s.teardown(conn) {
		logger.Log.Warnf("connection lost: %v", cause)
		s.ui.OnSessionTerminated(cause)
	}
}

func (s *Session) dispatch(conn transport.Conn, f protocol.Frame) error {
	switch f.Cmd {
	case protocol.CmdVerification:
		return s.handleVerification(conn, f.Payload)
	case protocol.CmdOnline:
		return s.handleOnline(conn, f.Payload)
	case protocol.CmdOffline:
		return s.handleOffline(conn)
	case protocol.CmdTextMessage:
		if !s.current(conn) {
			return errStale
		}
		s.ui.OnTextMessage(f.Payload)
		return nil
	case protocol.CmdSyncPlayerData:
		return s.handleSync(conn, f.Payload)
	case protocol.CmdSpawnItem:
		return s.handleSpawnItem(conn, f.Payload)
	case protocol.CmdPickItem:
		return s.handlePickItem(conn, f.Payload)
	case protocol.CmdFireSingle:
		return s.handleFire(conn, f.Payload)
	case protocol.CmdHit:
		return s.handleHit(conn, f.Payload)
	case protocol.CmdRespawn:
		return s.handleRespawn(conn, f.Payload)
	case protocol.CmdRequestCharacterItem:
		return s.handleItemPack(conn, f.Payload)
	}
	return fmt.Errorf("%w: %s", errUnexpected, f.Cmd)
}

func (s *Session) current(conn transport.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == conn
}

func (s *Session) handleVerification(conn transport.Conn, payload string) error {
	r, err := protocol.ParseResult(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return errStale
	}
	if s.state != StateAwaitingVerification {
		return fmt.Errorf("%w: verification result while %s", errUnexpected, s.state)
	}
	select {
	case s.verifyCh <- r:
	default:
	}
	return nil
}

func (s *Session) handleOnline(conn transport.Conn, payload string) error {
	reply, floorErr, err := protocol.ParseOnlineReply(payload)
	if err != nil {
		return err
	}
	if floorErr != nil {
		logger.Log.Warnf("ignoring floor items in online reply: %v", floorErr)
		reply.Floor = nil
	}

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return errStale
	}
	s.presence.SetLocal(reply.Player)
	local, _ := s.presence.Local()
	me := *local
	s.floor = append(s.floor[:0], reply.Floor...)
	ready, once := s.readyCh, s.readyOnce
	s.mu.Unlock()

	once.Do(func() { close(ready) })
	s.ui.OnLocalPlayer(me)
	for _, it := range reply.Floor {
		s.ui.OnFloorItemSpawned(it)
	}
	return nil
}

// handleOffline means the server is shutting down.
func (s *Session) handleOffline(conn transport.Conn) error {
	if s.teardown(conn) {
		logger.Log.Infof("server went offline")
		s.ui.OnSessionTerminated(ErrServerGone)
	}
	return errStale
}

func (s *Session) handleSync(conn transport.Conn, payload string) error {
	players, err := protocol.ParseSync(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return errStale
	}
	diff := s.presence.Reconcile(players)
	var lostFocus string
	for _, name := range diff.Removed {
		if name == s.focus {
			lostFocus = name
			s.focus = ""
		}
	}
	s.mu.Unlock()

	for _, p := range diff.Added {
		s.ui.OnPlayerJoined(p)
	}
	for _, p := range diff.Updated {
		s.ui.OnPlayerUpdated(p)
	}
	for _, name := range diff.Removed {
		s.ui.OnPlayerLeft(name)
	}
	if lostFocus != "" {
		s.ui.OnFocusCleared(lostFocus)
	}
	return nil
}

func (s *Session) handleSpawnItem(conn transport.Conn, payload string) error {
	item, err := protocol.ParseFloorItem(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return errStale
	}
	s.floor = append(s.floor, item)
	s.mu.Unlock()

	s.ui.OnFloorItemSpawned(item)
	return nil
}

// handlePickItem removes the item from the floor view. Only a notice without
// the '-' marker puts the item in the local player's hand.
func (s *Session) handlePickItem(conn transport.Conn, payload string) error {
	n, err := protocol.ParsePickNotice(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return errStale
	}
	var (
		removed protocol.FloorItem
		found   bool
	)
	for i, it := range s.floor {
		if n.Matches(it) {
			removed, found = it, true
			s.floor = append(s.floor[:i], s.floor[i+1:]...)
			break
		}
	}
	if n.Own {
		if p, ok := s.presence.Local(); ok {
			p.Item = n.Code
		}
	}
	s.mu.Unlock()

	if found {
		s.ui.OnFloorItemRemoved(removed)
	}
	if n.Own {
		s.ui.OnItemPicked(n.Code)
	}
	return nil
}

func (s *Session) handleFire(conn transport.Conn, payload string) error {
	f, err := protocol.ParseFire(payload)
	if err != nil {
		return err
	}
	if !s.current(conn) {
		return errStale
	}
	s.ui.OnFire(f)
	return nil
}

func (s *Session) handleHit(conn transport.Conn, payload string) error {
	hp, err := protocol.ParseHealth(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return errStale
	}
	p, ok := s.presence.Local()
	if ok {
		p.SetHealth(hp)
		hp = p.HP
	}
	s.mu.Unlock()

	if ok {
		s.ui.OnHealthChanged(hp)
	}
	return nil
}

func (s *Session) handleRespawn(conn transport.Conn, payload string) error {
	r, err := protocol.ParseRespawn(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return errStale
	}
	p, ok := s.presence.Local()
	var me protocol.PlayerState
	if ok {
		p.Respawn(r.HP, r.X, r.Y, r.Item)
		me = *p
	}
	s.mu.Unlock()

	if ok {
		s.ui.OnRespawn(me)
	}
	return nil
}

func (s *Session) handleItemPack(conn transport.Conn, payload string) error {
	pack, err := protocol.ParseItemPack(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return errStale
	}
	if pack.Name == s.name {
		s.bag = append(s.bag[:0], pack.Slots...)
	}
	s.mu.Unlock()

	s.ui.OnInventory(pack)
	return nil
}
