package server

import (
	"errors"
	"fmt"

	"dungeonsync/logger"
	"dungeonsync/protocol"
	"dungeonsync/store"
)

var (
	// errHangUp ends the connection's receive loop without counting a drop.
	errHangUp = errors.New("server: connection done")
	// ErrUnexpectedCommand rejects server-to-client commands sent by a client.
	ErrUnexpectedCommand = errors.New("server: unexpected command")
)

func (s *Server) handle(p *Peer, f protocol.Frame) error {
	switch f.Cmd {
	case protocol.CmdVerification:
		return s.handleVerification(p, f.Payload)
	case protocol.CmdOnline:
		return s.handleOnline(p, f.Payload)
	case protocol.CmdOffline:
		return s.handleOffline(p)
	case protocol.CmdTextMessage:
		return s.handleTextMessage(p, f.Payload)
	case protocol.CmdAction:
		return s.handleAction(p, f.Payload)
	case protocol.CmdSyncPlayerData:
		return s.handleSync(p, f.Payload)
	case protocol.CmdPickItem:
		return s.handlePickItem(p, f.Payload)
	case protocol.CmdFireSingle:
		return s.handleFire(p, f.Payload)
	case protocol.CmdHit:
		return s.handleHit(p, f.Payload)
	case protocol.CmdRequestCharacterItem:
		return s.handleCharacterItems(p, f.Payload)
	case protocol.CmdRequestPickItem:
		return s.handleTakeItem(p, f.Payload)
	case protocol.CmdRequestDropItem:
		return s.handleDropItem(p, f.Payload)
	case protocol.CmdClearItem:
		return s.handleClearItem(p, f.Payload)
	}
	return fmt.Errorf("%w: %s", ErrUnexpectedCommand, f.Cmd)
}

// self is the name p is online as. A non-empty claimed name must match it.
func (s *Server) self(p *Peer, claimed string) (string, error) {
	name, ok := s.reg.OnlineName(p.ID)
	if !ok {
		return "", ErrNotOnline
	}
	if claimed != "" && claimed != name {
		return "", fmt.Errorf("%w: %q on connection of %q", ErrWrongPlayer, claimed, name)
	}
	return name, nil
}

// handleVerification answers whether the name is free and reserves it for
// this connection if so. A refusal is a normal answer, not a dropped frame.
func (s *Server) handleVerification(p *Peer, name string) error {
	result := protocol.ResultSuccess
	if err := s.reg.Reserve(p.ID, name); err != nil {
		logger.Log.Infof("conn %s: verification refused: %v", p.ID, err)
		result = protocol.ResultFail
	}
	p.Enqueue(protocol.CmdVerification, protocol.EncodeResult(result))
	return nil
}

func (s *Server) handleOnline(p *Peer, name string) error {
	if !s.reg.Reserved(p.ID, name) {
		return fmt.Errorf("%w: %q", ErrNotVerified, name)
	}
	c, err := store.LoadOrNew(s.ctx, s.store, name)
	if err != nil {
		// Going online with a blank record would overwrite the saved one.
		logger.Log.Errorf("conn %s: load %q: %v", p.ID, name, err)
		return errHangUp
	}
	c.Name = name
	reply, err := s.reg.Admit(p.ID, c)
	if err != nil {
		return err
	}
	p.Enqueue(protocol.CmdOnline, reply.Encode())
	return nil
}

func (s *Server) handleOffline(p *Peer) error {
	s.reg.Leave(p.ID)
	return errHangUp
}

// handleTextMessage relays chat to everyone online, the sender included.
func (s *Server) handleTextMessage(p *Peer, text string) error {
	if _, err := s.self(p, ""); err != nil {
		return err
	}
	s.reg.Broadcast(protocol.CmdTextMessage, text, "")
	return nil
}

func (s *Server) handleSync(p *Peer, name string) error {
	me, err := s.self(p, name)
	if err != nil {
		return err
	}
	p.Enqueue(protocol.CmdSyncPlayerData, s.reg.Sync(me))
	return nil
}
