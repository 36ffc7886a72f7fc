package server

import (
	"dungeonsync/protocol"
)

// Gameplay input. The server trusts positions, shots and damage as
// reported; it only checks that a client speaks for its own player. The
// registry queues the changed characters for persisting itself.

func (s *Server) handleAction(p *Peer, payload string) error {
	m, err := protocol.ParseMove(payload)
	if err != nil {
		return err
	}
	name, err := s.self(p, m.Name)
	if err != nil {
		return err
	}
	return s.reg.Move(name, m.X, m.Y)
}

func (s *Server) handlePickItem(p *Peer, payload string) error {
	req, err := protocol.ParsePickupRequest(payload)
	if err != nil {
		return err
	}
	name, err := s.self(p, req.Name)
	if err != nil {
		return err
	}
	_, err = s.reg.Pickup(name, req.Item)
	return err
}

// handleFire relays a shot to everyone but the shooter.
func (s *Server) handleFire(p *Peer, payload string) error {
	f, err := protocol.ParseFire(payload)
	if err != nil {
		return err
	}
	if _, err := s.self(p, f.From); err != nil {
		return err
	}
	s.reg.Broadcast(protocol.CmdFireSingle, f.Encode(), p.ID)
	return nil
}

func (s *Server) handleHit(p *Peer, payload string) error {
	h, err := protocol.ParseHitReport(payload)
	if err != nil {
		return err
	}
	name, err := s.self(p, h.Name)
	if err != nil {
		return err
	}
	_, _, err = s.reg.Hit(name, h.Damage, randomPoint())
	return err
}

func (s *Server) handleClearItem(p *Peer, payload string) error {
	name, err := s.self(p, payload)
	if err != nil {
		return err
	}
	_, err = s.reg.ClearItem(name)
	return err
}

func (s *Server) handleCharacterItems(p *Peer, payload string) error {
	req, err := protocol.ParseCharacterItemRequest(payload)
	if err != nil {
		return err
	}
	name, err := s.self(p, req.From)
	if err != nil {
		return err
	}
	return s.reg.SendItemPack(name, req.Target)
}

func (s *Server) handleTakeItem(p *Peer, payload string) error {
	req, err := protocol.ParseSlotTransfer(payload)
	if err != nil {
		return err
	}
	name, err := s.self(p, req.From)
	if err != nil {
		return err
	}
	_, _, err = s.reg.TakeSlot(name, req.Target, req.Slot)
	return err
}

func (s *Server) handleDropItem(p *Peer, payload string) error {
	req, err := protocol.ParseSlotDrop(payload)
	if err != nil {
		return err
	}
	name, err := s.self(p, req.From)
	if err != nil {
		return err
	}
	_, _, err = s.reg.DropSlot(name, req.Slot)
	return err
}
