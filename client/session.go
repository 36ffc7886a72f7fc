// Package client is the game-side half of the synchronization protocol.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dungeonsync/logger"
	"dungeonsync/protocol"
	"dungeonsync/transport"
)

var (
	// ErrLoginFailed wraps every way a login can fail.
	ErrLoginFailed = errors.New("client: login failed")
	// ErrNameTaken is joined to ErrLoginFailed when the server refused the name.
	ErrNameTaken = errors.New("client: name already taken")
	// ErrInvalidName is joined to ErrLoginFailed for a name that cannot be sent.
	ErrInvalidName = errors.New("client: invalid player name")
	// ErrUnexpectedResult is joined to ErrLoginFailed when verification is
	// answered with neither Success nor Fail.
	ErrUnexpectedResult = errors.New("client: unexpected verification result")
	// ErrNotOnline is returned by requests issued outside the Online state.
	ErrNotOnline = errors.New("client: not online")
	// ErrServerGone is reported when the server announces it is shutting down.
	ErrServerGone = errors.New("client: server went offline")
	// ErrUnknownPlayer is returned by SetFocus for a name not in the presence set.
	ErrUnknownPlayer = errors.New("client: unknown player")
)

// State is where a session is in its lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingVerification
	StateOnline
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateAwaitingVerification:
		return "AwaitingVerification"
	case StateOnline:
		return "Online"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DialFunc opens a transport connection.
type DialFunc func(ctx context.Context, addr string, opts transport.Options) (transport.Conn, error)

// Options configures a Session.
type Options struct {
	Addr      string
	Transport transport.Options
	// HandshakeTimeout bounds Login when its context has no deadline.
	HandshakeTimeout time.Duration
	Listener         Listener
	// Dial defaults to transport.Dial.
	Dial DialFunc
}

// Session is one running game client's connection to the server.
type Session struct {
	opts Options
	ui   Listener

	mu       sync.Mutex
	state    State
	name     string
	conn     transport.Conn
	presence *PresenceSet
	floor    []protocol.FloorItem
	bag      []string
	focus    string

	// One outstanding handshake at a time.
	verifyCh  chan protocol.Result
	readyCh   chan struct{}
	readyOnce *sync.Once
	loopDone  chan struct{}
}

// New creates a disconnected session.
func New(opts Options) *Session {
	if opts.Listener == nil {
		opts.Listener = NopListener{}
	}
	if opts.Dial == nil {
		opts.Dial = transport.Dial
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	closed := make(chan struct{})
	close(closed)
	return &Session{
		opts:     opts,
		ui:       opts.Listener,
		presence: NewPresenceSet(""),
		loopDone: closed,
	}
}

// Login connects, verifies name and requests the player's own data. It
// returns once the local player exists. Every failure is reported as
// ErrLoginFailed and leaves the session Disconnected.
func (s *Session) Login(ctx context.Context, name string) error {
	if !protocol.ValidName(name) {
		return fmt.Errorf("%w: %w: %q", ErrLoginFailed, ErrInvalidName, name)
	}
	s.mu.Lock()
	if s.state != StateDisconnected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrLoginFailed, state)
	}
	s.state = StateConnecting
	s.name = name
	s.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.HandshakeTimeout)
		defer cancel()
	}

	conn, err := s.opts.Dial(ctx, s.opts.Addr, s.opts.Transport)
	if err != nil {
		s.setState(StateDisconnected)
		logger.Log.Warnf("login %s: dial %s: %v", name, s.opts.Addr, err)
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.presence = NewPresenceSet(name)
	s.floor = nil
	s.bag = nil
	s.focus = ""
	s.verifyCh = make(chan protocol.Result, 1)
	s.readyCh = make(chan struct{})
	s.readyOnce = new(sync.Once)
	s.loopDone = make(chan struct{})
	s.state = StateAwaitingVerification
	verifyCh, readyCh, loopDone := s.verifyCh, s.readyCh, s.loopDone
	s.mu.Unlock()

	go s.receiveLoop(conn, loopDone)

	if err := conn.Send(protocol.Encode(protocol.CmdVerification, name)); err != nil {
		return s.failLogin(conn, err)
	}

	select {
	case r := <-verifyCh:
		switch r {
		case protocol.ResultSuccess:
		case protocol.ResultFail:
			return s.failLogin(conn, fmt.Errorf("%w: %q", ErrNameTaken, name))
		default:
			return s.failLogin(conn, fmt.Errorf("%w: %s", ErrUnexpectedResult, r))
		}
	case <-loopDone:
		return s.failLogin(conn, transport.ErrConnectionClosed)
	case <-ctx.Done():
		return s.failLogin(conn, ctx.Err())
	}

	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return s.failLogin(conn, transport.ErrConnectionClosed)
	}
	s.state = StateOnline
	s.mu.Unlock()

	if err := conn.Send(protocol.Encode(protocol.CmdOnline, name)); err != nil {
		return s.failLogin(conn, err)
	}

	select {
	case <-readyCh:
		logger.Log.Infof("logged in as %s via %s", name, s.opts.Addr)
		return nil
	case <-loopDone:
		return s.failLogin(conn, transport.ErrConnectionClosed)
	case <-ctx.Done():
		// The server may already hold us as online; tell it we left.
		s.Logout()
		return fmt.Errorf("%w: %w", ErrLoginFailed, ctx.Err())
	}
}

func (s *Session) failLogin(conn transport.Conn, cause error) error {
	logger.Log.Warnf("login %s failed: %v", s.Name(), cause)
	s.teardown(conn)
	return fmt.Errorf("%w: %w", ErrLoginFailed, cause)
}

// teardown closes conn and drops local state if conn is still current. It
// reports whether the session was Online.
func (s *Session) teardown(conn transport.Conn) (wasOnline bool) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		_ = conn.Close()
		return false
	}
	wasOnline = s.state == StateOnline
	s.state = StateDisconnected
	s.conn = nil
	s.mu.Unlock()

	_ = conn.Close()

	s.mu.Lock()
	s.presence.Clear()
	s.floor = nil
	s.bag = nil
	s.focus = ""
	s.mu.Unlock()
	return wasOnline
}

// Logout tells the server we are leaving, then tears the session down. The
// Offline frame is best effort; local teardown always happens.
func (s *Session) Logout() {
	s.mu.Lock()
	conn, name, online := s.conn, s.name, s.state == StateOnline
	if conn == nil {
		s.mu.Unlock()
		return
	}
	// Stop new requests before the goodbye goes out.
	s.state = StateDisconnected
	s.mu.Unlock()

	if online {
		if err := conn.Send(protocol.Encode(protocol.CmdOffline, name)); err != nil {
			logger.Log.Debugf("logout %s: offline frame not sent: %v", name, err)
		}
	}
	s.teardown(conn)
	logger.Log.Infof("logged out %s", name)
}

// Done is closed when the current receive loop has exited.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopDone
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// LocalPlayer returns the local player once the handshake has completed.
func (s *Session) LocalPlayer() (protocol.PlayerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presence.Local()
	if !ok {
		return protocol.PlayerState{}, false
	}
	return *p, true
}

// Player looks up any known player.
func (s *Session) Player(name string) (protocol.PlayerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence.Get(name)
}

// Players returns every known player, local included, sorted by name.
func (s *Session) Players() []protocol.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence.Snapshot()
}

// FloorItems returns the items currently visible on the floor.
func (s *Session) FloorItems() []protocol.FloorItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.FloorItem(nil), s.floor...)
}

// Inventory returns the last bag the server sent for the local player.
func (s *Session) Inventory() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bag...)
}

// Focus is the remote player currently targeted, or "".
func (s *Session) Focus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

// SetFocus targets a known remote player. An empty name clears the focus.
func (s *Session) SetFocus(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		if _, ok := s.presence.Get(name); !ok || name == s.name {
			return fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
		}
	}
	s.focus = name
	return nil
}

// send writes one frame while Online.
func (s *Session) send(cmd protocol.Command, payload string) error {
	s.mu.Lock()
	conn, online := s.conn, s.state == StateOnline
	s.mu.Unlock()
	if !online || conn == nil {
		return ErrNotOnline
	}
	if err := conn.Send(protocol.Encode(cmd, payload)); err != nil {
		return fmt.Errorf("client: send %s: %w", cmd, err)
	}
	return nil
}

// RequestMove moves the local player and reports the new position.
func (s *Session) RequestMove(x, y int) error {
	s.mu.Lock()
	if p, ok := s.presence.Local(); ok {
		p.X, p.Y = x, y
	}
	name := s.name
	s.mu.Unlock()
	return s.send(protocol.CmdAction, protocol.Move{Name: name, X: x, Y: y}.Encode())
}

// SendMessage broadcasts chat text as "name : text".
func (s *Session) SendMessage(text string) error {
	return s.send(protocol.CmdTextMessage, s.Name()+" : "+text)
}

// RequestSync asks the server for every other player's state.
func (s *Session) RequestSync() error {
	return s.send(protocol.CmdSyncPlayerData, s.Name())
}

// RequestPickup asks to take an item off the floor. The server answers with
// a PickItem notice if we won it.
func (s *Session) RequestPickup(item protocol.FloorItem) error {
	return s.send(protocol.CmdPickItem, protocol.PickupRequest{Name: s.Name(), Item: item}.Encode())
}

// Point is a viewport coordinate.
type Point struct{ X, Y int }

// RequestFire announces a shot from the local player.
func (s *Session) RequestFire(weapon string, lifetime int, from, to Point) error {
	f := protocol.Fire{
		From:     s.Name(),
		Weapon:   weapon,
		Lifetime: lifetime,
		X0:       from.X,
		Y0:       from.Y,
		X1:       to.X,
		Y1:       to.Y,
	}
	return s.send(protocol.CmdFireSingle, f.Encode())
}

// RequestHit reports damage the local player took.
func (s *Session) RequestHit(damage int) error {
	return s.send(protocol.CmdHit, protocol.HitReport{Name: s.Name(), Damage: damage}.Encode())
}

// RequestCharacterItems asks for a character's bag; the answer arrives through
// Listener.OnInventory.
func (s *Session) RequestCharacterItems(target string) error {
	return s.send(protocol.CmdRequestCharacterItem, protocol.CharacterItemRequest{From: s.Name(), Target: target}.Encode())
}

// RequestTakeItem moves a bag slot of target into the local player's bag.
func (s *Session) RequestTakeItem(target string, slot int) error {
	return s.send(protocol.CmdRequestPickItem, protocol.SlotTransfer{From: s.Name(), Target: target, Slot: slot}.Encode())
}

// RequestDropItem empties one bag slot onto the floor.
func (s *Session) RequestDropItem(slot int) error {
	return s.send(protocol.CmdRequestDropItem, protocol.SlotDrop{From: s.Name(), Slot: slot}.Encode())
}

// RequestClearItem empties the local player's hand.
func (s *Session) RequestClearItem() error {
	s.mu.Lock()
	if p, ok := s.presence.Local(); ok {
		p.Item = ""
	}
	s.mu.Unlock()
	return s.send(protocol.CmdClearItem, s.Name())
}

// SyncEvery requests a sync every interval until ctx ends or the session
// leaves the Online state.
func (s *Session) SyncEvery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.RequestSync(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
