package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dungeonsync/protocol"
	"dungeonsync/transport"
)

type recorder struct {
	NopListener

	mu         sync.Mutex
	left       []string
	focusLost  []string
	messages   []string
	picked     []string
	health     []int
	respawns   []protocol.PlayerState
	packs      []protocol.ItemPack
	terminated []error
}

func (r *recorder) OnPlayerLeft(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left = append(r.left, name)
}

func (r *recorder) OnFocusCleared(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.focusLost = append(r.focusLost, name)
}

func (r *recorder) OnTextMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

func (r *recorder) OnItemPicked(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.picked = append(r.picked, code)
}

func (r *recorder) OnHealthChanged(hp int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health = append(r.health, hp)
}

func (r *recorder) OnRespawn(p protocol.PlayerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.respawns = append(r.respawns, p)
}

func (r *recorder) OnInventory(pack protocol.ItemPack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packs = append(r.packs, pack)
}

func (r *recorder) OnSessionTerminated(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminated = append(r.terminated, err)
}

func (r *recorder) terminations() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.terminated...)
}

// fakeServer is the far end of a net.Pipe, scripted by the test.
type fakeServer struct {
	t    *testing.T
	conn transport.Conn
}

func (f *fakeServer) expect(cmd protocol.Command) string {
	f.t.Helper()
	text, err := f.conn.Receive()
	require.NoError(f.t, err)
	frame, err := protocol.Decode(text)
	require.NoError(f.t, err)
	require.Equal(f.t, cmd, frame.Cmd, "payload %q", frame.Payload)
	return frame.Payload
}

func (f *fakeServer) send(cmd protocol.Command, payload string) {
	f.t.Helper()
	require.NoError(f.t, f.conn.Send(protocol.Encode(cmd, payload)))
}

func (f *fakeServer) sendRaw(text string) {
	f.t.Helper()
	require.NoError(f.t, f.conn.Send(text))
}

func newPipeSession(t *testing.T, l Listener) (*Session, *fakeServer) {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()
	opts := transport.Options{WriteTimeout: time.Second}
	srv := &fakeServer{t: t, conn: transport.NewConn(serverEnd, opts)}
	s := New(Options{
		Addr:             "pipe",
		Transport:        opts,
		HandshakeTimeout: 2 * time.Second,
		Listener:         l,
		Dial: func(ctx context.Context, addr string, o transport.Options) (transport.Conn, error) {
			return transport.NewConn(clientEnd, o), nil
		},
	})
	t.Cleanup(func() {
		_ = srv.conn.Close()
		s.Logout()
	})
	return s, srv
}

func loginAsync(s *Session, name string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Login(context.Background(), name) }()
	return done
}

// login drives a successful handshake with the given online reply.
func login(t *testing.T, s *Session, srv *fakeServer, name, reply string) {
	t.Helper()
	done := loginAsync(s, name)
	assert.Equal(t, name, srv.expect(protocol.CmdVerification))
	srv.send(protocol.CmdVerification, protocol.EncodeResult(protocol.ResultSuccess))
	assert.Equal(t, name, srv.expect(protocol.CmdOnline))
	srv.send(protocol.CmdOnline, reply)
	require.NoError(t, <-done)
}

func TestLoginSuccess(t *testing.T) {
	s, srv := newPipeSession(t, nil)

	login(t, s, srv, "Hero", "Hero|100|0|0|,")

	assert.Equal(t, StateOnline, s.State())
	assert.Equal(t, []protocol.PlayerState{{Name: "Hero", HP: 100}}, s.Players())
	assert.Empty(t, s.FloorItems())
}

func TestLoginInstallsFloorItems(t *testing.T) {
	s, srv := newPipeSession(t, nil)

	login(t, s, srv, "Hero", "Hero|80|3|4|001,007|5|5|003|1|2")

	me, ok := s.LocalPlayer()
	require.True(t, ok)
	assert.Equal(t, protocol.PlayerState{Name: "Hero", HP: 80, X: 3, Y: 4, Item: "001"}, me)
	assert.Equal(t, []protocol.FloorItem{{Code: "007", X: 5, Y: 5}, {Code: "003", X: 1, Y: 2}}, s.FloorItems())
}

func TestLoginNameTaken(t *testing.T) {
	s, srv := newPipeSession(t, nil)

	done := loginAsync(s, "Hero")
	srv.expect(protocol.CmdVerification)
	srv.send(protocol.CmdVerification, protocol.EncodeResult(protocol.ResultFail))

	err := <-done
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.ErrorIs(t, err, ErrNameTaken)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestLoginUnexpectedVerificationResult(t *testing.T) {
	for _, r := range []protocol.Result{protocol.ResultNone, protocol.ResultWaiting} {
		t.Run(r.String(), func(t *testing.T) {
			s, srv := newPipeSession(t, nil)

			done := loginAsync(s, "Hero")
			srv.expect(protocol.CmdVerification)
			srv.send(protocol.CmdVerification, protocol.EncodeResult(r))

			err := <-done
			require.ErrorIs(t, err, ErrLoginFailed)
			assert.ErrorIs(t, err, ErrUnexpectedResult)
			assert.NotErrorIs(t, err, ErrNameTaken)
			assert.Equal(t, StateDisconnected, s.State())
		})
	}
}

func TestLoginRejectsUnsendableName(t *testing.T) {
	dialed := false
	s := New(Options{
		Addr: "nowhere",
		Dial: func(context.Context, string, transport.Options) (transport.Conn, error) {
			dialed = true
			return nil, errors.New("unreachable")
		},
	})

	err := s.Login(context.Background(), "勇者")

	require.ErrorIs(t, err, ErrLoginFailed)
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.False(t, dialed)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestLoginDialFailure(t *testing.T) {
	s := New(Options{
		Addr: "nowhere",
		Dial: func(context.Context, string, transport.Options) (transport.Conn, error) {
			return nil, &transport.ConnectionError{Addr: "nowhere", Err: errors.New("refused")}
		},
	})

	err := s.Login(context.Background(), "Hero")

	require.ErrorIs(t, err, ErrLoginFailed)
	var ce *transport.ConnectionError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestLoginServerHangsUp(t *testing.T) {
	s, srv := newPipeSession(t, nil)

	done := loginAsync(s, "Hero")
	srv.expect(protocol.CmdVerification)
	require.NoError(t, srv.conn.Close())

	err := <-done
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestLoginCanceled(t *testing.T) {
	s, srv := newPipeSession(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Login(ctx, "Hero") }()
	srv.expect(protocol.CmdVerification)

	err := <-done
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestLoginTwiceRejected(t *testing.T) {
	s, srv := newPipeSession(t, nil)
	login(t, s, srv, "Hero", "Hero|100|0|0|,")

	assert.ErrorIs(t, s.Login(context.Background(), "Hero"), ErrLoginFailed)
	assert.Equal(t, StateOnline, s.State())
}

func TestSyncReconcilesPresence(t *testing.T) {
	rec := &recorder{}
	s, srv := newPipeSession(t, rec)
	login(t, s, srv, "Hero", "Hero|100|0|0|,")

	srv.send(protocol.CmdSyncPlayerData, "1,Villain|Villain|100|50|20")
	require.Eventually(t, func() bool {
		_, ok := s.Player("Villain")
		return ok
	}, time.Second, 5*time.Millisecond)
	v, _ := s.Player("Villain")
	assert.Equal(t, protocol.PlayerState{Name: "Villain", HP: 100, X: 50, Y: 20}, v)
	require.NoError(t, s.SetFocus("Villain"))

	srv.send(protocol.CmdSyncPlayerData, "0,")
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.focusLost) == 1
	}, time.Second, 5*time.Millisecond)

	_, ok := s.Player("Villain")
	assert.False(t, ok)
	assert.Empty(t, s.Focus())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"Villain"}, rec.left)
	assert.Equal(t, []string{"Villain"}, rec.focusLost)
}

func TestSetFocusRejectsUnknown(t *testing.T) {
	s, srv := newPipeSession(t, nil)
	login(t, s, srv, "Hero", "Hero|100|0|0|,")

	assert.ErrorIs(t, s.SetFocus("Ghost"), ErrUnknownPlayer)
	assert.ErrorIs(t, s.SetFocus("Hero"), ErrUnknownPlayer)
	assert.NoError(t, s.SetFocus(""))
}

func TestPickItemNotices(t *testing.T) {
	rec := &recorder{}
	s, srv := newPipeSession(t, rec)
	login(t, s, srv, "Hero", "Hero|100|0|0|,007|5|5|003|1|1")

	srv.send(protocol.CmdPickItem, "-003")
	require.Eventually(t, func() bool { return len(s.FloorItems()) == 1 }, time.Second, 5*time.Millisecond)
	me, _ := s.LocalPlayer()
	assert.Empty(t, me.Item)

	srv.send(protocol.CmdPickItem, "007")
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.picked) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, s.FloorItems())
	me, _ = s.LocalPlayer()
	assert.Equal(t, "007", me.Item)
}

func TestPickItemWithPositionRemovesExactItem(t *testing.T) {
	s, srv := newPipeSession(t, nil)
	login(t, s, srv, "Hero", "Hero|100|0|0|,007|5|5|007|9|9")

	srv.send(protocol.CmdPickItem, "-007|9|9")

	require.Eventually(t, func() bool { return len(s.FloorItems()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []protocol.FloorItem{{Code: "007", X: 5, Y: 5}}, s.FloorItems())
}

func TestSpawnHitRespawnAndInventory(t *testing.T) {
	rec := &recorder{}
	s, srv := newPipeSession(t, rec)
	login(t, s, srv, "Hero", "Hero|100|0|0|002,")

	srv.send(protocol.CmdSpawnItem, "004|10|20")
	srv.send(protocol.CmdHit, "40")
	srv.send(protocol.CmdRespawn, "100|300|200|")
	srv.send(protocol.CmdRequestCharacterItem, "Hero,001|||||")
	srv.send(protocol.CmdTextMessage, "Villain : hi")

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.messages) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []protocol.FloorItem{{Code: "004", X: 10, Y: 20}}, s.FloorItems())
	me, _ := s.LocalPlayer()
	assert.Equal(t, protocol.PlayerState{Name: "Hero", HP: 100, X: 300, Y: 200}, me)
	assert.Equal(t, []string{"001", "", "", "", "", ""}, s.Inventory())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []int{40}, rec.health)
	require.Len(t, rec.respawns, 1)
	assert.Equal(t, []string{"Villain : hi"}, rec.messages)
	assert.Len(t, rec.packs, 1)
}

func TestRequestsReachServer(t *testing.T) {
	s, srv := newPipeSession(t, nil)
	login(t, s, srv, "Hero", "Hero|100|0|0|,")

	go func() { _ = s.RequestMove(3, 4) }()
	assert.Equal(t, "Hero|3|4", srv.expect(protocol.CmdAction))
	me, _ := s.LocalPlayer()
	assert.Equal(t, 3, me.X)

	go func() { _ = s.SendMessage("hello") }()
	assert.Equal(t, "Hero : hello", srv.expect(protocol.CmdTextMessage))

	go func() { _ = s.RequestSync() }()
	assert.Equal(t, "Hero", srv.expect(protocol.CmdSyncPlayerData))

	go func() { _ = s.RequestPickup(protocol.FloorItem{Code: "007", X: 5, Y: 6}) }()
	assert.Equal(t, "Hero,007|5|6", srv.expect(protocol.CmdPickItem))

	go func() { _ = s.RequestFire("2", 30, Point{1, 2}, Point{3, 4}) }()
	assert.Equal(t, "Hero|2|30|1|2|3|4", srv.expect(protocol.CmdFireSingle))

	go func() { _ = s.RequestHit(15) }()
	assert.Equal(t, "Hero|15", srv.expect(protocol.CmdHit))

	go func() { _ = s.RequestTakeItem("Villain", 2) }()
	assert.Equal(t, "Hero|Villain|2", srv.expect(protocol.CmdRequestPickItem))

	go func() { _ = s.RequestDropItem(1) }()
	assert.Equal(t, "Hero|1", srv.expect(protocol.CmdRequestDropItem))
}

func TestRequestsRequireOnline(t *testing.T) {
	s := New(Options{})

	assert.ErrorIs(t, s.RequestMove(1, 1), ErrNotOnline)
	assert.ErrorIs(t, s.SendMessage("hi"), ErrNotOnline)
	assert.ErrorIs(t, s.RequestSync(), ErrNotOnline)
	assert.ErrorIs(t, s.RequestHit(1), ErrNotOnline)
	assert.ErrorIs(t, s.SyncEvery(context.Background(), time.Millisecond), ErrNotOnline)
}

func TestMalformedDiscriminantTearsDown(t *testing.T) {
	rec := &recorder{}
	s, srv := newPipeSession(t, rec)
	login(t, s, srv, "Hero", "Hero|100|0|0|,")

	srv.sendRaw("abc>payload")

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("receive loop did not exit")
	}
	assert.Equal(t, StateDisconnected, s.State())
	assert.Empty(t, s.Players())
	errs := rec.terminations()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], protocol.ErrMalformedFrame)
}

func TestMalformedFieldsDropOneFrame(t *testing.T) {
	s, srv := newPipeSession(t, nil)
	login(t, s, srv, "Hero", "Hero|100|0|0|,")

	srv.send(protocol.CmdSyncPlayerData, "3,Villain|oops")
	srv.send(protocol.CmdSyncPlayerData, "1,Villain|Villain|100|50|20")

	require.Eventually(t, func() bool {
		_, ok := s.Player("Villain")
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateOnline, s.State())
}

func TestServerOfflineTerminatesSession(t *testing.T) {
	rec := &recorder{}
	s, srv := newPipeSession(t, rec)
	login(t, s, srv, "Hero", "Hero|100|0|0|,")

	srv.send(protocol.CmdOffline, "")

	require.Eventually(t, func() bool { return len(rec.terminations()) == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, rec.terminations()[0], ErrServerGone)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestLogoutSendsOffline(t *testing.T) {
	rec := &recorder{}
	s, srv := newPipeSession(t, rec)
	login(t, s, srv, "Hero", "Hero|100|0|0|,")

	go s.Logout()
	assert.Equal(t, "Hero", srv.expect(protocol.CmdOffline))

	<-s.Done()
	assert.Equal(t, StateDisconnected, s.State())
	assert.Empty(t, rec.terminations())
	assert.ErrorIs(t, s.RequestSync(), ErrNotOnline)
}
