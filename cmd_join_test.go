package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dungeonsync/client"
	"dungeonsync/protocol"
	"dungeonsync/server"
	"dungeonsync/store"
	"dungeonsync/transport"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startTestServer(t *testing.T) (*server.Server, string) {
	t.Helper()
	srv := server.New(server.Config{}, store.NewMemory())
	ln, err := transport.Listen("127.0.0.1:0", transport.Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv, ln.Addr().String()
}

func TestRunCommand(t *testing.T) {
	srv, addr := startTestServer(t)
	out := &syncBuffer{}
	ui := &consoleUI{out: out}
	s := client.New(client.Options{Addr: addr, Listener: ui})
	require.NoError(t, s.Login(context.Background(), "Hero"))
	defer s.Logout()

	quit, err := runCommand(s, "/move 3 4", ui)
	require.NoError(t, err)
	assert.False(t, quit)
	require.Eventually(t, func() bool {
		c, _ := srv.Registry().Character("Hero")
		return c.X == 3 && c.Y == 4
	}, time.Second, 5*time.Millisecond)

	_, err = runCommand(s, "hello there", ui)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Hero : hello there")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, srv.Registry().Spawn(protocol.FloorItem{Code: "007", X: 1, Y: 1}, 0))
	require.Eventually(t, func() bool { return len(s.FloorItems()) == 1 }, time.Second, 5*time.Millisecond)
	_, err = runCommand(s, "/pick 0", ui)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "you picked up RPG")
	}, time.Second, 5*time.Millisecond)

	quit, err = runCommand(s, "/quit", ui)
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestRunCommandRejectsBadInput(t *testing.T) {
	ui := &consoleUI{out: &syncBuffer{}}
	s := client.New(client.Options{})

	_, err := runCommand(s, "/move 3", ui)
	assert.Error(t, err)
	_, err = runCommand(s, "/move a b", ui)
	assert.Error(t, err)
	_, err = runCommand(s, "/pick 0", ui)
	assert.Error(t, err)
	_, err = runCommand(s, "/dance", ui)
	assert.Error(t, err)
	_, err = runCommand(s, "hi", ui)
	assert.ErrorIs(t, err, client.ErrNotOnline)

	quit, err := runCommand(s, "   ", ui)
	assert.NoError(t, err)
	assert.False(t, quit)
}

func TestConsoleUIInventory(t *testing.T) {
	out := &syncBuffer{}
	ui := &consoleUI{out: out}

	ui.OnInventory(protocol.ItemPack{Name: "Hero", Slots: []string{"001", ""}})

	assert.Equal(t, "* Hero's bag: 0:Rifle 1:-\n", out.String())
}
