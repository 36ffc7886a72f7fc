package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"dungeonsync/logger"
	"dungeonsync/protocol"
	"dungeonsync/store"
)

var (
	// ErrNameTaken is the registry conflict: the name is verified or online
	// on another connection.
	ErrNameTaken   = errors.New("server: name already taken")
	ErrInvalidName = errors.New("server: invalid player name")
	// ErrNotVerified rejects Online from a connection that did not verify the name.
	ErrNotVerified = errors.New("server: name not verified on this connection")
	ErrNotOnline   = errors.New("server: player not online")
	// ErrWrongPlayer rejects a frame that speaks for someone else.
	ErrWrongPlayer = errors.New("server: frame names another player")
)

// Registry is the server's authoritative world: connections, name
// reservations, online players and the floor. All of it sits behind one
// mutex so that every mutation and the notifications it causes happen in a
// single order.
type Registry struct {
	mu       sync.RWMutex
	peers    map[ConnID]*Peer
	reserved map[string]ConnID
	names    map[ConnID]string
	players  map[string]*Player
	floor    []protocol.FloorItem

	m *Metrics
	// saves persists changed characters; nil keeps everything in memory.
	saves *saveQueue
}

func NewRegistry(m *Metrics) *Registry {
	return &Registry{
		peers:    make(map[ConnID]*Peer),
		reserved: make(map[string]ConnID),
		names:    make(map[ConnID]string),
		players:  make(map[string]*Player),
		m:        m,
	}
}

// AddPeer registers a freshly accepted connection.
func (r *Registry) AddPeer(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ID] = p
}

// PeerCount is the number of open connections, verified or not.
func (r *Registry) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Reserve claims name for conn. The claim holds until the connection goes away.
func (r *Registry) Reserve(conn ConnID, name string) error {
	if !protocol.ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.reserved[name]; ok {
		if owner == conn {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	if prev, ok := r.names[conn]; ok {
		if _, online := r.players[prev]; online {
			return fmt.Errorf("%w: connection is online as %q", ErrNameTaken, prev)
		}
		delete(r.reserved, prev)
	}
	r.reserved[name] = conn
	r.names[conn] = name
	logger.Log.Debugf("conn %s reserved %q", conn, name)
	return nil
}

// Reserved reports whether conn holds the reservation for name.
func (r *Registry) Reserved(conn ConnID, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reserved[name] == conn
}

// Admit puts a loaded character online for conn and returns what the client
// needs to initialise itself. Admitting an already online player again just
// returns its current state.
func (r *Registry) Admit(conn ConnID, c store.Character) (protocol.OnlineReply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reserved[c.Name] != conn {
		return protocol.OnlineReply{}, fmt.Errorf("%w: %q", ErrNotVerified, c.Name)
	}
	p, ok := r.players[c.Name]
	if !ok {
		c.Normalize()
		p = &Player{Character: c.Clone(), Conn: conn, Joined: time.Now()}
		r.players[c.Name] = p
		r.m.SetPlayersOnline(len(r.players))
		logger.Log.Infof("player %q online on conn %s (%d online)", c.Name, conn, len(r.players))
	}
	return protocol.OnlineReply{
		Player: p.State(),
		Floor:  append([]protocol.FloorItem(nil), r.floor...),
	}, nil
}

// Leave takes conn's player offline. The returned character is the final
// state, queued for persisting; ok is false if conn never came online. The
// name stays reserved until that final record is written, so nobody can log
// in as the player and load a stale record in between.
func (r *Registry) Leave(conn ConnID) (c store.Character, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, has := r.names[conn]
	if !has {
		return store.Character{}, false
	}
	delete(r.names, conn)
	p, online := r.players[name]
	if !online || p.Conn != conn {
		r.releaseLocked(name, conn)
		return store.Character{}, false
	}
	delete(r.players, name)
	r.m.SetPlayersOnline(len(r.players))
	logger.Log.Infof("player %q offline (%d online)", name, len(r.players))

	c = p.Character.Clone()
	if r.saves == nil {
		r.releaseLocked(name, conn)
		return c, true
	}
	r.saves.push(c, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.releaseLocked(name, conn)
	})
	return c, true
}

func (r *Registry) releaseLocked(name string, conn ConnID) {
	if r.reserved[name] == conn {
		delete(r.reserved, name)
	}
}

// saveLocked queues the current record of each player.
func (r *Registry) saveLocked(players ...*Player) {
	if r.saves == nil {
		return
	}
	for _, p := range players {
		r.saves.push(p.Character.Clone(), nil)
	}
}

// Taken reports whether name is reserved or online on any connection.
func (r *Registry) Taken(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.reserved[name]
	return ok
}

// RemovePeer forgets a closed connection. Call Leave first.
func (r *Registry) RemovePeer(conn ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, conn)
}

// OnlineName is the name conn is online as, if any.
func (r *Registry) OnlineName(conn ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[conn]
	if !ok {
		return "", false
	}
	p, online := r.players[name]
	if !online || p.Conn != conn {
		return "", false
	}
	return name, true
}

// Sync renders every online player except name as a sync reply.
func (r *Registry) Sync(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	others := make([]protocol.PlayerState, 0, len(r.players))
	for n, p := range r.players {
		if n != name {
			others = append(others, p.State())
		}
	}
	return protocol.EncodeSync(others)
}

// Move records a new position for name.
func (r *Registry) Move(name string, x, y int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotOnline, name)
	}
	p.X, p.Y = x, y
	return nil
}

// ClearItem empties name's hand.
func (r *Registry) ClearItem(name string) (store.Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[name]
	if !ok {
		return store.Character{}, fmt.Errorf("%w: %q", ErrNotOnline, name)
	}
	p.Item = ""
	r.saveLocked(p)
	return p.Character.Clone(), nil
}

// Character returns a copy of an online player's record.
func (r *Registry) Character(name string) (store.Character, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[name]
	if !ok {
		return store.Character{}, false
	}
	return p.Character.Clone(), true
}

// Players lists every online player for the admin API, sorted by name.
func (r *Registry) Players() []PlayerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		info := PlayerInfo{
			PlayerState: p.State(),
			Slots:       append([]string(nil), p.Slots...),
			Conn:        p.Conn,
			Joined:      p.Joined,
		}
		if peer, ok := r.peers[p.Conn]; ok {
			info.Addr = peer.Addr()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Broadcast queues a frame to every online player except the connection
// except. Pass "" to reach everyone. It returns the number of recipients.
func (r *Registry) Broadcast(cmd protocol.Command, payload string, except ConnID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.broadcastLocked(cmd, payload, except)
}

func (r *Registry) broadcastLocked(cmd protocol.Command, payload string, except ConnID) int {
	n := 0
	for _, p := range r.players {
		if p.Conn == except {
			continue
		}
		if peer, ok := r.peers[p.Conn]; ok && peer.Enqueue(cmd, payload) {
			n++
		}
	}
	return n
}

// SendTo queues a frame to one online player.
func (r *Registry) SendTo(name string, cmd protocol.Command, payload string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sendLocked(name, cmd, payload)
}

func (r *Registry) sendLocked(name string, cmd protocol.Command, payload string) bool {
	p, ok := r.players[name]
	if !ok {
		return false
	}
	peer, ok := r.peers[p.Conn]
	return ok && peer.Enqueue(cmd, payload)
}

// CloseAll queues a frame to every connection, online or not, then closes
// them all.
func (r *Registry) CloseAll(cmd protocol.Command, payload string) []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, peer := range r.peers {
		peer.Enqueue(cmd, payload)
		peer.Close()
		out = append(out, peer)
	}
	return out
}
