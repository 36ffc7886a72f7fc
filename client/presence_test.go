package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dungeonsync/protocol"
)

func player(name string, x, y int) protocol.PlayerState {
	return protocol.PlayerState{Name: name, HP: protocol.DefaultHealth, X: x, Y: y}
}

func names(ps *PresenceSet) []string {
	var out []string
	for _, p := range ps.Snapshot() {
		out = append(out, p.Name)
	}
	return out
}

func TestReconcileRemovesUnlisted(t *testing.T) {
	ps := NewPresenceSet("Hero")
	ps.SetLocal(player("Hero", 0, 0))
	ps.Reconcile([]protocol.PlayerState{player("A", 1, 1), player("B", 2, 2)})
	require.Equal(t, []string{"A", "B", "Hero"}, names(ps))

	diff := ps.Reconcile([]protocol.PlayerState{player("A", 5, 5)})

	assert.Equal(t, []string{"A", "Hero"}, names(ps))
	assert.Equal(t, []string{"B"}, diff.Removed)
	require.Len(t, diff.Updated, 1)
	a, ok := ps.Get("A")
	require.True(t, ok)
	assert.Equal(t, 5, a.X)
}

func TestReconcileIsIdempotent(t *testing.T) {
	ps := NewPresenceSet("Hero")
	ps.SetLocal(player("Hero", 0, 0))
	listing := []protocol.PlayerState{player("A", 1, 1), player("B", 2, 2)}

	first := ps.Reconcile(listing)
	snapshot := ps.Snapshot()
	second := ps.Reconcile(listing)

	assert.Len(t, first.Added, 2)
	assert.Empty(t, second.Added)
	assert.Empty(t, second.Removed)
	assert.Equal(t, snapshot, ps.Snapshot())
}

func TestReconcileNeverTouchesLocal(t *testing.T) {
	ps := NewPresenceSet("Hero")
	ps.SetLocal(player("Hero", 7, 7))

	ps.Reconcile([]protocol.PlayerState{player("Hero", 99, 99)})
	ps.Reconcile(nil)

	local, ok := ps.Local()
	require.True(t, ok)
	assert.Equal(t, 7, local.X)
	assert.Equal(t, 1, ps.Len())
}

func TestReconcileEmptyListingClearsRemotes(t *testing.T) {
	ps := NewPresenceSet("Hero")
	ps.SetLocal(player("Hero", 0, 0))
	ps.Reconcile([]protocol.PlayerState{player("Villain", 50, 20)})

	diff := ps.Reconcile(nil)

	assert.Equal(t, []string{"Villain"}, diff.Removed)
	assert.Equal(t, []string{"Hero"}, names(ps))
}
