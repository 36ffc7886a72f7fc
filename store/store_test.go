package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dungeonsync/protocol"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	c := NewCharacter("Hero")
	c.X, c.Y, c.Item = 40, 50, "003"
	c.Slots[0] = "003"
	require.NoError(t, s.Save(ctx, c))

	got, err := s.Load(ctx, "Hero")
	require.NoError(t, err)
	assert.Equal(t, c, got)

	c.HP = 10
	require.NoError(t, s.Save(ctx, c))
	got, err = s.Load(ctx, "Hero")
	require.NoError(t, err)
	assert.Equal(t, 10, got.HP)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryIsolatesSlots(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := NewCharacter("Hero")
	require.NoError(t, m.Save(ctx, c))

	c.Slots[0] = "007"
	got, err := m.Load(ctx, "Hero")
	require.NoError(t, err)
	assert.Empty(t, got.Slots[0])
}

func TestFile(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, f)
}

func TestFileEscapesNames(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Save(context.Background(), NewCharacter("../evil")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "..%2Fevil.json", entries[0].Name())
}

type countingStore struct {
	*Memory
	loads int
}

func (c *countingStore) Load(ctx context.Context, name string) (Character, error) {
	c.loads++
	return c.Memory.Load(ctx, name)
}

func TestCached(t *testing.T) {
	inner := &countingStore{Memory: NewMemory()}
	s := NewCached(inner, 8, time.Minute)
	exerciseStore(t, s)

	ctx := context.Background()
	before := inner.loads
	_, err := s.Load(ctx, "Hero")
	require.NoError(t, err)
	assert.Equal(t, before, inner.loads, "cached load must not reach the inner store")
	assert.Equal(t, 1, s.Len())
}

func TestLoadOrNew(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	c, err := LoadOrNew(ctx, m, "Hero")
	require.NoError(t, err)
	assert.Equal(t, protocol.PlayerState{Name: "Hero", HP: 100}, c.State())
	assert.Len(t, c.Slots, protocol.InventorySlots)

	require.NoError(t, m.Save(ctx, Character{Name: "Old", HP: -3}))
	c, err = LoadOrNew(ctx, m, "Old")
	require.NoError(t, err)
	assert.Equal(t, 0, c.HP)
	assert.Len(t, c.Slots, protocol.InventorySlots)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Options{Driver: DriverFile, Dir: t.TempDir(), CacheSize: 4, CacheTTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &Cached{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Driver: "redis"})
	assert.Error(t, err)
}

func TestPostgres(t *testing.T) {
	url := os.Getenv("DUNGEON_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DUNGEON_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := NewPostgres(ctx, url, 2)
	require.NoError(t, err)
	defer p.Close()
	_, _ = p.pool.Exec(ctx, `DELETE FROM characters WHERE name IN ('Hero', 'Nobody')`)

	exerciseStore(t, p)
}
