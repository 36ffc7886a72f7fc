package store

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached fronts a slower Store with an expiring LRU. Saves write through.
type Cached struct {
	next Store
	lru  *expirable.LRU[string, Character]
}

// NewCached wraps next with a cache of size entries living for ttl.
func NewCached(next Store, size int, ttl time.Duration) *Cached {
	return &Cached{
		next: next,
		lru:  expirable.NewLRU[string, Character](size, nil, ttl),
	}
}

func (c *Cached) Load(ctx context.Context, name string) (Character, error) {
	if ch, ok := c.lru.Get(name); ok {
		return ch.Clone(), nil
	}
	ch, err := c.next.Load(ctx, name)
	if err != nil {
		return Character{}, err
	}
	c.lru.Add(name, ch.Clone())
	return ch, nil
}

func (c *Cached) Save(ctx context.Context, ch Character) error {
	if err := c.next.Save(ctx, ch); err != nil {
		c.lru.Remove(ch.Name)
		return err
	}
	c.lru.Add(ch.Name, ch.Clone())
	return nil
}

// Len reports the number of cached characters.
func (c *Cached) Len() int { return c.lru.Len() }

func (c *Cached) Close() error {
	c.lru.Purge()
	return c.next.Close()
}
