package store

import (
	"context"
	"fmt"
	"time"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Options selects and tunes a Store.
type Options struct {
	Driver      string
	Dir         string
	DatabaseURL string
	CacheSize   int
	CacheTTL    time.Duration
}

// Open builds the configured store. File and Postgres stores get an LRU in
// front when CacheSize is positive.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverFile:
		s, err = NewFile(opts.Dir)
	case DriverPostgres:
		s, err = NewPostgres(ctx, opts.DatabaseURL, 0)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if opts.CacheSize > 0 {
		s = NewCached(s, opts.CacheSize, opts.CacheTTL)
	}
	return s, nil
}
