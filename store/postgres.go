package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createCharactersTable = `
CREATE TABLE IF NOT EXISTS characters (
	name       TEXT PRIMARY KEY,
	hp         INTEGER NOT NULL,
	x          INTEGER NOT NULL,
	y          INTEGER NOT NULL,
	item       TEXT NOT NULL DEFAULT '',
	slots      TEXT[] NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres keeps characters in a PostgreSQL table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, pings and makes sure the table exists.
func NewPostgres(ctx context.Context, connString string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("store: parse connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createCharactersTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: create table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Load(ctx context.Context, name string) (Character, error) {
	var c Character
	err := p.pool.QueryRow(ctx,
		`SELECT name, hp, x, y, item, slots FROM characters WHERE name = $1`, name,
	).Scan(&c.Name, &c.HP, &c.X, &c.Y, &c.Item, &c.Slots)
	if errors.Is(err, pgx.ErrNoRows) {
		return Character{}, ErrNotFound
	}
	if err != nil {
		return Character{}, fmt.Errorf("store: load %s: %w", name, err)
	}
	return c, nil
}

func (p *Postgres) Save(ctx context.Context, c Character) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO characters (name, hp, x, y, item, slots, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (name) DO UPDATE SET
			hp = EXCLUDED.hp, x = EXCLUDED.x, y = EXCLUDED.y,
			item = EXCLUDED.item, slots = EXCLUDED.slots, updated_at = now()`,
		c.Name, c.HP, c.X, c.Y, c.Item, c.Slots)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", c.Name, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
