package server

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"dungeonsync/logger"
	"dungeonsync/protocol"
)

// The playground is the area spawned items and respawned players land in.
const (
	PlaygroundWidth  = 800
	PlaygroundHeight = 440
)

// Point is a playground coordinate.
type Point struct{ X, Y int }

func randomPoint() Point {
	return Point{X: rand.IntN(PlaygroundWidth), Y: rand.IntN(PlaygroundHeight)}
}

// randomItemCode picks any catalog item except the empty hand.
func randomItemCode() string {
	return protocol.Catalog[1+rand.IntN(len(protocol.Catalog)-1)].Code
}

// SpawnConfig drives the floor item spawner. It can be changed while the
// server runs.
type SpawnConfig struct {
	// Interval between spawns; zero pauses the spawner.
	Interval time.Duration
	// MaxItems caps the floor; zero means no cap.
	MaxItems int
}

// Spawner drops a random weapon somewhere on the playground every interval.
type Spawner struct {
	reg *Registry

	mu     sync.Mutex
	cfg    SpawnConfig
	reload chan struct{}
}

func NewSpawner(reg *Registry, cfg SpawnConfig) *Spawner {
	return &Spawner{reg: reg, cfg: cfg, reload: make(chan struct{}, 1)}
}

func (s *Spawner) Config() SpawnConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig swaps the configuration; a running loop picks it up at once.
func (s *Spawner) SetConfig(cfg SpawnConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	select {
	case s.reload <- struct{}{}:
	default:
	}
	logger.Log.Infof("spawner config updated: interval=%s maxItems=%d", cfg.Interval, cfg.MaxItems)
}

// SpawnOne places one random item. It fails with ErrFloorFull at the cap.
func (s *Spawner) SpawnOne() (protocol.FloorItem, error) {
	pt := randomPoint()
	item := protocol.FloorItem{Code: randomItemCode(), X: pt.X, Y: pt.Y}
	if err := s.reg.Spawn(item, s.Config().MaxItems); err != nil {
		return protocol.FloorItem{}, err
	}
	return item, nil
}

// Run spawns until ctx is done.
func (s *Spawner) Run(ctx context.Context) {
	for {
		interval := s.Config().Interval
		var tick <-chan time.Time
		var ticker *time.Ticker
		if interval > 0 {
			ticker = time.NewTicker(interval)
			tick = ticker.C
		}
		restart := false
		for !restart {
			select {
			case <-ctx.Done():
				if ticker != nil {
					ticker.Stop()
				}
				return
			case <-s.reload:
				restart = true
			case <-tick:
				if _, err := s.SpawnOne(); err != nil && !errors.Is(err, ErrFloorFull) {
					logger.Log.Warnf("spawn failed: %v", err)
				}
			}
		}
		if ticker != nil {
			ticker.Stop()
		}
	}
}
