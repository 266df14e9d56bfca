// Package market is C7: the background price-drift process. It
// generalizes the teacher's tomb.v2-supervised worker loop
// (internal/worker.go's WorkerPool.Setup / pool.worker, and
// internal/net/server.go's Run) from a connection-accept loop to a
// timer-driven quote generator. It never creates orders or fills —
// spec §4.7 is explicit that the synthetic price is a reference quote
// only.
package market

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"bourse/internal/book"
	"bourse/internal/bus"
)

// Config tunes the random walk.
type Config struct {
	Symbol        string
	InitialPrice  decimal.Decimal
	Tick          decimal.Decimal
	MaxDriftTicks int64 // bound on how many ticks the price may move per step
	Interval      time.Duration
	Depth         int
}

// Quote is the payload of a market_data event.
type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Bids      []book.Level
	Asks      []book.Level
	Timestamp time.Time
}

// SnapshotFunc reads the current top-of-book without the simulator
// needing to know anything about the book or the facade's lock.
type SnapshotFunc func(depth int) (bids, asks []book.Level)

// PublishFunc hands a market_data event to the bus. It is injected
// rather than importing *bus.Bus directly so tests can assert on
// published payloads without wiring a real bus.
type PublishFunc func(kind bus.Kind, data any)

// Simulator runs the random walk on its own goroutine, supervised by a
// tomb.Tomb exactly like the teacher's worker pool.
type Simulator struct {
	cfg      Config
	snapshot SnapshotFunc
	publish  PublishFunc
	rng      *rand.Rand
	current  decimal.Decimal
	t        tomb.Tomb
}

// New builds a simulator. It does not start running until Start is
// called.
func New(cfg Config, snapshot SnapshotFunc, publish PublishFunc) *Simulator {
	if cfg.Depth <= 0 {
		cfg.Depth = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Simulator{
		cfg:      cfg,
		snapshot: snapshot,
		publish:  publish,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		current:  cfg.InitialPrice,
	}
}

// Start begins the background loop.
func (s *Simulator) Start() {
	s.t.Go(s.run)
}

// Stop cancels the loop and waits for it to exit cleanly.
func (s *Simulator) Stop() error {
	s.t.Kill(nil)
	return s.t.Wait()
}

func (s *Simulator) run() error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.t.Dying():
			return nil
		case <-ticker.C:
			s.step()
		}
	}
}

// step advances the random walk by one drift step (at most MaxDriftTicks
// ticks) and publishes the result. Step exports it for tests that want
// deterministic single-step control without waiting on the ticker.
func (s *Simulator) step() {
	s.current = s.current.Add(s.drift())
	if s.current.Sign() <= 0 {
		s.current = s.cfg.InitialPrice
	}
	bids, asks := s.snapshot(s.cfg.Depth)
	s.publish(bus.KindMarketData, Quote{
		Symbol:    s.cfg.Symbol,
		Price:     s.current,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now(),
	})
}

// Step exposes step for deterministic tests.
func (s *Simulator) Step() { s.step() }

// drift returns a random move of between -MaxDriftTicks and
// +MaxDriftTicks, already snapped to the configured tick size.
func (s *Simulator) drift() decimal.Decimal {
	if s.cfg.MaxDriftTicks <= 0 {
		return decimal.Zero
	}
	span := 2*s.cfg.MaxDriftTicks + 1
	n := s.rng.Int63n(span) - s.cfg.MaxDriftTicks
	return s.cfg.Tick.Mul(decimal.NewFromInt(n))
}

// Current returns the simulator's latest synthetic price.
func (s *Simulator) Current() decimal.Decimal { return s.current }
