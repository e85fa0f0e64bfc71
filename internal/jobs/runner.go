// Package jobs schedules the engine's periodic work: the full-market
// sweep every few minutes, and the decay and central-bank listing ticks
// hourly. A run that finds its task lease taken is skipped; the next
// tick catches up.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/stockgame/engine/internal/engine"
)

// Config holds the periodic schedule.
type Config struct {
	SweepInterval  time.Duration // full sweep (default: 5m)
	HourlyInterval time.Duration // decay + listing (default: 1h)
}

// DefaultConfig returns the game's standard schedule.
func DefaultConfig() Config {
	return Config{
		SweepInterval:  5 * time.Minute,
		HourlyInterval: time.Hour,
	}
}

// Runner drives the engine on a fixed schedule.
type Runner struct {
	cfg    Config
	engine *engine.Engine
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Runner.
func New(cfg Config, eng *engine.Engine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:    cfg,
		engine: eng,
		logger: logger,
	}
}

// Start begins the scheduling loop.
func (r *Runner) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("job runner started",
		"sweep_interval", r.cfg.SweepInterval,
		"hourly_interval", r.cfg.HourlyInterval,
	)
	return nil
}

// Stop gracefully shuts down the runner.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("job runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main scheduling loop.
func (r *Runner) run() {
	defer r.wg.Done()

	sweep := time.NewTicker(r.cfg.SweepInterval)
	defer sweep.Stop()
	hourly := time.NewTicker(r.cfg.HourlyInterval)
	defer hourly.Stop()

	// Sweep immediately on start.
	r.invoke("full sweep", r.engine.RunFullSweep)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-sweep.C:
			r.invoke("full sweep", r.engine.RunFullSweep)
		case <-hourly.C:
			r.invoke("decay tick", r.engine.RunDecayTick)
			r.invoke("auto listing", r.engine.RunAutoListingTick)
		}
	}
}

// invoke runs one engine operation and logs the outcome. Lock
// contention is an expected skip, not a failure.
func (r *Runner) invoke(name string, fn func(context.Context) error) {
	err := fn(r.ctx)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrLockContention):
		r.logger.Info("task skipped, already running", "task", name)
	case errors.Is(err, context.Canceled):
	default:
		r.logger.Error("task failed", "task", name, "error", err)
	}
}
