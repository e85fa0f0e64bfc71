package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockgame/engine/internal/lock"
	"github.com/stockgame/engine/internal/store"
)

// Task lease keys. One per task kind: two invocations of the same kind
// never overlap.
const (
	leaseSweep   = "order-sweep"
	leaseCheck   = "order-check"
	leaseDecay   = "dynamic-orders"
	leaseListing = "centralbank-orders"
)

// Config holds matching and listing parameters.
type Config struct {
	// BatchSize bounds every staged collection in the accumulator.
	BatchSize int

	// LeaseTTL is how long a task lease outlives a crashed holder.
	LeaseTTL time.Duration

	// ListingMarkup scales share price into the central bank's initial
	// ask, ListingStepFraction of that price decays per tick, and
	// ListingFloorFraction of it is the decay limit.
	ListingMarkup        decimal.Decimal
	ListingStepFraction  decimal.Decimal
	ListingFloorFraction decimal.Decimal
}

// DefaultConfig returns the game's standard parameters.
func DefaultConfig() Config {
	return Config{
		BatchSize:            500,
		LeaseTTL:             5 * time.Minute,
		ListingMarkup:        decimal.NewFromFloat(1.5),
		ListingStepFraction:  decimal.NewFromFloat(0.01),
		ListingFloorFraction: decimal.NewFromFloat(0.5),
	}
}

// Engine matches orders and settles trades.
type Engine struct {
	cfg    Config
	store  store.Store
	locker lock.Locker
	logger *slog.Logger
	now    func() time.Time
}

// New creates an engine.
func New(cfg Config, st store.Store, locker lock.Locker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		store:  st,
		locker: locker,
		logger: logger,
		now:    time.Now,
	}
}

// acquire takes the task lease or reports contention.
func (e *Engine) acquire(ctx context.Context, key string) (*lock.Lease, error) {
	lease, err := e.locker.TryAcquire(ctx, key, e.cfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lease %q: %w", key, err)
	}
	if lease == nil {
		e.logger.Warn("task already running, skipping", "task", key)
		return nil, fmt.Errorf("%s: %w", key, ErrLockContention)
	}
	return lease, nil
}

// RunFullSweep matches all outstanding orders of every non-central-bank
// company, settles the fills, and verifies share conservation. The
// whole sweep is one unit of work under the market-wide lock.
func (e *Engine) RunFullSweep(ctx context.Context) error {
	lease, err := e.acquire(ctx, leaseSweep)
	if err != nil {
		return err
	}
	defer lease.Release(ctx)

	start := e.now()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.LockMarket(ctx); err != nil {
		return err
	}

	companies, err := tx.Companies(ctx, true)
	if err != nil {
		return err
	}

	acc := newAccumulator(e.cfg.BatchSize, start)
	for _, c := range companies {
		if err := e.matchIssuer(ctx, tx, acc, c.ID); err != nil {
			return err
		}
	}

	if err := acc.Flush(ctx, tx, true); err != nil {
		return err
	}

	if err := verifyShareConservation(ctx, tx, companies); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	e.logger.Info("full sweep complete",
		"companies", len(companies),
		"trades", acc.tradesTotal,
		"duration", time.Since(start),
	)
	return nil
}

// RunSingleCompanyCheck matches one issuer's order book. It is fired
// right after an order is created and is best-effort: while a full
// sweep holds the market lock the check waits on the company row, and
// a concurrent check of any company skips via the lease.
func (e *Engine) RunSingleCompanyCheck(ctx context.Context, issuerID uuid.UUID) error {
	lease, err := e.acquire(ctx, leaseCheck)
	if err != nil {
		return err
	}
	defer lease.Release(ctx)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.LockCompany(ctx, issuerID); err != nil {
		return err
	}

	company, err := tx.CompanyByID(ctx, issuerID)
	if err != nil {
		return err
	}
	if company.IsCentralBank() {
		// Central-bank shares are never matched.
		return tx.Rollback(ctx)
	}

	acc := newAccumulator(e.cfg.BatchSize, e.now())
	if err := e.matchIssuer(ctx, tx, acc, issuerID); err != nil {
		return err
	}
	if err := acc.Flush(ctx, tx, true); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	e.logger.Debug("single company check complete",
		"issuer", company.Name,
		"trades", acc.tradesTotal,
	)
	return nil
}
