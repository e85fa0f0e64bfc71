package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockgame/engine/internal/model"
)

// RunDecayTick moves every decaying order's price one step toward its
// limit: sell prices fall, buy prices rise. A step that would cross the
// limit is skipped entirely, leaving the order parked at its last
// price.
func (e *Engine) RunDecayTick(ctx context.Context) error {
	lease, err := e.acquire(ctx, leaseDecay)
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

	orders, err := tx.DecayingOrders(ctx)
	if err != nil {
		return err
	}

	acc := newAccumulator(e.cfg.BatchSize, start)
	for _, o := range orders {
		price, ok := nextDecayPrice(o)
		if !ok {
			continue
		}
		acc.setOrderPrice(o.ID, price)

		if err := acc.maybeFlush(ctx, tx); err != nil {
			return err
		}
	}

	if err := acc.Flush(ctx, tx, true); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	e.logger.Info("decay tick complete",
		"orders", len(orders),
		"adjusted", acc.pricesAdjusted,
		"duration", time.Since(start),
	)
	return nil
}

// nextDecayPrice returns the order's price after one decay step, or
// false when the step would cross the limit.
func nextDecayPrice(o model.Order) (decimal.Decimal, bool) {
	if o.Side == model.Sell {
		price := o.Price.Sub(o.Step)
		if price.LessThan(o.Limit) {
			return decimal.Decimal{}, false
		}
		return price, true
	}

	price := o.Price.Add(o.Step)
	if price.GreaterThan(o.Limit) {
		return decimal.Decimal{}, false
	}
	return price, true
}
