package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stockgame/engine/internal/model"
)

// RunAutoListingTick creates decaying sell orders for every depot
// position the central bank still holds without an active sell order
// for that issuer. The bank lists only 10% of a position at a time (the
// full rest once a position falls below 10% of the issued shares), at a
// markup over the current share price, so new share supply reaches the
// market gradually instead of all at once.
func (e *Engine) RunAutoListingTick(ctx context.Context) error {
	lease, err := e.acquire(ctx, leaseListing)
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

	bank, err := tx.CentralBank(ctx)
	if err != nil {
		return err
	}

	positions, err := tx.PositionsHeldBy(ctx, bank.ID)
	if err != nil {
		return err
	}
	listed, err := tx.IssuersWithOpenSells(ctx, bank.ID)
	if err != nil {
		return err
	}

	acc := newAccumulator(e.cfg.BatchSize, start)
	for _, pos := range positions {
		if _, ok := listed[pos.IssuerID]; ok {
			continue
		}
		if pos.Amount <= 0 {
			continue
		}

		issuer, err := tx.CompanyByID(ctx, pos.IssuerID)
		if err != nil {
			return err
		}

		order, ok := e.listingOrder(bank, issuer, pos)
		if !ok {
			e.logger.Warn("skipping listing, issuer has no share price",
				"issuer", issuer.Name,
			)
			continue
		}
		acc.createOrder(order)

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

	e.logger.Info("central bank listing complete",
		"positions", len(positions),
		"orders_created", acc.ordersCreated,
		"duration", time.Since(start),
	)
	return nil
}

// listingOrder builds the decaying sell order for one central-bank
// position. Reports false when the issuer's share price would not give
// a positive ask.
func (e *Engine) listingOrder(bank, issuer model.Company, pos model.DepotPosition) (model.Order, bool) {
	amount := pos.Amount / 10
	if pos.Amount*10 < issuer.Shares {
		// Below 10% of the issued shares the rest is listed whole.
		amount = pos.Amount
	}
	if amount == 0 {
		amount = pos.Amount
	}

	price := issuer.SharePrice.Mul(e.cfg.ListingMarkup)
	if !price.IsPositive() {
		return model.Order{}, false
	}

	return model.Order{
		ID:        uuid.New(),
		PlacedBy:  bank.ID,
		Issuer:    issuer.ID,
		Side:      model.Sell,
		Kind:      model.Decaying,
		Price:     price,
		Amount:    amount,
		Limit:     price.Mul(e.cfg.ListingFloorFraction),
		Step:      price.Mul(e.cfg.ListingStepFraction),
		CreatedAt: e.now(),
	}, true
}
