package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockgame/engine/internal/model"
)

// CashDelta is a pending cash adjustment for one company.
type CashDelta struct {
	CompanyID uuid.UUID
	Delta     decimal.Decimal
}

// PositionDelta is a pending share movement for one depot position.
// Applying it creates the position (with PriceBought as cost basis) if
// the (holder, issuer, private) key does not exist yet.
type PositionDelta struct {
	HolderID    uuid.UUID
	IssuerID    uuid.UUID
	Private     bool
	Delta       int64
	PriceBought decimal.Decimal
}

// OrderAmount sets an order's remaining amount after a partial fill.
type OrderAmount struct {
	ID     uuid.UUID
	Amount int64
}

// OrderPrice sets an order's price after a decay step.
type OrderPrice struct {
	ID    uuid.UUID
	Price decimal.Decimal
}

// Store opens units of work.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one unit of work. All reads observe the transaction's snapshot;
// all writes become durable together on Commit or not at all.
type Tx interface {
	// LockMarket takes the coarse exclusive lock over companies and
	// depot positions for the duration of the transaction. The full
	// sweep holds it so single-company checks cannot interleave.
	LockMarket(ctx context.Context) error

	// LockCompany row-locks one company, blocking while a sweep holds
	// the market lock.
	LockCompany(ctx context.Context, id uuid.UUID) error

	Companies(ctx context.Context, excludeCentralBank bool) ([]model.Company, error)
	CompanyByID(ctx context.Context, id uuid.UUID) (model.Company, error)
	CentralBank(ctx context.Context) (model.Company, error)

	// OrderBook returns the issuer's outstanding orders: buys sorted by
	// price descending, sells by price ascending, ties broken by
	// created_at then id ascending (strict price-time priority).
	OrderBook(ctx context.Context, issuerID uuid.UUID) (buys, sells []model.Order, err error)

	DecayingOrders(ctx context.Context) ([]model.Order, error)
	PositionsHeldBy(ctx context.Context, holderID uuid.UUID) ([]model.DepotPosition, error)

	// IssuersWithOpenSells returns the issuers for which the given
	// company currently has sell orders outstanding.
	IssuersWithOpenSells(ctx context.Context, placedBy uuid.UUID) (map[uuid.UUID]struct{}, error)

	// DistributedShares sums the issuer's shares across all depot
	// positions.
	DistributedShares(ctx context.Context, issuerID uuid.UUID) (int64, error)

	AddCash(ctx context.Context, deltas []CashDelta) error
	ApplyPositionDeltas(ctx context.Context, deltas []PositionDelta) error

	// DeleteEmptyPositions removes positions whose amount reached zero.
	DeleteEmptyPositions(ctx context.Context) error

	UpdateOrderAmounts(ctx context.Context, updates []OrderAmount) error
	UpdateOrderPrices(ctx context.Context, updates []OrderPrice) error
	DeleteOrders(ctx context.Context, ids []uuid.UUID) error
	InsertOrders(ctx context.Context, orders []model.Order) error
	InsertTrades(ctx context.Context, trades []model.Trade) error
	InsertStatements(ctx context.Context, statements []model.StatementOfAccount) error
	InsertNotifications(ctx context.Context, notifications []model.Notification) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
