package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockgame/engine/internal/model"
	"github.com/stockgame/engine/internal/store"
)

// recordingTx captures the writes an accumulator flush issues.
type recordingTx struct {
	cashDeltas     []store.CashDelta
	positionDeltas []store.PositionDelta
	orderAmounts   []store.OrderAmount
	orderPrices    []store.OrderPrice
	deletedOrders  []uuid.UUID
	insertedOrders []model.Order
	trades         []model.Trade
	statements     []model.StatementOfAccount
	notifications  []model.Notification

	flushCalls   int
	emptiesSwept int
}

func (r *recordingTx) LockMarket(ctx context.Context) error { return nil }
func (r *recordingTx) LockCompany(ctx context.Context, id uuid.UUID) error { return nil }
func (r *recordingTx) Companies(ctx context.Context, excludeCentralBank bool) ([]model.Company, error) {
	return nil, nil
}
func (r *recordingTx) CompanyByID(ctx context.Context, id uuid.UUID) (model.Company, error) {
	return model.Company{}, nil
}
func (r *recordingTx) CentralBank(ctx context.Context) (model.Company, error) {
	return model.Company{}, nil
}
func (r *recordingTx) OrderBook(ctx context.Context, issuerID uuid.UUID) ([]model.Order, []model.Order, error) {
	return nil, nil, nil
}
func (r *recordingTx) DecayingOrders(ctx context.Context) ([]model.Order, error) { return nil, nil }
func (r *recordingTx) PositionsHeldBy(ctx context.Context, holderID uuid.UUID) ([]model.DepotPosition, error) {
	return nil, nil
}
func (r *recordingTx) IssuersWithOpenSells(ctx context.Context, placedBy uuid.UUID) (map[uuid.UUID]struct{}, error) {
	return nil, nil
}
func (r *recordingTx) DistributedShares(ctx context.Context, issuerID uuid.UUID) (int64, error) {
	return 0, nil
}

func (r *recordingTx) AddCash(ctx context.Context, deltas []store.CashDelta) error {
	r.cashDeltas = append(r.cashDeltas, deltas...)
	r.flushCalls++
	return nil
}
func (r *recordingTx) ApplyPositionDeltas(ctx context.Context, deltas []store.PositionDelta) error {
	r.positionDeltas = append(r.positionDeltas, deltas...)
	r.flushCalls++
	return nil
}
func (r *recordingTx) DeleteEmptyPositions(ctx context.Context) error {
	r.emptiesSwept++
	return nil
}
func (r *recordingTx) UpdateOrderAmounts(ctx context.Context, updates []store.OrderAmount) error {
	r.orderAmounts = append(r.orderAmounts, updates...)
	r.flushCalls++
	return nil
}
func (r *recordingTx) UpdateOrderPrices(ctx context.Context, updates []store.OrderPrice) error {
	r.orderPrices = append(r.orderPrices, updates...)
	r.flushCalls++
	return nil
}
func (r *recordingTx) DeleteOrders(ctx context.Context, ids []uuid.UUID) error {
	r.deletedOrders = append(r.deletedOrders, ids...)
	r.flushCalls++
	return nil
}
func (r *recordingTx) InsertOrders(ctx context.Context, orders []model.Order) error {
	r.insertedOrders = append(r.insertedOrders, orders...)
	r.flushCalls++
	return nil
}
func (r *recordingTx) InsertTrades(ctx context.Context, trades []model.Trade) error {
	r.trades = append(r.trades, trades...)
	r.flushCalls++
	return nil
}
func (r *recordingTx) InsertStatements(ctx context.Context, statements []model.StatementOfAccount) error {
	r.statements = append(r.statements, statements...)
	r.flushCalls++
	return nil
}
func (r *recordingTx) InsertNotifications(ctx context.Context, notifications []model.Notification) error {
	r.notifications = append(r.notifications, notifications...)
	r.flushCalls++
	return nil
}
func (r *recordingTx) Commit(ctx context.Context) error   { return nil }
func (r *recordingTx) Rollback(ctx context.Context) error { return nil }

func TestAccumulator_EmptyFlushIssuesNoWrites(t *testing.T) {
	tx := &recordingTx{}
	acc := newAccumulator(500, time.Now())

	if err := acc.Flush(context.Background(), tx, false); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if tx.flushCalls != 0 {
		t.Errorf("flushCalls = %d, want 0", tx.flushCalls)
	}
	if tx.emptiesSwept != 0 {
		t.Errorf("emptiesSwept = %d, want 0 without force", tx.emptiesSwept)
	}
}

func TestAccumulator_ForceFlushSweepsEmptyPositions(t *testing.T) {
	tx := &recordingTx{}
	acc := newAccumulator(500, time.Now())

	if err := acc.Flush(context.Background(), tx, true); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if tx.emptiesSwept != 1 {
		t.Errorf("emptiesSwept = %d, want 1", tx.emptiesSwept)
	}
}

func TestAccumulator_CashDeltasCollapse(t *testing.T) {
	tx := &recordingTx{}
	acc := newAccumulator(500, time.Now())
	company := uuid.New()

	acc.addCash(company, decimal.NewFromInt(100))
	acc.addCash(company, decimal.NewFromInt(-30))

	if err := acc.Flush(context.Background(), tx, false); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if len(tx.cashDeltas) != 1 {
		t.Fatalf("cash deltas = %d, want 1", len(tx.cashDeltas))
	}
	if !tx.cashDeltas[0].Delta.Equal(decimal.NewFromInt(70)) {
		t.Errorf("cash delta = %s, want 70", tx.cashDeltas[0].Delta)
	}
}

func TestAccumulator_NetZeroPositionDeltaIsDropped(t *testing.T) {
	tx := &recordingTx{}
	acc := newAccumulator(500, time.Now())
	holder, issuer := uuid.New(), uuid.New()

	acc.adjustPosition(holder, issuer, 500, decimal.NewFromInt(5))
	acc.adjustPosition(holder, issuer, -500, decimal.NewFromInt(5))

	if err := acc.Flush(context.Background(), tx, false); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(tx.positionDeltas) != 0 {
		t.Errorf("position deltas = %d, want 0", len(tx.positionDeltas))
	}
}

func TestAccumulator_MovePositionStagesBothSides(t *testing.T) {
	tx := &recordingTx{}
	acc := newAccumulator(500, time.Now())
	seller, buyer, issuer := uuid.New(), uuid.New(), uuid.New()

	acc.movePosition(seller, buyer, issuer, 200, decimal.NewFromInt(5))

	if err := acc.Flush(context.Background(), tx, false); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(tx.positionDeltas) != 2 {
		t.Fatalf("position deltas = %d, want 2", len(tx.positionDeltas))
	}
	var net int64
	for _, d := range tx.positionDeltas {
		net += d.Delta
		if d.Delta != 200 && d.Delta != -200 {
			t.Errorf("position delta = %d, want +-200", d.Delta)
		}
	}
	if net != 0 {
		t.Errorf("net position delta = %d, want 0", net)
	}
}

func TestAccumulator_DeleteDropsStagedAmount(t *testing.T) {
	tx := &recordingTx{}
	acc := newAccumulator(500, time.Now())
	id := uuid.New()

	acc.setOrderAmount(id, 50)
	acc.deleteOrder(id)

	if err := acc.Flush(context.Background(), tx, false); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(tx.orderAmounts) != 0 {
		t.Errorf("order amount updates = %d, want 0 for deleted order", len(tx.orderAmounts))
	}
	if len(tx.deletedOrders) != 1 {
		t.Errorf("deleted orders = %d, want 1", len(tx.deletedOrders))
	}
}

func TestAccumulator_TradeStagesTwoStatements(t *testing.T) {
	tx := &recordingTx{}
	now := time.Now()
	acc := newAccumulator(500, now)

	trade := model.Trade{
		ID:        uuid.New(),
		BuyerID:   uuid.New(),
		SellerID:  uuid.New(),
		IssuerID:  uuid.New(),
		Price:     decimal.NewFromInt(5),
		Amount:    100,
		CreatedAt: now,
	}
	acc.addTrade(trade)

	if err := acc.Flush(context.Background(), tx, false); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if len(tx.statements) != 2 {
		t.Fatalf("statements = %d, want 2", len(tx.statements))
	}
	seller, buyer := tx.statements[0], tx.statements[1]
	if !seller.Received || buyer.Received {
		t.Errorf("received flags = %v/%v, want true/false", seller.Received, buyer.Received)
	}
	if seller.CompanyID != trade.SellerID || buyer.CompanyID != trade.BuyerID {
		t.Error("statements booked against wrong companies")
	}
	if !seller.Value.Equal(decimal.NewFromInt(500)) {
		t.Errorf("statement value = %s, want 500", seller.Value)
	}
}

func TestAccumulator_MismatchedStatementsFailFlush(t *testing.T) {
	tx := &recordingTx{}
	acc := newAccumulator(500, time.Now())

	acc.addTrade(model.Trade{
		ID:     uuid.New(),
		Price:  decimal.NewFromInt(5),
		Amount: 100,
	})
	// Corrupt one staged statement.
	acc.statements[0].Amount = 99

	err := acc.Flush(context.Background(), tx, false)
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("Flush() error = %v, want ErrInvariantViolation", err)
	}
	if len(tx.trades) != 0 {
		t.Errorf("trades written = %d, want 0", len(tx.trades))
	}
}

func TestAccumulator_MaybeFlushHonorsBatchSize(t *testing.T) {
	tx := &recordingTx{}
	acc := newAccumulator(2, time.Now())

	acc.deleteOrder(uuid.New())
	acc.deleteOrder(uuid.New())
	if err := acc.maybeFlush(context.Background(), tx); err != nil {
		t.Fatalf("maybeFlush() error = %v", err)
	}
	if len(tx.deletedOrders) != 0 {
		t.Errorf("deleted orders = %d, want 0 below threshold", len(tx.deletedOrders))
	}

	acc.deleteOrder(uuid.New())
	if err := acc.maybeFlush(context.Background(), tx); err != nil {
		t.Fatalf("maybeFlush() error = %v", err)
	}
	if len(tx.deletedOrders) != 3 {
		t.Errorf("deleted orders = %d, want 3 past threshold", len(tx.deletedOrders))
	}
	if tx.emptiesSwept != 0 {
		t.Errorf("emptiesSwept = %d, want 0 for interim flush", tx.emptiesSwept)
	}
}
