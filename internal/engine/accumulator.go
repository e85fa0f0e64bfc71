package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockgame/engine/internal/model"
	"github.com/stockgame/engine/internal/store"
)

type positionKey struct {
	holder uuid.UUID
	issuer uuid.UUID
}

// accumulator stages all side effects of one engine invocation in
// memory. Repeated touches to the same company, position, or order
// collapse into a single final write. Whenever any staged collection
// grows past batchSize, maybeFlush writes everything out inside the
// open transaction; this bounds memory and is not a partial commit.
type accumulator struct {
	batchSize int
	now       time.Time

	cash          map[uuid.UUID]decimal.Decimal
	positions     map[positionKey]store.PositionDelta
	orderDeletes  map[uuid.UUID]struct{}
	orderAmounts  map[uuid.UUID]int64
	orderPrices   map[uuid.UUID]decimal.Decimal
	newOrders     []model.Order
	trades        []model.Trade
	statements    []model.StatementOfAccount
	notifications []model.Notification

	// Counters survive flushes, for end-of-run logging.
	tradesTotal    int
	ordersCreated  int
	pricesAdjusted int
}

func newAccumulator(batchSize int, now time.Time) *accumulator {
	return &accumulator{
		batchSize:    batchSize,
		now:          now,
		cash:         make(map[uuid.UUID]decimal.Decimal),
		positions:    make(map[positionKey]store.PositionDelta),
		orderDeletes: make(map[uuid.UUID]struct{}),
		orderAmounts: make(map[uuid.UUID]int64),
		orderPrices:  make(map[uuid.UUID]decimal.Decimal),
	}
}

func (a *accumulator) addCash(companyID uuid.UUID, delta decimal.Decimal) {
	a.cash[companyID] = a.cash[companyID].Add(delta)
}

// movePosition stages the share transfer of one fill: amount shares of
// issuer leave the seller's depot and enter the buyer's, creating the
// buyer's position with price as cost basis if it does not exist yet.
func (a *accumulator) movePosition(sellerID, buyerID, issuerID uuid.UUID, amount int64, price decimal.Decimal) {
	a.adjustPosition(sellerID, issuerID, -amount, price)
	a.adjustPosition(buyerID, issuerID, amount, price)
}

func (a *accumulator) adjustPosition(holderID, issuerID uuid.UUID, delta int64, price decimal.Decimal) {
	key := positionKey{holderID, issuerID}
	d, ok := a.positions[key]
	if !ok {
		d = store.PositionDelta{
			HolderID:    holderID,
			IssuerID:    issuerID,
			PriceBought: price,
		}
	}
	d.Delta += delta
	a.positions[key] = d
}

// deleteOrder stages an order removal, dropping any staged amount
// update for the same order.
func (a *accumulator) deleteOrder(id uuid.UUID) {
	a.orderDeletes[id] = struct{}{}
	delete(a.orderAmounts, id)
}

func (a *accumulator) setOrderAmount(id uuid.UUID, amount int64) {
	a.orderAmounts[id] = amount
}

func (a *accumulator) setOrderPrice(id uuid.UUID, price decimal.Decimal) {
	a.orderPrices[id] = price
	a.pricesAdjusted++
}

func (a *accumulator) createOrder(o model.Order) {
	a.newOrders = append(a.newOrders, o)
	a.ordersCreated++
}

// addTrade stages a trade and its two statements of account: the
// seller's with received=true, the buyer's with received=false.
func (a *accumulator) addTrade(t model.Trade) {
	a.trades = append(a.trades, t)
	a.tradesTotal++

	tradeID := t.ID
	value := t.Value()
	a.statements = append(a.statements,
		model.StatementOfAccount{
			ID:        uuid.New(),
			CompanyID: t.SellerID,
			Kind:      model.StatementOrder,
			Value:     value,
			Amount:    t.Amount,
			Received:  true,
			TradeID:   &tradeID,
			CreatedAt: a.now,
		},
		model.StatementOfAccount{
			ID:        uuid.New(),
			CompanyID: t.BuyerID,
			Kind:      model.StatementOrder,
			Value:     value,
			Amount:    t.Amount,
			Received:  false,
			TradeID:   &tradeID,
			CreatedAt: a.now,
		},
	)
}

func (a *accumulator) addNotification(n model.Notification) {
	a.notifications = append(a.notifications, n)
}

// maybeFlush flushes when any one staged collection exceeds the batch
// size.
func (a *accumulator) maybeFlush(ctx context.Context, tx store.Tx) error {
	over := len(a.cash) > a.batchSize ||
		len(a.positions) > a.batchSize ||
		len(a.orderDeletes) > a.batchSize ||
		len(a.orderAmounts) > a.batchSize ||
		len(a.orderPrices) > a.batchSize ||
		len(a.newOrders) > a.batchSize ||
		len(a.trades) > a.batchSize ||
		len(a.statements) > a.batchSize ||
		len(a.notifications) > a.batchSize

	if !over {
		return nil
	}
	return a.flush(ctx, tx, false)
}

// Flush drains all staged state into the transaction. force is set at
// the end of a run and additionally clears emptied positions.
func (a *accumulator) Flush(ctx context.Context, tx store.Tx, force bool) error {
	return a.flush(ctx, tx, force)
}

func (a *accumulator) flush(ctx context.Context, tx store.Tx, force bool) error {
	if len(a.positions) > 0 {
		deltas := make([]store.PositionDelta, 0, len(a.positions))
		for _, d := range a.positions {
			if d.Delta == 0 {
				continue
			}
			deltas = append(deltas, d)
		}
		if err := tx.ApplyPositionDeltas(ctx, deltas); err != nil {
			return err
		}
		a.positions = make(map[positionKey]store.PositionDelta)
	}

	if len(a.cash) > 0 {
		deltas := make([]store.CashDelta, 0, len(a.cash))
		for id, delta := range a.cash {
			deltas = append(deltas, store.CashDelta{CompanyID: id, Delta: delta})
		}
		if err := tx.AddCash(ctx, deltas); err != nil {
			return err
		}
		a.cash = make(map[uuid.UUID]decimal.Decimal)
	}

	if len(a.orderAmounts) > 0 {
		updates := make([]store.OrderAmount, 0, len(a.orderAmounts))
		for id, amount := range a.orderAmounts {
			updates = append(updates, store.OrderAmount{ID: id, Amount: amount})
		}
		if err := tx.UpdateOrderAmounts(ctx, updates); err != nil {
			return err
		}
		a.orderAmounts = make(map[uuid.UUID]int64)
	}

	if len(a.orderDeletes) > 0 {
		ids := make([]uuid.UUID, 0, len(a.orderDeletes))
		for id := range a.orderDeletes {
			ids = append(ids, id)
		}
		if err := tx.DeleteOrders(ctx, ids); err != nil {
			return err
		}
		a.orderDeletes = make(map[uuid.UUID]struct{})
	}

	if len(a.orderPrices) > 0 {
		updates := make([]store.OrderPrice, 0, len(a.orderPrices))
		for id, price := range a.orderPrices {
			updates = append(updates, store.OrderPrice{ID: id, Price: price})
		}
		if err := tx.UpdateOrderPrices(ctx, updates); err != nil {
			return err
		}
		a.orderPrices = make(map[uuid.UUID]decimal.Decimal)
	}

	if len(a.newOrders) > 0 {
		if err := tx.InsertOrders(ctx, a.newOrders); err != nil {
			return err
		}
		a.newOrders = nil
	}

	if len(a.trades) > 0 {
		if err := a.checkStatements(); err != nil {
			return err
		}
		if err := tx.InsertTrades(ctx, a.trades); err != nil {
			return err
		}
		if err := tx.InsertStatements(ctx, a.statements); err != nil {
			return err
		}
		a.trades = nil
		a.statements = nil
	}

	if len(a.notifications) > 0 {
		if err := tx.InsertNotifications(ctx, a.notifications); err != nil {
			return err
		}
		a.notifications = nil
	}

	if force {
		if err := tx.DeleteEmptyPositions(ctx); err != nil {
			return err
		}
	}

	return nil
}

// checkStatements cross-checks staged statements against their trades:
// every trade carries exactly two statements whose value and amount
// match the trade's.
func (a *accumulator) checkStatements() error {
	if len(a.statements) != 2*len(a.trades) {
		return fmt.Errorf("%d statements staged for %d trades: %w",
			len(a.statements), len(a.trades), ErrInvariantViolation)
	}

	for i, t := range a.trades {
		fst, snd := a.statements[2*i], a.statements[2*i+1]
		for _, s := range []model.StatementOfAccount{fst, snd} {
			if s.TradeID == nil || *s.TradeID != t.ID {
				return fmt.Errorf("statement %s not linked to trade %s: %w", s.ID, t.ID, ErrInvariantViolation)
			}
			if !s.Value.Equal(t.Value()) || s.Amount != t.Amount {
				return fmt.Errorf("statement %s does not match trade %s: %w", s.ID, t.ID, ErrInvariantViolation)
			}
		}
		if fst.Received == snd.Received {
			return fmt.Errorf("trade %s statements must book one received and one paid side: %w", t.ID, ErrInvariantViolation)
		}
	}
	return nil
}
