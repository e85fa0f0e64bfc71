package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockgame/engine/internal/model"
	"github.com/stockgame/engine/internal/store"
)

// matchIssuer runs the two-pointer merge over one issuer's order book.
// Buys arrive sorted by price descending, sells ascending, ties broken
// by creation time (price-time priority); once the best buy is below
// the best sell no further match is possible.
func (e *Engine) matchIssuer(ctx context.Context, tx store.Tx, acc *accumulator, issuerID uuid.UUID) error {
	buys, sells, err := tx.OrderBook(ctx, issuerID)
	if err != nil {
		return err
	}
	if err := validateOrders(buys); err != nil {
		return err
	}
	if err := validateOrders(sells); err != nil {
		return err
	}

	i, j := 0, 0
	for i < len(buys) && j < len(sells) {
		buy, sell := &buys[i], &sells[j]

		if buy.Price.LessThan(sell.Price) {
			break
		}

		// Self-trade guard: a company cannot fill its own order. The
		// buy is dropped and the sell stays in the book; the next buy
		// is re-compared against the same sell.
		if buy.PlacedBy == sell.PlacedBy {
			acc.deleteOrder(buy.ID)
			i++
			continue
		}

		e.matchPair(acc, buy, sell, &i, &j)

		if err := acc.maybeFlush(ctx, tx); err != nil {
			return err
		}
	}

	return nil
}

// matchPair settles one fill between the current best buy and sell.
// The buyer's limit is the execution price: sellers always receive at
// least their ask, buyers never pay above their bid.
func (e *Engine) matchPair(acc *accumulator, buy, sell *model.Order, i, j *int) {
	price := buy.Price
	amount := buy.Amount
	if amount > sell.Amount {
		amount = sell.Amount
	}
	value := price.Mul(decimal.NewFromInt(amount))

	// A fully filled order is removed and its pointer advances; a
	// partially filled one keeps its place with the reduced amount.
	if buy.Amount == amount {
		acc.deleteOrder(buy.ID)
		*i++
	} else {
		buy.Amount -= amount
		acc.setOrderAmount(buy.ID, buy.Amount)
	}
	if sell.Amount == amount {
		acc.deleteOrder(sell.ID)
		*j++
	} else {
		sell.Amount -= amount
		acc.setOrderAmount(sell.ID, sell.Amount)
	}

	acc.addCash(buy.PlacedBy, value.Neg())
	acc.addCash(sell.PlacedBy, value)

	acc.movePosition(sell.PlacedBy, buy.PlacedBy, buy.Issuer, amount, price)

	acc.addTrade(model.Trade{
		ID:        uuid.New(),
		BuyerID:   buy.PlacedBy,
		SellerID:  sell.PlacedBy,
		IssuerID:  buy.Issuer,
		Price:     price,
		Amount:    amount,
		CreatedAt: acc.now,
	})

	// Only user-owned companies are notified; system accounts have no
	// recipient.
	if buy.OwnerID != nil {
		acc.addNotification(model.NewOrderNotification(*buy.OwnerID, amount, price, buy.IssuerName, false, acc.now))
	}
	if sell.OwnerID != nil {
		acc.addNotification(model.NewOrderNotification(*sell.OwnerID, amount, price, buy.IssuerName, true, acc.now))
	}
}

// validateOrders asserts the creation-time preconditions the engine
// relies on. A violation is fatal for the whole unit of work.
func validateOrders(orders []model.Order) error {
	for _, o := range orders {
		if o.Amount <= 0 {
			return fmt.Errorf("order %s: amount %d: %w", o.ID, o.Amount, ErrMalformedOrder)
		}
		if !o.Price.IsPositive() {
			return fmt.Errorf("order %s: price %s: %w", o.ID, o.Price, ErrMalformedOrder)
		}
	}
	return nil
}
