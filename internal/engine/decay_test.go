package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockgame/engine/internal/model"
	"github.com/stockgame/engine/internal/store/memstore"
)

func decayingOrder(side model.Side, price, step, limit float64) model.Order {
	o := testOrder(uuid.New(), uuid.New(), side, price, 100)
	o.Kind = model.Decaying
	o.Step = decimal.NewFromFloat(step)
	o.Limit = decimal.NewFromFloat(limit)
	return o
}

func TestDecayTick_SellPriceFallsTowardLimit(t *testing.T) {
	s := memstore.New()
	o := decayingOrder(model.Sell, 10, 1, 8.5)
	s.PutOrder(o)
	eng := testEngine(s)

	wantPrices := []string{"9", "9", "9"}
	// First tick steps 10 -> 9. The next step would land at 8 below the
	// 8.5 limit, so the order parks at 9 for every later tick.
	for tick, want := range wantPrices {
		if err := eng.RunDecayTick(context.Background()); err != nil {
			t.Fatalf("tick %d: RunDecayTick() error = %v", tick, err)
		}
		got, ok := s.Order(o.ID)
		if !ok {
			t.Fatalf("tick %d: order gone", tick)
		}
		if got.Price.String() != want {
			t.Errorf("tick %d: price = %s, want %s", tick, got.Price, want)
		}
	}
}

func TestDecayTick_BuyPriceRisesTowardLimit(t *testing.T) {
	s := memstore.New()
	o := decayingOrder(model.Buy, 5, 1, 7)
	s.PutOrder(o)
	eng := testEngine(s)

	wantPrices := []string{"6", "7", "7"}
	for tick, want := range wantPrices {
		if err := eng.RunDecayTick(context.Background()); err != nil {
			t.Fatalf("tick %d: RunDecayTick() error = %v", tick, err)
		}
		got, _ := s.Order(o.ID)
		if got.Price.String() != want {
			t.Errorf("tick %d: price = %s, want %s", tick, got.Price, want)
		}
	}
}

func TestDecayTick_StaticOrdersUntouched(t *testing.T) {
	s := memstore.New()
	o := testOrder(uuid.New(), uuid.New(), model.Sell, 10, 100)
	s.PutOrder(o)

	if err := testEngine(s).RunDecayTick(context.Background()); err != nil {
		t.Fatalf("RunDecayTick() error = %v", err)
	}

	got, _ := s.Order(o.ID)
	if got.Price.String() != "10" {
		t.Errorf("static order price = %s, want 10", got.Price)
	}
}

func TestNextDecayPrice(t *testing.T) {
	tests := []struct {
		name      string
		order     model.Order
		wantPrice string
		wantOK    bool
	}{
		{
			name:      "sell steps down",
			order:     decayingOrder(model.Sell, 10, 0.5, 8),
			wantPrice: "9.5",
			wantOK:    true,
		},
		{
			name:   "sell parked at limit",
			order:  decayingOrder(model.Sell, 8, 0.5, 8),
			wantOK: false,
		},
		{
			name:      "sell lands exactly on limit",
			order:     decayingOrder(model.Sell, 8.5, 0.5, 8),
			wantPrice: "8",
			wantOK:    true,
		},
		{
			name:      "buy steps up",
			order:     decayingOrder(model.Buy, 5, 0.5, 7),
			wantPrice: "5.5",
			wantOK:    true,
		},
		{
			name:   "buy parked at limit",
			order:  decayingOrder(model.Buy, 7, 0.5, 7),
			wantOK: false,
		},
		{
			name:      "buy lands exactly on limit",
			order:     decayingOrder(model.Buy, 6.5, 0.5, 7),
			wantPrice: "7",
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, ok := nextDecayPrice(tt.order)
			if ok != tt.wantOK {
				t.Fatalf("nextDecayPrice() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && price.String() != tt.wantPrice {
				t.Errorf("nextDecayPrice() = %s, want %s", price, tt.wantPrice)
			}
		})
	}
}
