package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CentralBankName is the reserved name of the system issuer. The central
// bank originates the market's total share supply; its own shares are
// never matched, but it is a valid counterparty as a seller.
const CentralBankName = "Centralbank"

// Side distinguishes buy from sell orders.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderKind distinguishes static orders from decaying ones.
type OrderKind string

const (
	// Static orders keep their price until matched or cancelled.
	Static OrderKind = "static"

	// Decaying orders move their price by Step toward Limit on every
	// decay tick (sell prices fall, buy prices rise) and stop once the
	// next step would cross the limit.
	Decaying OrderKind = "decaying"
)

// Company is a market participant. It holds cash, may have issued shares
// of its own, and holds shares of other companies as depot positions.
type Company struct {
	ID     uuid.UUID
	Name   string
	Cash   decimal.Decimal
	Shares int64 // total issued shares

	// SharePrice is the current valuation, maintained by the external
	// key-figures job. The engine only reads it (auto listing).
	SharePrice decimal.Decimal

	// OwnerID is the user owning this company, nil for system-owned
	// companies such as the central bank. Only owned companies receive
	// order notifications.
	OwnerID *uuid.UUID

	CreatedAt time.Time
}

// IsCentralBank reports whether the company is the system issuer.
func (c Company) IsCentralBank() bool {
	return c.Name == CentralBankName
}

// Order is an outstanding buy or sell on one issuer's shares.
//
// PlacedBy and Issuer reference companies; OwnerID and IssuerName are
// denormalized from them when the order book is read, so matching can
// build notifications without extra lookups.
type Order struct {
	ID       uuid.UUID
	PlacedBy uuid.UUID // company that placed the order
	Issuer   uuid.UUID // company whose shares are traded
	Side     Side
	Price    decimal.Decimal
	Amount   int64
	Kind     OrderKind

	// Limit and Step are only meaningful for Kind == Decaying.
	Limit decimal.Decimal
	Step  decimal.Decimal

	CreatedAt  time.Time
	OwnerID    *uuid.UUID
	IssuerName string
}

// Value returns Price * Amount.
func (o Order) Value() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Amount))
}

// DepotPosition is a holding of one company's shares inside another
// company's depot. Positions are created on first acquisition and
// deleted when their amount reaches zero; a persisted position never
// has amount <= 0.
type DepotPosition struct {
	ID       uuid.UUID
	HolderID uuid.UUID
	IssuerID uuid.UUID

	// Private marks holdings of a user's private depot. Private-depot
	// trading is not wired into matching, but the flag is part of the
	// unique key (holder, issuer, private) so the data stays compatible.
	Private bool

	Amount      int64
	PriceBought decimal.Decimal // cost basis at acquisition
}

// Trade is the immutable record of one fill.
type Trade struct {
	ID        uuid.UUID
	BuyerID   uuid.UUID
	SellerID  uuid.UUID
	IssuerID  uuid.UUID
	Price     decimal.Decimal
	Amount    int64
	CreatedAt time.Time
}

// Value returns Price * Amount.
func (t Trade) Value() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Amount))
}

// StatementKind tags the origin of a statement of account.
type StatementKind string

const (
	StatementOrder StatementKind = "Order"
	StatementBond  StatementKind = "Bond"
)

// StatementOfAccount is one side's booking record of a trade or bond
// payout. Every trade produces exactly two: the seller's with
// Received=true and the buyer's with Received=false.
type StatementOfAccount struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Kind      StatementKind
	Value     decimal.Decimal
	Amount    int64
	Received  bool
	TradeID   *uuid.UUID
	CreatedAt time.Time
}

// Notification is a message for a user, produced by the engine and
// delivered by an external mechanism.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Subject   string
	Text      string
	Read      bool
	CreatedAt time.Time
}

// NewOrderNotification builds the fill notification for one side of a
// trade. received follows the statement convention: true for the seller
// (money received), false for the buyer.
func NewOrderNotification(userID uuid.UUID, amount int64, price decimal.Decimal, issuerName string, received bool, now time.Time) Notification {
	kind := "Buy-Order"
	if received {
		kind = "Sell-Order"
	}

	value := price.Mul(decimal.NewFromInt(amount))
	text := fmt.Sprintf("Your %s for %s has been matched!\n\nAmount: %d\nPrice per share: %s\nValue: %s$",
		kind, issuerName, amount, price.String(), value.String())

	return Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Subject:   fmt.Sprintf("%s %s", kind, issuerName),
		Text:      text,
		CreatedAt: now,
	}
}
