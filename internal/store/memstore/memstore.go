// Package memstore implements store.Store in memory.
//
// It backs the engine tests and single-process runs. A unit of work
// holds the store mutex from Begin until Commit or Rollback and mutates
// a copy of the state, so invocations are serialized and all-or-nothing
// exactly like the Postgres store under its coarse lock.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/stockgame/engine/internal/model"
	"github.com/stockgame/engine/internal/store"
)

type posKey struct {
	holder  uuid.UUID
	issuer  uuid.UUID
	private bool
}

type state struct {
	companies     map[uuid.UUID]model.Company
	orders        map[uuid.UUID]model.Order
	positions     map[posKey]model.DepotPosition
	trades        []model.Trade
	statements    []model.StatementOfAccount
	notifications []model.Notification
}

func (s *state) clone() *state {
	c := &state{
		companies:     make(map[uuid.UUID]model.Company, len(s.companies)),
		orders:        make(map[uuid.UUID]model.Order, len(s.orders)),
		positions:     make(map[posKey]model.DepotPosition, len(s.positions)),
		trades:        append([]model.Trade(nil), s.trades...),
		statements:    append([]model.StatementOfAccount(nil), s.statements...),
		notifications: append([]model.Notification(nil), s.notifications...),
	}
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	return c
}

// Store is an in-memory store.Store.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{state: &state{
		companies: make(map[uuid.UUID]model.Company),
		orders:    make(map[uuid.UUID]model.Order),
		positions: make(map[posKey]model.DepotPosition),
	}}
}

// Begin opens a unit of work. It blocks until any other unit of work
// finishes.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	s.mu.Lock()
	return &tx{store: s, state: s.state.clone()}, nil
}

// Seed helpers (outside any unit of work).

// PutCompany inserts or replaces a company.
func (s *Store) PutCompany(c model.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.companies[c.ID] = c
}

// PutOrder inserts or replaces an order.
func (s *Store) PutOrder(o model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.orders[o.ID] = o
}

// PutPosition inserts or replaces a depot position.
func (s *Store) PutPosition(p model.DepotPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.positions[posKey{p.HolderID, p.IssuerID, p.Private}] = p
}

// Company returns a company by id.
func (s *Store) Company(id uuid.UUID) (model.Company, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.companies[id]
	return c, ok
}

// Order returns an order by id.
func (s *Store) Order(id uuid.UUID) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.orders[id]
	return o, ok
}

// Orders returns all orders.
func (s *Store) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]model.Order, 0, len(s.state.orders))
	for _, o := range s.state.orders {
		orders = append(orders, o)
	}
	return orders
}

// Position returns the (holder, issuer, private=false) position.
func (s *Store) Position(holder, issuer uuid.UUID) (model.DepotPosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.positions[posKey{holder, issuer, false}]
	return p, ok
}

// Trades returns all recorded trades.
func (s *Store) Trades() []model.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Trade(nil), s.state.trades...)
}

// Statements returns all recorded statements of account.
func (s *Store) Statements() []model.StatementOfAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StatementOfAccount(nil), s.state.statements...)
}

// Notifications returns all recorded notifications.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.state.notifications...)
}

type tx struct {
	store *Store
	state *state
	done  bool
}

func (t *tx) LockMarket(ctx context.Context) error { return nil }

func (t *tx) LockCompany(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.state.companies[id]; !ok {
		return fmt.Errorf("company %s: not found", id)
	}
	return nil
}

func (t *tx) Companies(ctx context.Context, excludeCentralBank bool) ([]model.Company, error) {
	var companies []model.Company
	for _, c := range t.state.companies {
		if excludeCentralBank && c.IsCentralBank() {
			continue
		}
		companies = append(companies, c)
	}
	sort.Slice(companies, func(i, j int) bool {
		if !companies[i].CreatedAt.Equal(companies[j].CreatedAt) {
			return companies[i].CreatedAt.Before(companies[j].CreatedAt)
		}
		return lessUUID(companies[i].ID, companies[j].ID)
	})
	return companies, nil
}

func (t *tx) CompanyByID(ctx context.Context, id uuid.UUID) (model.Company, error) {
	c, ok := t.state.companies[id]
	if !ok {
		return model.Company{}, fmt.Errorf("company %s: not found", id)
	}
	return c, nil
}

func (t *tx) CentralBank(ctx context.Context) (model.Company, error) {
	for _, c := range t.state.companies {
		if c.IsCentralBank() {
			return c, nil
		}
	}
	return model.Company{}, fmt.Errorf("central bank: not found")
}

func (t *tx) OrderBook(ctx context.Context, issuerID uuid.UUID) ([]model.Order, []model.Order, error) {
	var buys, sells []model.Order
	for _, o := range t.state.orders {
		if o.Issuer != issuerID {
			continue
		}
		t.denormalize(&o)
		if o.Side == model.Buy {
			buys = append(buys, o)
		} else {
			sells = append(sells, o)
		}
	}
	sortOrders(buys, true)
	sortOrders(sells, false)
	return buys, sells, nil
}

// denormalize fills the owner and issuer-name fields the Postgres store
// joins in.
func (t *tx) denormalize(o *model.Order) {
	if placer, ok := t.state.companies[o.PlacedBy]; ok {
		o.OwnerID = placer.OwnerID
	}
	if issuer, ok := t.state.companies[o.Issuer]; ok {
		o.IssuerName = issuer.Name
	}
}

// sortOrders applies price-time priority: best price first (descending
// for buys, ascending for sells), ties broken by creation time then id.
func sortOrders(orders []model.Order, buy bool) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].Price.Equal(orders[j].Price) {
			if buy {
				return orders[i].Price.GreaterThan(orders[j].Price)
			}
			return orders[i].Price.LessThan(orders[j].Price)
		}
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return lessUUID(orders[i].ID, orders[j].ID)
	})
}

func lessUUID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func (t *tx) DecayingOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	for _, o := range t.state.orders {
		if o.Kind != model.Decaying {
			continue
		}
		t.denormalize(&o)
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return lessUUID(orders[i].ID, orders[j].ID)
	})
	return orders, nil
}

func (t *tx) PositionsHeldBy(ctx context.Context, holderID uuid.UUID) ([]model.DepotPosition, error) {
	var positions []model.DepotPosition
	for _, p := range t.state.positions {
		if p.HolderID == holderID {
			positions = append(positions, p)
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return lessUUID(positions[i].IssuerID, positions[j].IssuerID)
	})
	return positions, nil
}

func (t *tx) IssuersWithOpenSells(ctx context.Context, placedBy uuid.UUID) (map[uuid.UUID]struct{}, error) {
	issuers := make(map[uuid.UUID]struct{})
	for _, o := range t.state.orders {
		if o.PlacedBy == placedBy && o.Side == model.Sell {
			issuers[o.Issuer] = struct{}{}
		}
	}
	return issuers, nil
}

func (t *tx) DistributedShares(ctx context.Context, issuerID uuid.UUID) (int64, error) {
	var sum int64
	for _, p := range t.state.positions {
		if p.IssuerID == issuerID {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (t *tx) AddCash(ctx context.Context, deltas []store.CashDelta) error {
	for _, d := range deltas {
		c, ok := t.state.companies[d.CompanyID]
		if !ok {
			return fmt.Errorf("add cash: company %s not found", d.CompanyID)
		}
		c.Cash = c.Cash.Add(d.Delta)
		t.state.companies[d.CompanyID] = c
	}
	return nil
}

func (t *tx) ApplyPositionDeltas(ctx context.Context, deltas []store.PositionDelta) error {
	for _, d := range deltas {
		key := posKey{d.HolderID, d.IssuerID, d.Private}
		p, ok := t.state.positions[key]
		if !ok {
			p = model.DepotPosition{
				ID:          uuid.New(),
				HolderID:    d.HolderID,
				IssuerID:    d.IssuerID,
				Private:     d.Private,
				PriceBought: d.PriceBought,
			}
		}
		p.Amount += d.Delta
		if p.Amount < 0 {
			return fmt.Errorf("position (%s, %s) amount went negative: %d", d.HolderID, d.IssuerID, p.Amount)
		}
		t.state.positions[key] = p
	}
	return nil
}

func (t *tx) DeleteEmptyPositions(ctx context.Context) error {
	for key, p := range t.state.positions {
		if p.Amount == 0 {
			delete(t.state.positions, key)
		}
	}
	return nil
}

func (t *tx) UpdateOrderAmounts(ctx context.Context, updates []store.OrderAmount) error {
	for _, u := range updates {
		o, ok := t.state.orders[u.ID]
		if !ok {
			continue
		}
		o.Amount = u.Amount
		t.state.orders[u.ID] = o
	}
	return nil
}

func (t *tx) UpdateOrderPrices(ctx context.Context, updates []store.OrderPrice) error {
	for _, u := range updates {
		o, ok := t.state.orders[u.ID]
		if !ok {
			continue
		}
		o.Price = u.Price
		t.state.orders[u.ID] = o
	}
	return nil
}

func (t *tx) DeleteOrders(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		delete(t.state.orders, id)
	}
	return nil
}

func (t *tx) InsertOrders(ctx context.Context, orders []model.Order) error {
	for _, o := range orders {
		if _, exists := t.state.orders[o.ID]; exists {
			return fmt.Errorf("insert orders: duplicate id %s", o.ID)
		}
		t.state.orders[o.ID] = o
	}
	return nil
}

func (t *tx) InsertTrades(ctx context.Context, trades []model.Trade) error {
	t.state.trades = append(t.state.trades, trades...)
	return nil
}

func (t *tx) InsertStatements(ctx context.Context, statements []model.StatementOfAccount) error {
	t.state.statements = append(t.state.statements, statements...)
	return nil
}

func (t *tx) InsertNotifications(ctx context.Context, notifications []model.Notification) error {
	t.state.notifications = append(t.state.notifications, notifications...)
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("commit: unit of work already finished")
	}
	t.done = true
	t.store.state = t.state
	t.store.mu.Unlock()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}
