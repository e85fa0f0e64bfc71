package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockgame/engine/internal/model"
)

//go:embed schema.sql
var schema string

// PG implements Store on a Postgres connection pool.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG creates a Postgres-backed store.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// EnsureSchema creates all tables and indexes if they do not exist.
func (p *PG) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Begin opens a unit of work.
func (p *PG) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockMarket(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx, `LOCK TABLE companies, depot_positions IN ACCESS EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock market tables: %w", err)
	}
	return nil
}

func (t *pgTx) LockCompany(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `SELECT id FROM companies WHERE id = $1 FOR UPDATE`, id); err != nil {
		return fmt.Errorf("lock company: %w", err)
	}
	return nil
}

const companyColumns = `id, name, cash, shares, share_price, owner_id, created_at`

func scanCompany(row pgx.Row) (model.Company, error) {
	var c model.Company
	var owner uuid.NullUUID
	if err := row.Scan(&c.ID, &c.Name, &c.Cash, &c.Shares, &c.SharePrice, &owner, &c.CreatedAt); err != nil {
		return model.Company{}, err
	}
	if owner.Valid {
		c.OwnerID = &owner.UUID
	}
	return c, nil
}

func (t *pgTx) Companies(ctx context.Context, excludeCentralBank bool) ([]model.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies`
	args := []any{}
	if excludeCentralBank {
		query += ` WHERE name <> $1`
		args = append(args, model.CentralBankName)
	}
	query += ` ORDER BY created_at, id`

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (t *pgTx) CompanyByID(ctx context.Context, id uuid.UUID) (model.Company, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	c, err := scanCompany(row)
	if err != nil {
		return model.Company{}, fmt.Errorf("company %s: %w", id, err)
	}
	return c, nil
}

func (t *pgTx) CentralBank(ctx context.Context) (model.Company, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE name = $1`, model.CentralBankName)
	c, err := scanCompany(row)
	if err != nil {
		return model.Company{}, fmt.Errorf("central bank: %w", err)
	}
	return c, nil
}

const orderColumns = `o.id, o.placed_by, o.issuer, o.side, o.kind, o.price, o.amount,
	o.limit_price, o.step, o.created_at, pb.owner_id, i.name`

const orderJoins = `FROM orders o
	JOIN companies pb ON pb.id = o.placed_by
	JOIN companies i ON i.id = o.issuer`

func scanOrders(rows pgx.Rows) ([]model.Order, error) {
	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var owner uuid.NullUUID
		if err := rows.Scan(&o.ID, &o.PlacedBy, &o.Issuer, &o.Side, &o.Kind, &o.Price, &o.Amount,
			&o.Limit, &o.Step, &o.CreatedAt, &owner, &o.IssuerName); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if owner.Valid {
			o.OwnerID = &owner.UUID
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (t *pgTx) OrderBook(ctx context.Context, issuerID uuid.UUID) ([]model.Order, []model.Order, error) {
	buys, err := t.ordersBySide(ctx, issuerID, model.Buy, "DESC")
	if err != nil {
		return nil, nil, err
	}
	sells, err := t.ordersBySide(ctx, issuerID, model.Sell, "ASC")
	if err != nil {
		return nil, nil, err
	}
	return buys, sells, nil
}

func (t *pgTx) ordersBySide(ctx context.Context, issuerID uuid.UUID, side model.Side, direction string) ([]model.Order, error) {
	query := fmt.Sprintf(`SELECT %s %s
		WHERE o.issuer = $1 AND o.side = $2
		ORDER BY o.price %s, o.created_at ASC, o.id ASC`,
		orderColumns, orderJoins, direction)

	rows, err := t.tx.Query(ctx, query, issuerID, side)
	if err != nil {
		return nil, fmt.Errorf("query %s orders: %w", side, err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (t *pgTx) DecayingOrders(ctx context.Context) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` ` + orderJoins + `
		WHERE o.kind = $1
		ORDER BY o.created_at, o.id`

	rows, err := t.tx.Query(ctx, query, model.Decaying)
	if err != nil {
		return nil, fmt.Errorf("query decaying orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (t *pgTx) PositionsHeldBy(ctx context.Context, holderID uuid.UUID) ([]model.DepotPosition, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, holder_id, issuer_id, private_depot, amount, price_bought
		FROM depot_positions
		WHERE holder_id = $1
		ORDER BY issuer_id`, holderID)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []model.DepotPosition
	for rows.Next() {
		var p model.DepotPosition
		if err := rows.Scan(&p.ID, &p.HolderID, &p.IssuerID, &p.Private, &p.Amount, &p.PriceBought); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (t *pgTx) IssuersWithOpenSells(ctx context.Context, placedBy uuid.UUID) (map[uuid.UUID]struct{}, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT DISTINCT issuer FROM orders
		WHERE placed_by = $1 AND side = $2`, placedBy, model.Sell)
	if err != nil {
		return nil, fmt.Errorf("query open sells: %w", err)
	}
	defer rows.Close()

	issuers := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan issuer: %w", err)
		}
		issuers[id] = struct{}{}
	}
	return issuers, rows.Err()
}

func (t *pgTx) DistributedShares(ctx context.Context, issuerID uuid.UUID) (int64, error) {
	var sum int64
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM depot_positions
		WHERE issuer_id = $1`, issuerID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum distributed shares: %w", err)
	}
	return sum, nil
}

// sendBatch executes a batch and drains every result.
func (t *pgTx) sendBatch(ctx context.Context, batch *pgx.Batch, op string) error {
	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (t *pgTx) AddCash(ctx context.Context, deltas []CashDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range deltas {
		batch.Queue(`UPDATE companies SET cash = cash + $2 WHERE id = $1`, d.CompanyID, d.Delta)
	}
	return t.sendBatch(ctx, batch, "add cash")
}

func (t *pgTx) ApplyPositionDeltas(ctx context.Context, deltas []PositionDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range deltas {
		batch.Queue(`
			INSERT INTO depot_positions (id, holder_id, issuer_id, private_depot, amount, price_bought)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (holder_id, issuer_id, private_depot)
			DO UPDATE SET amount = depot_positions.amount + EXCLUDED.amount`,
			uuid.New(), d.HolderID, d.IssuerID, d.Private, d.Delta, d.PriceBought)
	}
	return t.sendBatch(ctx, batch, "apply position deltas")
}

func (t *pgTx) DeleteEmptyPositions(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM depot_positions WHERE amount = 0`); err != nil {
		return fmt.Errorf("delete empty positions: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateOrderAmounts(ctx context.Context, updates []OrderAmount) error {
	if len(updates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`UPDATE orders SET amount = $2 WHERE id = $1`, u.ID, u.Amount)
	}
	return t.sendBatch(ctx, batch, "update order amounts")
}

func (t *pgTx) UpdateOrderPrices(ctx context.Context, updates []OrderPrice) error {
	if len(updates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`UPDATE orders SET price = $2 WHERE id = $1`, u.ID, u.Price)
	}
	return t.sendBatch(ctx, batch, "update order prices")
}

func (t *pgTx) DeleteOrders(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`DELETE FROM orders WHERE id = $1`, id)
	}
	return t.sendBatch(ctx, batch, "delete orders")
}

func (t *pgTx) InsertOrders(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, o := range orders {
		batch.Queue(`
			INSERT INTO orders (id, placed_by, issuer, side, kind, price, amount, limit_price, step, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			o.ID, o.PlacedBy, o.Issuer, o.Side, o.Kind, o.Price, o.Amount, o.Limit, o.Step, o.CreatedAt)
	}
	return t.sendBatch(ctx, batch, "insert orders")
}

func (t *pgTx) InsertTrades(ctx context.Context, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, tr := range trades {
		batch.Queue(`
			INSERT INTO trades (id, buyer_id, seller_id, issuer_id, price, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			tr.ID, tr.BuyerID, tr.SellerID, tr.IssuerID, tr.Price, tr.Amount, tr.CreatedAt)
	}
	return t.sendBatch(ctx, batch, "insert trades")
}

func (t *pgTx) InsertStatements(ctx context.Context, statements []model.StatementOfAccount) error {
	if len(statements) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range statements {
		var tradeID any
		if s.TradeID != nil {
			tradeID = *s.TradeID
		}
		batch.Queue(`
			INSERT INTO statements_of_account (id, company_id, kind, value, amount, received, trade_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			s.ID, s.CompanyID, s.Kind, s.Value, s.Amount, s.Received, tradeID, s.CreatedAt)
	}
	return t.sendBatch(ctx, batch, "insert statements")
}

func (t *pgTx) InsertNotifications(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, n := range notifications {
		batch.Queue(`
			INSERT INTO notifications (id, user_id, subject, text, read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			n.ID, n.UserID, n.Subject, n.Text, n.Read, n.CreatedAt)
	}
	return t.sendBatch(ctx, batch, "insert notifications")
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
