package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLocker implements Locker on the engine_leases table, so multiple
// engine processes sharing one database exclude each other. Expired
// leases are taken over in the same statement that acquires them.
type PGLocker struct {
	pool *pgxpool.Pool
}

// NewPGLocker creates a Postgres-backed locker.
func NewPGLocker(pool *pgxpool.Pool) *PGLocker {
	return &PGLocker{pool: pool}
}

// TryAcquire implements Locker.
func (p *PGLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	holder := uuid.New()

	var name string
	err := p.pool.QueryRow(ctx, `
		INSERT INTO engine_leases (name, holder, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (name) DO UPDATE
			SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
			WHERE engine_leases.expires_at <= now()
		RETURNING name`,
		key, holder, ttl.Seconds()).Scan(&name)

	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict row still valid: someone else holds the lease.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lease %q: %w", key, err)
	}

	return &Lease{
		Key:    key,
		Holder: holder,
		release: func(ctx context.Context) error {
			_, err := p.pool.Exec(ctx,
				`DELETE FROM engine_leases WHERE name = $1 AND holder = $2`, key, holder)
			if err != nil {
				return fmt.Errorf("release lease %q: %w", key, err)
			}
			return nil
		},
	}, nil
}
