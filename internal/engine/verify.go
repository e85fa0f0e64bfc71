package engine

import (
	"context"
	"fmt"

	"github.com/stockgame/engine/internal/model"
	"github.com/stockgame/engine/internal/store"
)

// verifyShareConservation checks, for every given company, that the
// shares distributed across all depot positions equal the company's
// issued shares. A mismatch means matching created or destroyed shares
// and fails the whole unit of work.
func verifyShareConservation(ctx context.Context, tx store.Tx, companies []model.Company) error {
	for _, c := range companies {
		distributed, err := tx.DistributedShares(ctx, c.ID)
		if err != nil {
			return err
		}
		if distributed != c.Shares {
			return fmt.Errorf("%s: %d shares issued but %d distributed: %w",
				c.Name, c.Shares, distributed, ErrInvariantViolation)
		}
	}
	return nil
}
