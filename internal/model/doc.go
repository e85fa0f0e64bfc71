// Package model defines the shared exchange entities: companies, orders,
// depot positions, trades, statements of account, and notifications.
//
// Conventions:
//   - Money (prices, cash, limits): decimal.Decimal in game currency
//   - Share counts: int64, always positive when persisted
//   - IDs: uuid.UUID, generated client-side
package model
