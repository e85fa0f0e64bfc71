// Package database manages the Postgres connection pool.
//
// Every pooled connection registers the shopspring decimal codec so
// numeric columns scan directly into decimal.Decimal.
package database
