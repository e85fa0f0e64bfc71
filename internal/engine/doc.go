// Package engine implements order matching and settlement.
//
// Four operations share one data model and batching discipline: the
// full-market sweep, the single-company check fired after order
// creation, the decaying-order price tick, and the central-bank auto
// listing. Each runs as one unit of work: a task lease is acquired, all
// side effects are staged in a mutation accumulator and written inside
// a single store transaction, and the whole invocation commits or rolls
// back together.
package engine
