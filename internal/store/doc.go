// Package store defines the persistence boundary of the engine.
//
// A Tx is one all-or-nothing unit of work: every engine invocation opens
// one, stages reads and bulk writes against it, and either commits at
// the end or rolls the whole thing back. Mid-run flushes from the
// mutation accumulator write inside the open transaction, so they bound
// memory without ever committing partial state.
package store
