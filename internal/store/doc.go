// Package store defines the storage contract consumed by the reconciliation
// core and an in-memory implementation of it.
//
// Every write happens inside Store.Atomic: either the whole unit of work
// commits or none of it does. Readers use Store.View and only ever observe
// committed state.
package store
