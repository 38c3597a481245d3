// Package poller implements the ledger inbox watcher.
//
// The watcher:
//   - Scans the configured ledger directory on a fixed interval
//   - Submits new or modified ledger files as one batch per cycle
//   - Relies on import idempotence, so resubmitting a file is always safe
package poller
