// Package reconcile imports parsed ledgers into the store.
//
// Each file is resolved, assigned a game key, merged into that game and
// folded into the affected player aggregates in a single unit of work locked
// by session date, so a failed file leaves no trace.
//
// Failures are scoped as narrowly as possible: a malformed row rejects that
// row, a failed file or game rejects only itself, and the rest of the batch
// continues unless the session asks to stop on the first failure.
package reconcile
