// Package store owns traffic-record persistence.
//
// The package defines the [Store] interface which abstracts the record
// store, and selects the backend at build time the same way the rest of
// the storage layer is configured:
//   - Default: one human-readable JSON file per repository under the
//     storage root, rewritten atomically on every mutation.
//   - With -tags sqlite: a single SQLite database via modernc.org/sqlite.
//
// The store is the sole owner of authoritative state. Every Merge or
// MarkSynced call persists durably before returning, so a crash between
// reconciliation steps never loses already-confirmed state. Records are
// never deleted.
//
// The store is accessed strictly sequentially by the reconciliation loop;
// no locking is performed. A multi-process deployment would need
// file-level locking on the storage root, which is intentionally not
// implemented.
package store
