package store

import (
	"fmt"
	"time"

	"github.com/inovacc/trafficr/internal/model"
)

// Store is the authoritative owner of traffic-record persistence.
type Store interface {
	// Load returns all known records for a repository, ordered by date
	// ascending. A repository with no history yields an empty slice, not an
	// error.
	Load(repository string) ([]model.TrafficRecord, error)

	// Merge applies one fetch window. For each incoming record, keyed by
	// (repository, date): absent records are inserted unsynced; records
	// whose counts are unchanged are left untouched; records whose counts
	// differ are overwritten and flagged unsynced so the correction is
	// re-uploaded. Merge is idempotent.
	Merge(repository string, records []model.TrafficRecord) error

	// MarkSynced flags the record for the given day as confirmed uploaded.
	// A missing key is a no-op: a concurrent correction may have replaced
	// the record a delayed confirmation refers to.
	MarkSynced(repository string, date time.Time) error

	// Pending returns all records not yet confirmed uploaded, oldest date
	// first. Upload order matters: the remote side is append-only and
	// audited chronologically.
	Pending(repository string) ([]model.TrafficRecord, error)

	// Ping verifies the storage root is usable.
	Ping() error

	// Close releases any resources held by the backend.
	Close() error
}

// PersistenceError wraps a failed local write. Losing the ability to
// durably record data defeats the archiver's purpose, so callers treat it
// as fatal.
type PersistenceError struct {
	Repository string
	Op         string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Repository, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// day truncates a timestamp to its UTC calendar day.
func day(t time.Time) time.Time {
	utc := t.UTC()

	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
