package nocodb

import "fmt"

// SyncKind categorizes a failed upload.
type SyncKind int

const (
	// SyncRateLimited means the remote refused the call for pacing reasons;
	// the same record can be retried after waiting
	SyncRateLimited SyncKind = iota

	// SyncCapacityExceeded means the remote store has hit its maximum
	// record count; retrying is pointless until an operator intervenes, so
	// the sync phase ends for the cycle
	SyncCapacityExceeded

	// SyncTransport covers network and server failures
	SyncTransport

	// SyncRejected means the remote refused the payload itself
	SyncRejected
)

func (k SyncKind) String() string {
	switch k {
	case SyncRateLimited:
		return "rate limited"
	case SyncCapacityExceeded:
		return "capacity exceeded"
	case SyncTransport:
		return "transport"
	case SyncRejected:
		return "rejected"
	}

	return "unknown"
}

// SyncError reports a failed upload of one record.
type SyncError struct {
	Repository string
	Date       string
	Kind       SyncKind
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s %s: %s: %v", e.Repository, e.Date, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
