package github

import "fmt"

// FetchKind categorizes a failed traffic fetch.
type FetchKind int

const (
	// FetchAuth means the token was rejected (invalid or expired)
	FetchAuth FetchKind = iota

	// FetchNotFound means the repository does not exist or is invisible to
	// the token
	FetchNotFound

	// FetchTransport covers network failures and unexpected API responses
	FetchTransport
)

func (k FetchKind) String() string {
	switch k {
	case FetchAuth:
		return "auth"
	case FetchNotFound:
		return "not found"
	case FetchTransport:
		return "transport"
	}

	return "unknown"
}

// FetchError reports a failed traffic fetch for one repository. It never
// aborts a cycle; the reconciliation loop logs it and moves to the next
// repository.
type FetchError struct {
	Repository string
	Kind       FetchKind
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.Repository, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
