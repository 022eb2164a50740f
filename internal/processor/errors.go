package processor

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures from the remote backend so callers can
// decide between failing a job outright and retrying on the next tick.
type ErrorKind string

const (
	// KindAuth: the backend rejected our credentials. Fatal.
	KindAuth ErrorKind = "auth"
	// KindRejected: the backend refused the payload (oversized, invalid,
	// unsupported type). Fatal.
	KindRejected ErrorKind = "rejected"
	// KindTransient: network failure or a 5xx that is expected to clear.
	// Retryable by the poller for status queries.
	KindTransient ErrorKind = "transient"
	// KindNotFound: the remote job ID is unknown to the backend. Fatal.
	KindNotFound ErrorKind = "not_found"
)

// RemoteError wraps a failure talking to the document-processing backend.
type RemoteError struct {
	Kind       ErrorKind
	Op         string // "submit" or "status"
	StatusCode int    // HTTP status, 0 for network-level failures
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Op, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a remote failure worth retrying on
// the next poll tick.
func IsTransient(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind == KindTransient
	}
	// Unknown error shapes from the transport are treated as transient:
	// the poller's attempt budget still bounds them.
	return true
}

// KindOf returns the error classification, defaulting to transient for
// unrecognized errors.
func KindOf(err error) ErrorKind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransient
}
