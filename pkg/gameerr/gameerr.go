package gameerr

import (
	"errors"
	"fmt"
)

// Kind categorizes an engine error so callers can decide how to recover.
type Kind string

const (
	Network          Kind = "network"
	RateLimited      Kind = "rate_limited"
	Malformed        Kind = "malformed"
	NotFound         Kind = "not_found"
	Filesystem       Kind = "filesystem"
	AmbiguousChoice  Kind = "ambiguous_choice"
	ConcurrentAction Kind = "concurrent_action"
	NoLaunchable     Kind = "no_launchable"
	Validation       Kind = "validation"
	Stale            Kind = "stale"
	Internal         Kind = "internal"
)

// Error is a structured engine error.
type Error struct {
	Kind    Kind
	Message string
	Err     error // optional underlying error

	// Candidates lists the valid choices when Kind is AmbiguousChoice.
	Candidates []string
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a new engine Error.
func New(k Kind, msg string, err error) *Error { return &Error{Kind: k, Message: msg, Err: err} }

// Newf constructs an engine Error without an underlying cause.
func Newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Ambiguous reports that the caller has to pick one of candidates before retrying.
func Ambiguous(msg string, candidates []string) *Error {
	c := make([]string, len(candidates))
	copy(c, candidates)
	return &Error{Kind: AmbiguousChoice, Message: msg, Candidates: c}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }

// CandidatesOf returns the choices carried by an AmbiguousChoice error.
func CandidatesOf(err error) []string {
	var e *Error
	if errors.As(err, &e) && e.Kind == AmbiguousChoice {
		return e.Candidates
	}
	return nil
}

// Recoverable reports whether an error leaves prior state untouched and may simply be retried later.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case Network, RateLimited, Malformed, NotFound, Stale:
		return true
	}
	return false
}
