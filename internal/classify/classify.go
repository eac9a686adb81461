// Package classify names the error kinds the pipeline core recognizes
// (spec §7) and how a caller should react to each: fail fast, retry
// with backoff, advance to the next engine in a fallback chain, or
// degrade gracefully. No error kind is inferred from a bare error
// string match — callers construct a classify.Error explicitly at the
// point they know what happened (an HTTP status code, a timeout, a
// JSON parse failure), the same way the teacher's clients report a
// concrete failure reason rather than a generic wrapped error.
package classify

import "fmt"

// Kind is one of the error categories spec.md §7 enumerates.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindInputExhaustion    Kind = "input_exhaustion"
	KindTransientRemote    Kind = "transient_remote"
	KindQuotaRemote        Kind = "quota_remote"
	KindMalformedResponse  Kind = "malformed_response"
	KindResourceExhaustion Kind = "resource_exhaustion"
	KindCancelled          Kind = "cancelled"
	KindFatalSubprocess    Kind = "fatal_subprocess"
)

// Error wraps an underlying cause with the Kind the pipeline needs in
// order to decide retry/fallback/fail policy.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Cancelled is a convenience constructor for the checkpoint-observed
// cancellation condition every suspension point must be able to raise.
func Cancelled(op string) *Error {
	return &Error{Kind: KindCancelled, Op: op}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error,
// defaulting to KindTransientRemote for anything unclassified so an
// unexpected error still gets a bounded retry rather than an infinite loop.
func KindOf(err error) Kind {
	var ce *Error
	if asError(err, &ce) {
		return ce.Kind
	}
	return KindTransientRemote
}

func asError(err error, target **Error) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Retryable reports whether a stage should attempt exponential backoff
// before advancing the engine (transient) rather than advancing
// immediately (quota) or giving up (everything else).
func Retryable(kind Kind) bool {
	return kind == KindTransientRemote
}

// AdvancesFallback reports whether this kind should move to the next
// engine in the dispatcher's ordered chain rather than fail the job outright.
func AdvancesFallback(kind Kind) bool {
	switch kind {
	case KindTransientRemote, KindQuotaRemote, KindMalformedResponse:
		return true
	default:
		return false
	}
}
