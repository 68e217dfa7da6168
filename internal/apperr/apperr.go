// Package apperr defines the engine's closed error-kind taxonomy.
//
// The core never returns free-form, stringly-typed errors: every failure
// path is tagged with one of the Kinds below and carries thin diagnostic
// context (stage name, chunk sequence) for callers that need it.
package apperr

import "fmt"

// Kind is a closed enum of error categories the engine can surface.
type Kind string

const (
	Io                Kind = "io"
	Validation        Kind = "validation"
	Integrity         Kind = "integrity"
	Compression       Kind = "compression"
	Decompression     Kind = "decompression"
	Encryption        Kind = "encryption"
	Decryption        Kind = "decryption"
	ResourceExhausted Kind = "resource_exhausted"
	Cancelled         Kind = "cancelled"
	Internal          Kind = "internal"
)

// Error is the engine's single error type. Every core failure path wraps
// its cause in one of these rather than returning a bare error.
type Error struct {
	Kind     Kind
	Stage    string // stage name, empty if not stage-scoped
	Sequence int64  // chunk sequence number, -1 if not chunk-scoped
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Stage != "" && e.Sequence >= 0 {
		return fmt.Sprintf("%s: stage %q chunk %d: %s", e.Kind, e.Stage, e.Sequence, e.detail())
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: stage %q: %s", e.Kind, e.Stage, e.detail())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.detail())
}

func (e *Error) detail() string {
	if e.Cause != nil {
		if e.Message != "" {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// use errors.Is(err, apperr.Cancelled) style checks via the sentinel values
// below instead of type-asserting.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	if !ok {
		return false
	}
	return e.Kind == Kind(k)
}

type kindSentinel Kind

func (k kindSentinel) Error() string { return string(k) }

// Sentinels for errors.Is(err, apperr.ErrCancelled) style matching.
var (
	ErrIo                error = kindSentinel(Io)
	ErrValidation        error = kindSentinel(Validation)
	ErrIntegrity         error = kindSentinel(Integrity)
	ErrCompression       error = kindSentinel(Compression)
	ErrDecompression     error = kindSentinel(Decompression)
	ErrEncryption        error = kindSentinel(Encryption)
	ErrDecryption        error = kindSentinel(Decryption)
	ErrResourceExhausted error = kindSentinel(ResourceExhausted)
	ErrCancelled         error = kindSentinel(Cancelled)
	ErrInternal          error = kindSentinel(Internal)
)

// New builds an Error of the given kind with no stage/chunk context.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Sequence: -1, Message: message}
}

// Wrap builds an Error of the given kind wrapping cause, with no
// stage/chunk context.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Sequence: -1, Message: message, Cause: cause}
}

// WrapStage builds an Error scoped to a stage and chunk sequence.
func WrapStage(kind Kind, stage string, sequence uint64, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Sequence: int64(sequence), Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it reports Internal, since an un-tagged error reaching
// the boundary indicates a bug per spec.
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return Internal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
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
