package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies engine errors. Kinds drive retry policy, exit
// codes and structured log tags; see KindOf.
type ErrorKind string

const (
	// KindConfigInvalid marks a configuration value that failed validation.
	KindConfigInvalid ErrorKind = "config_invalid"
	// KindConfigMissing marks a required config file or key that is absent.
	KindConfigMissing ErrorKind = "config_missing"
	// KindProviderUnknown marks a provider name with no registered factory.
	KindProviderUnknown ErrorKind = "provider_unknown"
	// KindProviderInit marks a provider factory failure.
	KindProviderInit ErrorKind = "provider_init"
	// KindStoreCorrupt marks a shard or index file that failed integrity checks.
	KindStoreCorrupt ErrorKind = "store_corrupt"
	// KindQuotaExceeded marks a size or count limit violation.
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	// KindTransient marks an I/O, network or remote-service error eligible
	// for retry.
	KindTransient ErrorKind = "transient"
	// KindFileIndexingFailed marks a file whose retry budget is exhausted;
	// recorded in the operation's failure list.
	KindFileIndexingFailed ErrorKind = "file_indexing_failed"
	// KindCancelled marks a user-requested abort.
	KindCancelled ErrorKind = "cancelled"
	// KindInternal marks everything else.
	KindInternal ErrorKind = "internal"
)

// Error is the engine's coded error. Kind is machine-readable, Message
// human-readable; Context carries structured fields for logs and the
// CLI's stderr JSON line.
type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]string
	Err     error
}

// E constructs an Error with a formatted message.
func E(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap constructs an Error around an underlying cause.
func Wrap(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// With attaches a context field and returns the same error for chaining.
func (e *Error) With(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by kind so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// MarshalJSON renders the {kind, context} structure the CLI prints on
// stderr.
func (e *Error) MarshalJSON() ([]byte, error) {
	ctx := e.Context
	if ctx == nil {
		ctx = map[string]string{}
	}
	return json.Marshal(struct {
		Kind    ErrorKind         `json:"kind"`
		Message string            `json:"message"`
		Context map[string]string `json:"context"`
	}{e.Kind, e.Message, ctx})
}

// KindOf extracts the kind from any error. Context cancellation maps to
// KindCancelled; unclassified errors map to KindInternal; nil maps to "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsTransient reports whether err is eligible for retry.
func IsTransient(err error) bool {
	return IsKind(err, KindTransient)
}
