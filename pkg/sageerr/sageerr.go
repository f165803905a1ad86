// Package sageerr defines the error-kind taxonomy shared by every
// internal component boundary (spec §7). Components return *Error
// instead of raising; the Tool Server is the sole place that translates
// a *Error into a JSON-RPC error object or an isError:true tool result.
package sageerr

import (
	"errors"
	"fmt"
)

// Kind is a coarse error category, not a concrete Go type, so that
// callers can branch on behavior (retry? roll back? surface to user?)
// without type-asserting across package boundaries.
type Kind string

const (
	InputInvalid        Kind = "input_invalid"
	ConfigMissing        Kind = "config_missing"
	ProviderUnavailable  Kind = "provider_unavailable"
	StorageTransient     Kind = "storage_transient"
	StorageFatal         Kind = "storage_fatal"
	HookReconcileMissing Kind = "hook_reconcile_missing"
	Cancelled            Kind = "cancelled"

	// ProviderTimeout, ProviderServerError, ProviderClientError and
	// ProviderSchema refine ProviderUnavailable for the Embedding Client
	// contract (spec §4.6), which documents these as distinct kinds.
	ProviderTimeout     Kind = "timeout"
	ProviderServerError Kind = "provider_5xx"
	ProviderClientError Kind = "provider_4xx"
	ProviderSchema      Kind = "schema"
)

// Error is the tagged error type propagated across internal boundaries.
type Error struct {
	Kind          Kind
	Component     string
	CorrelationID string
	Err           error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Component, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error.
func New(kind Kind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

// WithCorrelation attaches a correlation id (e.g. a turn id or call id)
// used by structured logging to tie a failure back to its request.
func (e *Error) WithCorrelation(id string) *Error {
	e.CorrelationID = id
	return e
}

// Retryable reports whether the kind is worth retrying with backoff,
// per the retry policy in spec §7.
func Retryable(k Kind) bool {
	switch k {
	case ProviderUnavailable, StorageTransient, ProviderTimeout, ProviderServerError:
		return true
	default:
		return false
	}
}

// As extracts a *Error from err, if any, mirroring errors.As without
// requiring callers to import "errors" for this one common case.
func As(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
