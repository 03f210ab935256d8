package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource. Not-found is a legitimate
// verdict outcome for the verification engine, never a fault.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// InvalidInputError marks malformed caller input. Recoverable by the caller
// correcting the input, never retried internally.
type InvalidInputError struct {
	Reason string
}

func (e InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func (e InvalidInputError) Is(target error) bool {
	_, ok := target.(InvalidInputError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidInputError)
	return ok
}

var ErrInvalidInput = InvalidInputError{}

// DuplicateIDError signals a record id collision in the store.
type DuplicateIDError struct {
	ID string
}

func (e DuplicateIDError) Error() string {
	return fmt.Sprintf("record id already exists: %s", e.ID)
}

func (e DuplicateIDError) Is(target error) bool {
	_, ok := target.(DuplicateIDError)
	if ok {
		return true
	}
	_, ok = target.(*DuplicateIDError)
	return ok
}

var ErrDuplicateID = DuplicateIDError{}

// DuplicateFingerprintError signals that a fingerprint is already held, by
// the store or by the ledger, under a different id.
type DuplicateFingerprintError struct {
	Fingerprint string
}

func (e DuplicateFingerprintError) Error() string {
	return fmt.Sprintf("fingerprint already registered: %s", e.Fingerprint)
}

func (e DuplicateFingerprintError) Is(target error) bool {
	_, ok := target.(DuplicateFingerprintError)
	if ok {
		return true
	}
	_, ok = target.(*DuplicateFingerprintError)
	return ok
}

var ErrDuplicateFingerprint = DuplicateFingerprintError{}

// UnauthorizedError marks a permission failure on an administrative surface.
type UnauthorizedError struct {
	Actor string
}

func (e UnauthorizedError) Error() string {
	if e.Actor == "" {
		return "unauthorized"
	}
	return fmt.Sprintf("unauthorized: %s", e.Actor)
}

func (e UnauthorizedError) Is(target error) bool {
	_, ok := target.(UnauthorizedError)
	if ok {
		return true
	}
	_, ok = target.(*UnauthorizedError)
	return ok
}

var ErrUnauthorized = UnauthorizedError{}

// IssuerNotAuthorizedError is the ledger rejecting an anchor because the
// issuer lacks anchoring permission. Permanent; never retried.
type IssuerNotAuthorizedError struct {
	Issuer string
}

func (e IssuerNotAuthorizedError) Error() string {
	if e.Issuer == "" {
		return "issuer not authorized"
	}
	return fmt.Sprintf("issuer not authorized: %s", e.Issuer)
}

func (e IssuerNotAuthorizedError) Is(target error) bool {
	_, ok := target.(IssuerNotAuthorizedError)
	if ok {
		return true
	}
	_, ok = target.(*IssuerNotAuthorizedError)
	return ok
}

var ErrIssuerNotAuthorized = IssuerNotAuthorizedError{}

// LedgerUnavailableError is a transient infrastructure failure. Callers retry
// with backoff a bounded number of times before surfacing it.
type LedgerUnavailableError struct {
	Cause error
}

func (e LedgerUnavailableError) Error() string {
	if e.Cause == nil {
		return "ledger unavailable"
	}
	return fmt.Sprintf("ledger unavailable: %v", e.Cause)
}

func (e LedgerUnavailableError) Is(target error) bool {
	_, ok := target.(LedgerUnavailableError)
	if ok {
		return true
	}
	_, ok = target.(*LedgerUnavailableError)
	return ok
}

func (e LedgerUnavailableError) Unwrap() error { return e.Cause }

var ErrLedgerUnavailable = LedgerUnavailableError{}

// InvalidTransitionError marks a lifecycle rule violation. The store never
// coerces a bad transition to the nearest valid state.
type InvalidTransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
}

func (e InvalidTransitionError) Is(target error) bool {
	_, ok := target.(InvalidTransitionError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidTransitionError)
	return ok
}

var ErrInvalidTransition = InvalidTransitionError{}

// IsTransient reports whether err may be retried. Only ledger availability
// failures qualify; local component failures indicate programming or data
// errors and must propagate immediately.
func IsTransient(err error) bool {
	return errors.Is(err, ErrLedgerUnavailable)
}
