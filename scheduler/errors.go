package scheduler

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected scheduling operation.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindAvailability Kind = "availability"
	KindConflict     Kind = "conflict"
	KindState        Kind = "state"
	KindForbidden    Kind = "forbidden"
	KindInternal     Kind = "internal"
)

// Party identifies whose calendar an overlap was found on.
type Party string

const (
	PartyDoctor  Party = "doctor"
	PartyPatient Party = "patient"
)

// Error is the structured rejection returned by every Manager operation.
// Reason is safe to show to the caller except for KindInternal.
type Error struct {
	Kind   Kind
	Party  Party
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err; unknown errors are internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// ErrNotFound is returned by Store lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// ErrSlotTaken is returned by a Store when the storage layer itself refuses an
// overlapping active appointment for a doctor.
var ErrSlotTaken = errors.New("overlapping appointment")

func invalid(reason string) error {
	return &Error{Kind: KindValidation, Reason: reason}
}

func notFound(reason string) error {
	return &Error{Kind: KindNotFound, Reason: reason}
}

func conflict(party Party, reason string) error {
	return &Error{Kind: KindConflict, Party: party, Reason: reason}
}

func badState(reason string) error {
	return &Error{Kind: KindState, Reason: reason}
}

func forbidden(reason string) error {
	return &Error{Kind: KindForbidden, Reason: reason}
}

func internal(op string, err error) error {
	return &Error{Kind: KindInternal, Reason: op, Err: err}
}

// lookup converts a Store read error into a not-found or internal rejection.
func lookup(err error, missing string) error {
	if errors.Is(err, ErrNotFound) {
		return notFound(missing)
	}
	return internal("load record", err)
}
