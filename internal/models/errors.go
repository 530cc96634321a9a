package models

import (
	"errors"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/tender"
)

var (
	ErrInvalidEvent                 = errors.New("invalid settlement event")
	ErrInvalidTenderAmount          = errors.New("invalid tender amount")
	ErrDuplicateTenderKind          = errors.New("tender kind repeated within one settlement")
	ErrDebtorNameRequired           = errors.New("debtor name required for debt tender")
	ErrDebtorMismatch               = errors.New("obligation already owed by a different debtor")
	ErrAlreadySettled               = errors.New("obligation already settled")
	ErrInsufficientRemainingBalance = errors.New("payment exceeds remaining balance")
	ErrConcurrentModification       = errors.New("obligation modified concurrently")
	ErrObligationNotFound           = errors.New("obligation not found")
	ErrObligationExists             = errors.New("obligation already exists")
	ErrInvalidObligation            = errors.New("invalid obligation")
	ErrStockItemNotFound            = errors.New("stock item not found")
	ErrNotFulfilled                 = errors.New("obligation not fulfilled")
)

type ErrorClass string

const (
	ClassValidation  ErrorClass = "validation"
	ClassState       ErrorClass = "state"
	ClassConcurrency ErrorClass = "concurrency"
	ClassData        ErrorClass = "data"
	ClassNotFound    ErrorClass = "not_found"
	ClassInternal    ErrorClass = "internal"
)

// Classify maps an error onto the taxonomy callers use to decide whether to
// surface, refresh, or retry.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidEvent),
		errors.Is(err, ErrInvalidTenderAmount),
		errors.Is(err, ErrDuplicateTenderKind),
		errors.Is(err, ErrDebtorNameRequired),
		errors.Is(err, ErrDebtorMismatch),
		errors.Is(err, ErrInvalidObligation):
		return ClassValidation
	case errors.Is(err, ErrAlreadySettled),
		errors.Is(err, ErrInsufficientRemainingBalance),
		errors.Is(err, ErrObligationExists),
		errors.Is(err, ErrNotFulfilled):
		return ClassState
	case errors.Is(err, ErrConcurrentModification):
		return ClassConcurrency
	case errors.Is(err, tender.ErrMalformedLedger):
		return ClassData
	case errors.Is(err, ErrObligationNotFound), errors.Is(err, ErrStockItemNotFound):
		return ClassNotFound
	}
	return ClassInternal
}
