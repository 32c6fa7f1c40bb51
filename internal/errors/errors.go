package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinels for errors.Is. Every typed error below matches exactly one of them.
var (
	ErrValidation          = fmt.Errorf("validation failed")
	ErrInsufficientBalance = fmt.Errorf("insufficient balance")
	ErrPrecondition        = fmt.Errorf("precondition not met")
	ErrConflict            = fmt.Errorf("conflict")
	ErrNotFound            = fmt.Errorf("not found")
)

// ValidationError is malformed or out-of-policy input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError carries the balance seen by the guard so the caller can correct
// the amount.
type InsufficientBalanceError struct {
	AvailableCents int64
	RequestedCents int64
	Currency       string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s %s, requested %s %s, short by %s %s",
		FormatCents(e.AvailableCents), e.Currency, FormatCents(e.RequestedCents), e.Currency,
		FormatCents(e.ShortfallCents()), e.Currency)
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// ShortfallCents is how much the request exceeds the available balance.
func (e *InsufficientBalanceError) ShortfallCents() int64 {
	return e.RequestedCents - e.AvailableCents
}

// PreconditionNotMetError names the setup step the caller has to complete first.
type PreconditionNotMetError struct {
	Step string
	Msg  string
}

func (e *PreconditionNotMetError) Error() string { return e.Msg }

func (e *PreconditionNotMetError) Is(target error) bool { return target == ErrPrecondition }

// ConflictError is a transition attempted from a status that does not allow it.
type ConflictError struct {
	Status string
	Msg    string
}

func (e *ConflictError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("withdrawal already processed (status: %s)", e.Status)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// FormatCents renders minor units as a two-decimal amount, e.g. 1234 -> "12.34".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
