package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput             = errors.New("loyalty: invalid input")
	ErrInvalidRange             = errors.New("loyalty: value out of range")
	ErrNotFound                 = errors.New("loyalty: not found")
	ErrAlreadyExists            = errors.New("loyalty: already exists")
	ErrUserNotFound             = errors.New("loyalty: user not found")
	ErrMerchantNotFound         = errors.New("loyalty: merchant not found")
	ErrMerchantNotParticipating = errors.New("loyalty: merchant not participating")
	ErrAccessDenied             = errors.New("loyalty: access denied")
	ErrAmountTooSmall           = errors.New("loyalty: amount too small")
	ErrInsufficientPointBank    = errors.New("loyalty: insufficient point bank")
	ErrInsufficientBalance      = errors.New("loyalty: insufficient balance")
	ErrExceedsRedemptionCap     = errors.New("loyalty: exceeds redemption cap")
	ErrDuplicateReference       = errors.New("loyalty: reference already used")
	ErrConflict                 = errors.New("loyalty: concurrent update conflict")
)

// LimitError is a business-rule rejection that carries the numbers the caller
// needs to act on it. errors.Is matches the wrapped sentinel.
type LimitError struct {
	Err       error
	Requested int64
	Available int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v: requested %d, available %d, shortfall %d", e.Err, e.Requested, e.Available, e.Shortfall())
}

func (e *LimitError) Unwrap() error { return e.Err }

func (e *LimitError) Shortfall() int64 {
	if e.Requested <= e.Available {
		return 0
	}
	return e.Requested - e.Available
}

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidInput, "invalid_input"},
	{ErrInvalidRange, "invalid_range"},
	{ErrUserNotFound, "user_not_found"},
	{ErrMerchantNotFound, "merchant_not_found"},
	{ErrMerchantNotParticipating, "merchant_not_participating"},
	{ErrAccessDenied, "access_denied"},
	{ErrAmountTooSmall, "amount_too_small"},
	{ErrInsufficientPointBank, "insufficient_point_bank"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrExceedsRedemptionCap, "exceeds_redemption_cap"},
	{ErrDuplicateReference, "duplicate_reference"},
	{ErrAlreadyExists, "already_exists"},
	{ErrNotFound, "not_found"},
	{ErrConflict, "conflict"},
}

// Code returns a stable machine-readable code for err, "ok" for nil and
// "internal" for anything that is not a loyalty error.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
