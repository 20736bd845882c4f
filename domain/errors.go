package domain

import "errors"

var (
	// ErrInsufficientBalance the caller's balance does not cover the conversion
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotOwner the caller may not perform an owner-restricted operation
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrInvalidExchangeRate the rate was rejected by the configured rate policy
	ErrInvalidExchangeRate = errors.New("invalid exchange rate")

	// ErrZeroAmount a single conversion was requested for zero units
	ErrZeroAmount = errors.New("zero amount")

	// ErrBalanceOverflow a credit or conversion product does not fit in an Amount
	ErrBalanceOverflow = errors.New("balance overflow")
)
