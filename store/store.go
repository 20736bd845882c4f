package store

import (
	"context"
	"errors"

	"stablecoin-swap/domain"
)

var (
	// ErrReadOnly a write was attempted inside View
	ErrReadOnly = errors.New("store: write in read-only transaction")

	// ErrConflict an optimistic transaction kept losing to concurrent writers
	ErrConflict = errors.New("store: transaction conflict")
)

// Tx reads and writes ledger state inside a single transaction.
// Writes become visible to later reads of the same Tx immediately.
type Tx interface {
	// Rate returns the configured rate for the ordered pair and whether one exists
	Rate(ctx context.Context, from, to domain.ID) (domain.Rate, bool, error)
	SetRate(ctx context.Context, from, to domain.ID, rate domain.Rate) error

	// Balance returns the balance keyed by id, zero when absent
	Balance(ctx context.Context, id domain.ID) (domain.Amount, error)
	SetBalance(ctx context.Context, id domain.ID, amount domain.Amount) error
}

// Store holds the rate table and the balance ledger.
type Store interface {
	// View runs fn without allowing writes.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Update runs fn atomically. If fn returns an error nothing written through tx is kept.
	// fn may be invoked more than once and must not carry state between invocations.
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// pair key of the rate table
type pair struct {
	from domain.ID
	to   domain.ID
}
