package store

import (
	"context"
	"sync"

	"stablecoin-swap/domain"
)

// Memory is an in-process Store. Updates are serialized by a single lock and buffered
// until fn succeeds, so a failing update leaves no trace.
type Memory struct {
	// lock serializes updates and guards rates and balances
	lock sync.RWMutex

	rates    map[pair]domain.Rate
	balances map[domain.ID]domain.Amount
}

// NewMemory returns an empty Memory store
func NewMemory() *Memory {
	return &Memory{
		rates:    map[pair]domain.Rate{},
		balances: map[domain.ID]domain.Amount{},
	}
}

func (m *Memory) View(_ context.Context, fn func(tx Tx) error) error {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return fn(&memoryTx{m: m, readOnly: true})
}

func (m *Memory) Update(_ context.Context, fn func(tx Tx) error) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	tx := &memoryTx{
		m:        m,
		rates:    map[pair]domain.Rate{},
		balances: map[domain.ID]domain.Amount{},
	}
	if err := fn(tx); err != nil {
		return err
	}

	for k, v := range tx.rates {
		m.rates[k] = v
	}
	for k, v := range tx.balances {
		m.balances[k] = v
	}
	return nil
}

// memoryTx overlays pending writes on top of the committed maps
type memoryTx struct {
	m        *Memory
	readOnly bool

	rates    map[pair]domain.Rate
	balances map[domain.ID]domain.Amount
}

func (tx *memoryTx) Rate(_ context.Context, from, to domain.ID) (domain.Rate, bool, error) {
	key := pair{from, to}
	if r, ok := tx.rates[key]; ok {
		return r, true, nil
	}
	r, ok := tx.m.rates[key]
	return r, ok, nil
}

func (tx *memoryTx) SetRate(_ context.Context, from, to domain.ID, rate domain.Rate) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.rates[pair{from, to}] = rate
	return nil
}

func (tx *memoryTx) Balance(_ context.Context, id domain.ID) (domain.Amount, error) {
	if b, ok := tx.balances[id]; ok {
		return b, nil
	}
	return tx.m.balances[id], nil
}

func (tx *memoryTx) SetBalance(_ context.Context, id domain.ID, amount domain.Amount) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.balances[id] = amount
	return nil
}
