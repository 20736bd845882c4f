package coinbase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stablecoin-swap/domain"
)

// mock counting lookups per base
type mock struct {
	lock  sync.Mutex
	calls map[domain.Symbol]int
	err   error
}

func (m *mock) ExchangeRates(_ context.Context, base domain.Symbol) (domain.Quotes, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.calls == nil {
		m.calls = map[domain.Symbol]int{}
	}
	m.calls[base]++
	if m.err != nil {
		return nil, m.err
	}
	return domain.Quotes{"USDT": decimal.RequireFromString("1.0002")}, nil
}

func (m *mock) count(base domain.Symbol) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.calls[base]
}

func TestQuoteCache_Warm(t *testing.T) {
	ctx := context.Background()
	var underlyingService mock
	c := NewQuoteCache(&underlyingService, []domain.Symbol{"USDC", "DAI"}, time.Minute, log.NewNopLogger())

	require.NoError(t, c.Warm(ctx))
	assert.Equal(t, 1, underlyingService.count("USDC"))
	assert.Equal(t, 1, underlyingService.count("DAI"))

	quotes, err := c.ExchangeRates(ctx, "USDC")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.0002").Equal(quotes["USDT"]))
	assert.Equal(t, 1, underlyingService.count("USDC"))
}

func TestQuoteCache_MissIsCached(t *testing.T) {
	ctx := context.Background()
	var underlyingService mock
	c := NewQuoteCache(&underlyingService, nil, time.Minute, log.NewNopLogger())

	_, err := c.ExchangeRates(ctx, "USDT")
	require.NoError(t, err)
	_, err = c.ExchangeRates(ctx, "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1, underlyingService.count("USDT"))
}

func TestQuoteCache_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var underlyingService mock
	c := NewQuoteCache(&underlyingService, []domain.Symbol{"USDC"}, time.Millisecond, log.NewNopLogger())
	require.NoError(t, c.Warm(ctx))

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return underlyingService.count("USDC") > 1
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestQuoteCache_Run_NonPositiveRefresh(t *testing.T) {
	var underlyingService mock
	c := NewQuoteCache(&underlyingService, []domain.Symbol{"USDC"}, 0, log.NewNopLogger())

	// returns instead of panicking on a zero ticker
	c.Run(context.Background())
	assert.Equal(t, 0, underlyingService.count("USDC"))
}

func TestQuoteCache_DoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	underlyingService := mock{err: errors.New("unavailable")}
	c := NewQuoteCache(&underlyingService, []domain.Symbol{"USDC", "DAI"}, time.Minute, log.NewNopLogger())

	err := c.Warm(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, underlyingService.count("DAI"))

	_, err = c.ExchangeRates(ctx, "USDC")
	assert.Error(t, err)
	assert.Equal(t, 2, underlyingService.count("USDC"))
}
