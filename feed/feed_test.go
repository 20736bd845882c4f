package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stablecoin-swap/domain"
	"stablecoin-swap/exchange"
	"stablecoin-swap/store"
)

var (
	owner = domain.ID{0x0e}
	usdc  = domain.ID{0x01}
	usdt  = domain.ID{0x02}
	dai   = domain.ID{0x03}

	assets = map[domain.Symbol]domain.ID{
		"USDC": usdc,
		"USDT": usdt,
		"DAI":  dai,
	}
)

type mock struct {
	quotes map[domain.Symbol]domain.Quotes
}

func (m *mock) ExchangeRates(_ context.Context, base domain.Symbol) (domain.Quotes, error) {
	q, ok := m.quotes[base]
	if !ok {
		return nil, errors.New("unknown base")
	}
	return q, nil
}

func TestScaleQuote(t *testing.T) {
	tests := []struct {
		name    string
		quote   string
		want    uint64
		wantErr bool
	}{
		{"1.1", "1.1", 1_100_000, false},
		{"truncates", "0.3333337", 333_333, false},
		{"par", "1", 1_000_000, false},
		{"tiny", "0.0000001", 0, false},
		{"zero", "0", 0, true},
		{"negative", "-1.5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScaleQuote(decimal.RequireFromString(tt.quote))
			if (err != nil) != tt.wantErr {
				t.Errorf("ScaleQuote() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				assert.Equal(t, *uint256.NewInt(tt.want), got)
			}
		})
	}
}

func TestFeed_SyncOnce(t *testing.T) {
	ctx := context.Background()
	swap := exchange.NewService(store.NewMemory(), owner)
	quotes := &mock{quotes: map[domain.Symbol]domain.Quotes{
		"USDC": {
			"USDT": decimal.RequireFromString("1.0002"),
			"DAI":  decimal.RequireFromString("0"),
		},
	}}

	f, err := New(quotes, swap, assets, []domain.Pair{
		{From: "USDC", To: "USDT"},
		{From: "USDC", To: "DAI"},
		{From: "DAI", To: "USDT"},
	}, log.NewNopLogger())
	require.NoError(t, err)

	err = f.SyncOnce(ctx)
	assert.ErrorIs(t, err, ErrUnusableQuote)

	r, err := swap.Rate(ctx, usdc, usdt)
	require.NoError(t, err)
	assert.Equal(t, *uint256.NewInt(1_000_200), r)

	// unusable and unavailable quotes leave the default in place
	r, err = swap.Rate(ctx, usdc, dai)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRate(), r)

	r, err = swap.Rate(ctx, dai, usdt)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRate(), r)
}

func TestNew_UnknownAsset(t *testing.T) {
	swap := exchange.NewService(store.NewMemory(), owner)
	_, err := New(&mock{}, swap, assets, []domain.Pair{{From: "USDC", To: "EURC"}}, log.NewNopLogger())
	assert.Error(t, err)
}

func TestFeed_Run(t *testing.T) {
	swap := exchange.NewService(store.NewMemory(), owner)
	quotes := &mock{quotes: map[domain.Symbol]domain.Quotes{
		"USDT": {"DAI": decimal.RequireFromString("0.5")},
	}}
	f, err := New(quotes, swap, assets, []domain.Pair{{From: "USDT", To: "DAI"}}, log.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		r, err := swap.Rate(context.Background(), usdt, dai)
		return err == nil && r.Uint64() == 500_000
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestFeed_Run_NonPositiveInterval(t *testing.T) {
	swap := exchange.NewService(store.NewMemory(), owner)
	quotes := &mock{quotes: map[domain.Symbol]domain.Quotes{
		"USDT": {"DAI": decimal.RequireFromString("0.5")},
	}}
	f, err := New(quotes, swap, assets, []domain.Pair{{From: "USDT", To: "DAI"}}, log.NewNopLogger())
	require.NoError(t, err)

	// returns instead of blocking on a ticker
	f.Run(context.Background(), 0)

	r, err := swap.Rate(context.Background(), usdt, dai)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), r.Uint64())
}

func TestBases(t *testing.T) {
	got := Bases([]domain.Pair{
		{From: "USDC", To: "USDT"},
		{From: "DAI", To: "USDT"},
		{From: "USDC", To: "DAI"},
	})
	assert.Equal(t, []domain.Symbol{"USDC", "DAI"}, got)
	assert.Empty(t, Bases(nil))
}
