package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"stablecoin-swap/coinbase"
	"stablecoin-swap/domain"
	"stablecoin-swap/exchange"
)

// ErrUnusableQuote the quote source had no positive quote for a pair
var ErrUnusableQuote = errors.New("unusable quote")

var scale = decimal.NewFromInt(domain.RateScale)

// Feed copies external quotes into the rate table, acting as the owner.
// Pairs without a usable quote keep whatever rate they had, which for a
// never-configured pair is the engine's 1:1 default.
type Feed struct {
	quotes coinbase.Service
	swap   exchange.Service

	// assets maps quote symbols to ledger identifiers
	assets map[domain.Symbol]domain.ID
	pairs  []domain.Pair

	logger log.Logger
}

// New constructs a Feed. Every symbol used in pairs must be present in assets.
func New(quotes coinbase.Service, swap exchange.Service, assets map[domain.Symbol]domain.ID, pairs []domain.Pair, logger log.Logger) (*Feed, error) {
	for _, p := range pairs {
		if _, ok := assets[p.From]; !ok {
			return nil, fmt.Errorf("pair %v: unknown asset %v", p, p.From)
		}
		if _, ok := assets[p.To]; !ok {
			return nil, fmt.Errorf("pair %v: unknown asset %v", p, p.To)
		}
	}
	return &Feed{
		quotes: quotes,
		swap:   swap,
		assets: assets,
		pairs:  pairs,
		logger: logger,
	}, nil
}

// Bases lists the distinct quote bases of pairs in first-seen order
func Bases(pairs []domain.Pair) []domain.Symbol {
	seen := map[domain.Symbol]bool{}
	var out []domain.Symbol
	for _, p := range pairs {
		if !seen[p.From] {
			seen[p.From] = true
			out = append(out, p.From)
		}
	}
	return out
}

// ScaleQuote converts a decimal quote into a Rate, truncating below 1/RateScale
func ScaleQuote(q decimal.Decimal) (domain.Rate, error) {
	if !q.IsPositive() {
		return domain.Rate{}, fmt.Errorf("quote %v: %w", q, ErrUnusableQuote)
	}
	scaled := q.Mul(scale).Truncate(0)
	rate, err := uint256.FromDecimal(scaled.String())
	if err != nil {
		return domain.Rate{}, fmt.Errorf("quote %v: %w", q, err)
	}
	return *rate, nil
}

// SyncOnce sets the rate of every configured pair from the current quotes.
// It attempts every pair and returns the errors of those that failed.
func (f *Feed) SyncOnce(ctx context.Context) error {
	var errs []error
	for _, p := range f.pairs {
		if err := f.syncPair(ctx, p); err != nil {
			level.Warn(f.logger).Log("msg", "rate sync failed", "pair", p, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Feed) syncPair(ctx context.Context, p domain.Pair) error {
	quotes, err := f.quotes.ExchangeRates(ctx, p.From)
	if err != nil {
		return fmt.Errorf("sync %v: %w", p, err)
	}
	q, ok := quotes[p.To]
	if !ok {
		return fmt.Errorf("sync %v: no quote: %w", p, ErrUnusableQuote)
	}
	rate, err := ScaleQuote(q)
	if err != nil {
		return fmt.Errorf("sync %v: %w", p, err)
	}
	if err := f.swap.SetRate(ctx, f.swap.Owner(), f.assets[p.From], f.assets[p.To], rate); err != nil {
		return fmt.Errorf("sync %v: %w", p, err)
	}
	level.Debug(f.logger).Log("msg", "rate synced", "pair", p, "rate", rate.Dec())
	return nil
}

// Run syncs immediately and then every interval until ctx ends.
// A non-positive interval syncs once and returns.
func (f *Feed) Run(ctx context.Context, interval time.Duration) {
	_ = f.SyncOnce(ctx)
	if interval <= 0 {
		level.Warn(f.logger).Log("msg", "no periodic rate sync", "interval", interval)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = f.SyncOnce(ctx)
		case <-ctx.Done():
			f.logger.Log("msg", "stopping rate feed")
			return
		}
	}
}
