package coinbase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"stablecoin-swap/domain"
)

// QuoteCache decorates a Service with the latest quotes of a fixed set of base symbols.
// Warm fetches every base up front and Run keeps them fresh on one ticker. Bases outside
// the set are fetched on first use and refreshed alongside the others from then on.
type QuoteCache struct {
	next Service

	// bases the symbols kept warm
	bases []domain.Symbol

	// refresh how often Run refetches every cached base
	refresh time.Duration

	lock   sync.RWMutex
	quotes map[domain.Symbol]domain.Quotes

	logger log.Logger
}

// NewQuoteCache returns a QuoteCache for bases. It holds nothing until Warm or a lookup.
func NewQuoteCache(s Service, bases []domain.Symbol, refresh time.Duration, logger log.Logger) *QuoteCache {
	return &QuoteCache{
		next:    s,
		bases:   bases,
		refresh: refresh,
		quotes:  map[domain.Symbol]domain.Quotes{},
		logger:  logger,
	}
}

// ExchangeRates serves cached quotes, fetching and caching on a miss. Errors are not cached.
func (c *QuoteCache) ExchangeRates(ctx context.Context, base domain.Symbol) (domain.Quotes, error) {
	c.lock.RLock()
	quotes, ok := c.quotes[base]
	c.lock.RUnlock()
	if ok {
		return quotes, nil
	}
	return c.fetch(ctx, base)
}

// Warm fetches every configured base. It tries them all and joins the failures.
func (c *QuoteCache) Warm(ctx context.Context) error {
	var errs []error
	for _, base := range c.bases {
		if _, err := c.fetch(ctx, base); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run refetches every cached base each refresh period until ctx ends.
// Failed refetches keep serving the previous quotes.
func (c *QuoteCache) Run(ctx context.Context) {
	if c.refresh <= 0 {
		level.Warn(c.logger).Log("msg", "no periodic quote refresh", "refresh", c.refresh)
		return
	}
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, base := range c.cached() {
				if _, err := c.fetch(ctx, base); err != nil {
					level.Warn(c.logger).Log("msg", "quote refresh failed", "base", base, "err", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *QuoteCache) fetch(ctx context.Context, base domain.Symbol) (domain.Quotes, error) {
	quotes, err := c.next.ExchangeRates(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("caching quotes [%v]: %w", base, err)
	}
	c.lock.Lock()
	c.quotes[base] = quotes
	c.lock.Unlock()
	return quotes, nil
}

// cached lists the bases currently held
func (c *QuoteCache) cached() []domain.Symbol {
	c.lock.RLock()
	defer c.lock.RUnlock()
	out := make([]domain.Symbol, 0, len(c.quotes))
	for base := range c.quotes {
		out = append(out, base)
	}
	return out
}
