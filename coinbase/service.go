package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"stablecoin-swap/domain"
)

const ApiUrlBase = "https://api.coinbase.com/v2"

// Service wraps the coinbase REST API
type Service interface {
	// ExchangeRates returns how many units of each symbol one unit of base buys
	ExchangeRates(ctx context.Context, base domain.Symbol) (domain.Quotes, error)
}

// service coinbase API
type service struct {
	// url base API url
	url string

	// client for HTTP requests
	client http.Client
}

// NewService constructs a valid coinbase Service. An empty url selects ApiUrlBase.
func NewService(url string) Service {
	if url == "" {
		url = ApiUrlBase
	}
	return &service{
		url: url,
		client: http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// ExchangeRates loads the current exchange rates for a given symbol.
// Coinbase rates change every minute.
func (s *service) ExchangeRates(ctx context.Context, base domain.Symbol) (domain.Quotes, error) {
	type Response struct {
		Data struct {
			Currency string
			Rates    map[string]string // maps currency codes to rates
		}
	}

	url := fmt.Sprintf("%v/exchange-rates?currency=%v", s.url, base)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building http request: %w", err)
	}
	httpResponse, err := s.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http get [%v]: status %v", base, httpResponse.Status)
	}

	bytes, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("reading json: %w", err)
	}

	var response Response
	err = json.Unmarshal(bytes, &response)
	if err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}

	quotes := domain.Quotes{}
	for k, v := range response.Data.Rates {
		// decimal keeps the quote exact, floats would lose digits before scaling
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("bad rate value [%v]: %w", k, err)
		}
		quotes[domain.Symbol(k)] = d
	}

	return quotes, nil
}
