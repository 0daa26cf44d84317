package price

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultJupiterURL is the Jupiter price API v2 endpoint.
const DefaultJupiterURL = "https://api.jup.ag/price/v2"

// Jupiter resolves prices through the Jupiter price API.
type Jupiter struct {
	baseURL       string
	httpClient    *http.Client
	retryInterval time.Duration
}

// NewJupiter creates a Jupiter client. An empty baseURL uses the public API.
func NewJupiter(baseURL string, httpClient *http.Client) *Jupiter {
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Jupiter{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    httpClient,
		retryInterval: defaultRetryInterval,
	}
}

// Price returns the USD price of mint, zero when Jupiter has no quote.
func (j *Jupiter) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	endpoint := j.baseURL + "?" + url.Values{"ids": {mint}}.Encode()

	type priceResponse struct {
		Data map[string]*struct {
			ID    string `json:"id"`
			Price string `json:"price"`
		} `json:"data"`
	}

	resp, err := getJSON[priceResponse](ctx, j.httpClient, endpoint, j.retryInterval)
	if err != nil {
		return decimal.Zero, fmt.Errorf("jupiter price for %s: %w", mint, err)
	}

	entry := resp.Data[mint]
	if entry == nil || entry.Price == "" {
		return decimal.Zero, nil
	}

	p, err := decimal.NewFromString(entry.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("jupiter price for %s: parse %q: %w", mint, entry.Price, err)
	}
	return p, nil
}
