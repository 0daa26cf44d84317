package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCoinGeckoURL is the public CoinGecko API base.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// CoinGecko resolves prices through simple/token_price/solana.
type CoinGecko struct {
	baseURL       string
	httpClient    *http.Client
	retryInterval time.Duration
}

// NewCoinGecko creates a CoinGecko client. An empty baseURL uses the public API.
func NewCoinGecko(baseURL string, httpClient *http.Client) *CoinGecko {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &CoinGecko{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    httpClient,
		retryInterval: defaultRetryInterval,
	}
}

// Price returns the USD price of mint, zero when CoinGecko does not list it.
func (c *CoinGecko) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("contract_addresses", mint)
	q.Set("vs_currencies", "usd")
	endpoint := c.baseURL + "/simple/token_price/solana?" + q.Encode()

	type tokenPriceResponse map[string]struct {
		USD json.Number `json:"usd"`
	}

	resp, err := getJSON[tokenPriceResponse](ctx, c.httpClient, endpoint, c.retryInterval)
	if err != nil {
		return decimal.Zero, fmt.Errorf("coingecko price for %s: %w", mint, err)
	}

	entry, ok := resp[mint]
	if !ok {
		// CoinGecko may echo the contract address lowercased.
		for k, v := range resp {
			if strings.EqualFold(k, mint) {
				entry, ok = v, true
				break
			}
		}
	}
	if !ok || entry.USD == "" {
		return decimal.Zero, nil
	}

	p, err := decimal.NewFromString(entry.USD.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("coingecko price for %s: parse %q: %w", mint, entry.USD, err)
	}
	return p, nil
}
