// Package price resolves the USD price of a token mint from third-party
// price APIs.
package price

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Source names accepted in analysis requests.
const (
	SourceCoinGecko = "coingecko"
	SourceJupiter   = "jupiter"
	SourceAuto      = "auto"
)

var (
	// ErrPriceUnavailable is returned when no source knows a positive price for the mint.
	ErrPriceUnavailable = errors.New("token price unavailable")

	// ErrUnknownSource is returned for an unsupported price source name.
	ErrUnknownSource = errors.New("unknown price source")
)

// Resolver looks up the USD price of one mint.
type Resolver interface {
	Price(ctx context.Context, mint string) (decimal.Decimal, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, mint string) (decimal.Decimal, error)

// Price implements Resolver.
func (f ResolverFunc) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	return f(ctx, mint)
}
