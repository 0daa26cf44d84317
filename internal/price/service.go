package price

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-holder-scan/internal/observability"
)

// Default cache settings.
const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = time.Minute
)

// ServiceConfig configures Service.
type ServiceConfig struct {
	DefaultSource string
	// AutoOrder is the source order tried for SourceAuto.
	AutoOrder []string
	CacheSize int
	CacheTTL  time.Duration
	Logger    zerolog.Logger
}

// Service selects a price source per request and caches positive prices
// per (source, mint).
type Service struct {
	sources       map[string]Resolver
	defaultSource string
	autoOrder     []string
	cache         *expirable.LRU[string, decimal.Decimal]
	logger        zerolog.Logger
}

// NewService creates a price service over the named sources.
func NewService(sources map[string]Resolver, cfg ServiceConfig) *Service {
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = SourceCoinGecko
	}
	if len(cfg.AutoOrder) == 0 {
		cfg.AutoOrder = []string{SourceCoinGecko, SourceJupiter}
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	return &Service{
		sources:       sources,
		defaultSource: cfg.DefaultSource,
		autoOrder:     cfg.AutoOrder,
		cache:         expirable.NewLRU[string, decimal.Decimal](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:        cfg.Logger.With().Str("component", "price").Logger(),
	}
}

// Resolve returns a positive USD price for mint from source. An empty source
// uses the configured default. A zero price is reported as ErrPriceUnavailable.
func (s *Service) Resolve(ctx context.Context, mint, source string) (decimal.Decimal, error) {
	if source == "" {
		source = s.defaultSource
	}

	if source != SourceAuto {
		return s.resolveFrom(ctx, source, mint)
	}

	var errs []error
	for _, name := range s.autoOrder {
		p, err := s.resolveFrom(ctx, name, mint)
		if err == nil {
			return p, nil
		}
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		s.logger.Debug().Err(err).Str("source", name).Str("mint", mint).Msg("price source failed, trying next")
		errs = append(errs, err)
	}
	return decimal.Zero, fmt.Errorf("%w: %w", ErrPriceUnavailable, errors.Join(errs...))
}

func (s *Service) resolveFrom(ctx context.Context, source, mint string) (decimal.Decimal, error) {
	resolver, ok := s.sources[source]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	key := source + ":" + mint
	if p, ok := s.cache.Get(key); ok {
		observability.RecordPriceLookup(source, "cache_hit")
		return p, nil
	}

	p, err := resolver.Price(ctx, mint)
	if err != nil {
		observability.RecordPriceLookup(source, "error")
		return decimal.Zero, err
	}
	if !p.IsPositive() {
		observability.RecordPriceLookup(source, "unavailable")
		return decimal.Zero, fmt.Errorf("%w: %s has no price for %s", ErrPriceUnavailable, source, mint)
	}

	observability.RecordPriceLookup(source, "ok")
	s.cache.Add(key, p)
	return p, nil
}
