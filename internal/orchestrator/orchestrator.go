// Package orchestrator runs one analysis session end to end.
// It coordinates: price resolution → holder scan → grouped wallet analysis → stream
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"solana-holder-scan/internal/analyzer"
	"solana-holder-scan/internal/domain"
	"solana-holder-scan/internal/observability"
	"solana-holder-scan/internal/stream"
)

// Default batching values.
const (
	DefaultGroupSize    = 20
	DefaultStaggerDelay = 50 * time.Millisecond
)

// PriceResolver resolves the USD price of a mint from a named source.
type PriceResolver interface {
	Resolve(ctx context.Context, mint, source string) (decimal.Decimal, error)
}

// HolderScanner lists the qualifying holders of a mint.
type HolderScanner interface {
	Scan(ctx context.Context, mint string, price decimal.Decimal) ([]domain.Holder, error)
}

// WalletAnalyzer classifies one wallet.
type WalletAnalyzer interface {
	Analyze(ctx context.Context, wallet string, p analyzer.Params) (domain.WalletResult, error)
}

// Defaults are applied to request fields the client left out.
type Defaults struct {
	MinAccounts     int
	MaxSolBalance   float64
	RequireActivity bool
}

// Options for creating Orchestrator.
type Options struct {
	Prices   PriceResolver
	Holders  HolderScanner
	Analyzer WalletAnalyzer

	GroupSize int
	// MaxConcurrency bounds in-flight wallet analyses. Defaults to GroupSize.
	MaxConcurrency int
	// StaggerDelay delays the i-th wallet of a group by i*StaggerDelay.
	StaggerDelay time.Duration

	Defaults Defaults
	Logger   zerolog.Logger
}

// Orchestrator runs analysis sessions. It is safe for concurrent use; each
// Run owns its own state.
type Orchestrator struct {
	prices   PriceResolver
	holders  HolderScanner
	analyzer WalletAnalyzer

	groupSize      int
	maxConcurrency int
	staggerDelay   time.Duration
	defaults       Defaults
	logger         zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.GroupSize <= 0 {
		opts.GroupSize = DefaultGroupSize
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = opts.GroupSize
	}
	if opts.StaggerDelay < 0 {
		opts.StaggerDelay = 0
	}
	return &Orchestrator{
		prices:         opts.Prices,
		holders:        opts.Holders,
		analyzer:       opts.Analyzer,
		groupSize:      opts.GroupSize,
		maxConcurrency: opts.MaxConcurrency,
		staggerDelay:   opts.StaggerDelay,
		defaults:       opts.Defaults,
		logger:         opts.Logger,
	}
}

// Run executes one session and pushes its events to sink.
// Phases:
//  1. Resolve token price
//  2. Scan holders
//  3. Analyze holders group by group
//  4. Emit completion
//
// Cancellation of ctx or a closed sink ends the session silently and Run
// returns nil. Any other failure is pushed as an error event and returned.
func (o *Orchestrator) Run(ctx context.Context, req domain.AnalysisRequest, sink stream.Sink) error {
	req.Normalize()

	// Prefer the request-scoped logger of the caller; analyzers pick the
	// session logger up from ctx.
	base := o.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		base = *l
	}
	base = base.With().Str("mint", req.Mint).Logger()
	ctx = base.WithContext(ctx)

	s := &session{
		o:      o,
		req:    req,
		sink:   sink,
		state:  StateIdle,
		sem:    semaphore.NewWeighted(int64(o.maxConcurrency)),
		start:  time.Now(),
		logger: base.With().Str("component", "orchestrator").Logger(),
	}
	observability.SessionStarted()
	defer func() {
		observability.RecordSession(s.state.String(), time.Since(s.start).Seconds())
	}()

	err := s.run(ctx)
	switch {
	case err == nil:
		s.transition(StateDone)
		return nil
	case ctx.Err() != nil || errors.Is(err, stream.ErrClosed):
		s.transition(StateCancelled)
		s.logger.Info().Err(err).Msg("session cancelled")
		return nil
	default:
		s.transition(StateFailed)
		s.logger.Error().Err(err).Msg("session failed")
		// best effort; the consumer may already be gone
		_ = sink.Send(ctx, stream.ErrorEvent{Error: err.Error()})
		return err
	}
}

// session is the mutable state of one Run.
type session struct {
	o      *Orchestrator
	req    domain.AnalysisRequest
	sink   stream.Sink
	state  State
	sem    *semaphore.Weighted
	start  time.Time
	logger zerolog.Logger
}

func (s *session) transition(to State) {
	if s.state.Terminal() {
		return
	}
	s.logger.Debug().Stringer("from", s.state).Stringer("to", to).Msg("session state")
	s.state = to
}

// emit sends ev unless the session was cancelled.
func (s *session) emit(ctx context.Context, ev stream.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.sink.Send(ctx, ev)
}

func (s *session) run(ctx context.Context) error {
	if err := s.req.Validate(); err != nil {
		return err
	}
	params := s.params()

	// Phase 1: Price
	price, err := s.o.prices.Resolve(ctx, s.req.Mint, s.req.PriceSource)
	if err != nil {
		return fmt.Errorf("resolve token price: %w", err)
	}
	params.TokenPrice = price
	s.transition(StatePriceResolved)
	if err := s.emit(ctx, stream.PriceEvent{TokenPrice: price.InexactFloat64()}); err != nil {
		return err
	}

	// Phase 2: Holders
	holders, err := s.o.holders.Scan(ctx, s.req.Mint, price)
	if err != nil {
		return fmt.Errorf("scan holders: %w", err)
	}
	s.transition(StateHoldersEnumerated)
	if err := s.emit(ctx, stream.HoldersEvent{TotalHolders: len(holders)}); err != nil {
		return err
	}

	// Phase 3: Batching
	s.transition(StateBatching)
	wallets := domain.Addresses(holders)
	groups := Partition(wallets, s.o.groupSize)
	progress := stream.ProgressEvent{Total: len(wallets)}
	totalQualified := 0

	for i, group := range groups {
		results := s.analyzeGroup(ctx, group, params)
		if err := ctx.Err(); err != nil {
			return err
		}

		var qualified []domain.WalletResult
		for _, r := range results {
			progress.Count(r)
			if r.Qualified {
				qualified = append(qualified, r)
			}
		}
		totalQualified += len(qualified)

		s.logger.Info().
			Int("batch", i+1).
			Int("batches", len(groups)).
			Int("processed", progress.Progress).
			Int("qualified", len(qualified)).
			Msg("batch analyzed")

		if err := s.emit(ctx, progress); err != nil {
			return err
		}
		if len(qualified) > 0 {
			ev := stream.BatchEvent{Batch: true, Results: qualified, BatchNumber: i + 1, TotalBatches: len(groups)}
			if err := s.emit(ctx, ev); err != nil {
				return err
			}
		}
	}

	// Phase 4: Done
	return s.emit(ctx, stream.DoneEvent{Done: true, TotalResults: totalQualified})
}

func (s *session) params() analyzer.Params {
	p := analyzer.Params{
		Mint:            s.req.Mint,
		MinAccounts:     s.o.defaults.MinAccounts,
		MaxSolBalance:   s.o.defaults.MaxSolBalance,
		RequireActivity: s.o.defaults.RequireActivity,
	}
	if s.req.MinAccounts != nil {
		p.MinAccounts = *s.req.MinAccounts
	}
	if s.req.MaxSolBalance != nil {
		p.MaxSolBalance = *s.req.MaxSolBalance
	}
	if s.req.RequireActivity != nil {
		p.RequireActivity = *s.req.RequireActivity
	}
	return p
}

// analyzeGroup analyzes every wallet of group concurrently and returns the
// results in group order. Failed wallets become error records.
func (s *session) analyzeGroup(ctx context.Context, group []string, p analyzer.Params) []domain.WalletResult {
	results := make([]domain.WalletResult, len(group))

	var wg sync.WaitGroup
	for i, wallet := range group {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.analyzeWallet(ctx, time.Duration(i)*s.o.staggerDelay, wallet, p)
		}()
	}
	wg.Wait()
	return results
}

func (s *session) analyzeWallet(ctx context.Context, delay time.Duration, wallet string, p analyzer.Params) domain.WalletResult {
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.Failed(wallet, ctx.Err())
		case <-timer.C:
		}
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return domain.Failed(wallet, err)
	}
	defer s.sem.Release(1)

	res, err := s.o.analyzer.Analyze(ctx, wallet, p)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Str("wallet", wallet).Err(err).Msg("wallet analysis failed")
		}
		return domain.Failed(wallet, err)
	}
	return res
}

// Partition splits wallets into consecutive groups of at most size.
func Partition(wallets []string, size int) [][]string {
	if size <= 0 {
		size = DefaultGroupSize
	}
	groups := make([][]string, 0, (len(wallets)+size-1)/size)
	for start := 0; start < len(wallets); start += size {
		end := min(start+size, len(wallets))
		groups = append(groups, wallets[start:end])
	}
	return groups
}
