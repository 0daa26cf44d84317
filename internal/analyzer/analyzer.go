// Package analyzer classifies a single holder wallet: SOL balance, pump.fun
// activity, token-account breakdown and reclaimable rent.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"solana-holder-scan/internal/domain"
	"solana-holder-scan/internal/observability"
	"solana-holder-scan/internal/solana"
)

// Default analyzer configuration values.
const (
	DefaultWalletAttempts         = 3
	DefaultActivitySignatureLimit = 25
	DefaultActivityConcurrency    = 4

	// DefaultRentPerAccountLamports is the rent-exempt deposit of one token account.
	DefaultRentPerAccountLamports = 2039280
)

// Config configures Analyzer.
type Config struct {
	WalletAttempts         uint
	Backoff                solana.Backoff
	ActivitySignatureLimit int
	ActivityConcurrency    int
	RentPerAccountLamports uint64
	Logger                 zerolog.Logger
}

// DefaultBackoff is the wait schedule between wallet-level attempts.
func DefaultBackoff() solana.Backoff {
	return solana.Backoff{Base: 500 * time.Millisecond, Multiplier: 2, Cap: 5 * time.Second}
}

// Params are the per-request analysis parameters.
type Params struct {
	Mint       string
	TokenPrice decimal.Decimal
	// MinAccounts disqualifies wallets with fewer token accounts.
	MinAccounts int
	// MaxSolBalance disqualifies wallets holding more SOL. Zero disables the check.
	MaxSolBalance   float64
	RequireActivity bool
}

// Analyzer runs the per-wallet pipeline.
type Analyzer struct {
	rpc solana.RPCClient
	cfg Config
	log zerolog.Logger
}

// New creates an analyzer. Zero config values take defaults.
func New(rpc solana.RPCClient, cfg Config) *Analyzer {
	if cfg.WalletAttempts == 0 {
		cfg.WalletAttempts = DefaultWalletAttempts
	}
	if cfg.Backoff == (solana.Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.ActivitySignatureLimit <= 0 {
		cfg.ActivitySignatureLimit = DefaultActivitySignatureLimit
	}
	if cfg.ActivityConcurrency <= 0 {
		cfg.ActivityConcurrency = DefaultActivityConcurrency
	}
	if cfg.RentPerAccountLamports == 0 {
		cfg.RentPerAccountLamports = DefaultRentPerAccountLamports
	}
	return &Analyzer{
		rpc: rpc,
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze classifies wallet, retrying the whole pipeline on failure.
// It always returns a tagged result on success; an error means the wallet
// could not be analyzed within the attempt budget or ctx was cancelled.
func (a *Analyzer) Analyze(ctx context.Context, wallet string, p Params) (domain.WalletResult, error) {
	start := time.Now()

	res, err := solana.Retry(ctx, solana.RetryPolicy{
		Attempts: a.cfg.WalletAttempts,
		Backoff:  a.cfg.Backoff,
		OnRetry: func(attempt uint, err error) {
			a.loggerFor(ctx).Debug().Str("wallet", wallet).Uint("attempt", attempt).Err(err).Msg("wallet analysis failed, retrying")
		},
	}, func(ctx context.Context, _ uint) (domain.WalletResult, error) {
		return a.analyzeOnce(ctx, wallet, p)
	})

	outcome := "qualified"
	switch {
	case err != nil && solana.IsCanceled(err):
		outcome = "canceled"
	case err != nil:
		outcome = string(domain.ReasonError)
		err = solana.Exhausted(err, a.cfg.WalletAttempts)
	case !res.Qualified:
		outcome = string(res.Reason)
	}
	observability.RecordWalletAnalyzed(outcome, time.Since(start).Seconds())

	return res, err
}

// loggerFor returns the session logger carried by ctx, or the analyzer's own.
func (a *Analyzer) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		sub := l.With().Str("component", "analyzer").Logger()
		return &sub
	}
	return &a.log
}

func (a *Analyzer) analyzeOnce(ctx context.Context, wallet string, p Params) (domain.WalletResult, error) {
	var knownLamports *uint64

	if p.MaxSolBalance > 0 {
		lamports, err := a.rpc.GetBalance(ctx, wallet)
		if err != nil {
			return domain.WalletResult{}, err
		}
		knownLamports = &lamports
		if sol := domain.LamportsToSOL(lamports); sol > p.MaxSolBalance {
			r := domain.Disqualified(wallet, domain.ReasonHighBalance)
			r.SolBalance = sol
			return r, nil
		}
	}

	if p.RequireActivity {
		active, err := a.hasPumpFunActivity(ctx, wallet)
		if err != nil {
			return domain.WalletResult{}, err
		}
		if !active {
			return domain.Disqualified(wallet, domain.ReasonNoPumpfunActivity), nil
		}
	}

	accts, err := a.fetchParallel(ctx, wallet, p.Mint, knownLamports)
	if err != nil {
		if solana.IsCanceled(err) || ctx.Err() != nil {
			return domain.WalletResult{}, err
		}
		a.loggerFor(ctx).Debug().Str("wallet", wallet).Err(err).Msg("parallel fetch failed, falling back to sequential")
		accts, err = a.fetchSequential(ctx, wallet, p.Mint, knownLamports)
		if err != nil {
			return domain.WalletResult{}, err
		}
	}

	return a.classify(wallet, p, accts), nil
}

// classify builds the result from fetched accounts.
func (a *Analyzer) classify(wallet string, p Params, accts walletAccounts) domain.WalletResult {
	r := domain.WalletResult{
		Address:       wallet,
		SolBalance:    domain.LamportsToSOL(accts.lamports),
		TotalAccounts: len(accts.all),
	}

	if r.TotalAccounts < p.MinAccounts {
		r.Reason = domain.ReasonLowAccounts
		return r
	}

	for _, acc := range accts.all {
		switch {
		case acc.IsEmpty():
			r.EmptyAccounts++
		case acc.IsNFT():
			r.NFTAccounts++
		default:
			r.CleanupAccounts++
		}
	}

	r.ReclaimableLamports = uint64(r.TotalAccounts) * a.cfg.RentPerAccountLamports
	r.ReclaimableSOL = domain.LamportsToSOL(r.ReclaimableLamports)

	balance := decimal.Zero
	for _, acc := range accts.target {
		balance = balance.Add(acc.UIAmount)
	}
	r.TokenBalance = balance.InexactFloat64()
	r.TokenValueUSD = balance.Mul(p.TokenPrice).InexactFloat64()

	r.Qualified = true
	return r
}

// walletAccounts is the raw data the classification needs.
type walletAccounts struct {
	all      []solana.TokenAccount
	target   []solana.TokenAccount
	lamports uint64
}

func (a *Analyzer) fetchParallel(ctx context.Context, wallet, mint string, knownLamports *uint64) (walletAccounts, error) {
	var out walletAccounts
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		all, err := a.rpc.GetTokenAccountsByOwner(gctx, wallet, solana.TokenAccountFilter{ProgramID: solana.TokenProgramID})
		out.all = all
		return err
	})
	g.Go(func() error {
		target, err := a.rpc.GetTokenAccountsByOwner(gctx, wallet, solana.TokenAccountFilter{Mint: mint})
		out.target = target
		return err
	})
	if knownLamports != nil {
		out.lamports = *knownLamports
	} else {
		g.Go(func() error {
			lamports, err := a.rpc.GetBalance(gctx, wallet)
			out.lamports = lamports
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return walletAccounts{}, fmt.Errorf("fetch accounts of %s: %w", wallet, err)
	}
	return out, nil
}

func (a *Analyzer) fetchSequential(ctx context.Context, wallet, mint string, knownLamports *uint64) (walletAccounts, error) {
	var (
		out walletAccounts
		err error
	)
	out.all, err = a.rpc.GetTokenAccountsByOwner(ctx, wallet, solana.TokenAccountFilter{ProgramID: solana.TokenProgramID})
	if err != nil {
		return walletAccounts{}, fmt.Errorf("fetch token accounts of %s: %w", wallet, err)
	}
	out.target, err = a.rpc.GetTokenAccountsByOwner(ctx, wallet, solana.TokenAccountFilter{Mint: mint})
	if err != nil {
		return walletAccounts{}, fmt.Errorf("fetch %s accounts of %s: %w", mint, wallet, err)
	}
	if knownLamports != nil {
		out.lamports = *knownLamports
		return out, nil
	}
	out.lamports, err = a.rpc.GetBalance(ctx, wallet)
	if err != nil {
		return walletAccounts{}, fmt.Errorf("fetch balance of %s: %w", wallet, err)
	}
	return out, nil
}

// errActivityFound stops the transaction scan early.
var errActivityFound = errors.New("pump.fun activity found")

// hasPumpFunActivity scans the most recent signatures of wallet on the
// activity pool. Transactions that fail to load are skipped.
func (a *Analyzer) hasPumpFunActivity(ctx context.Context, wallet string) (bool, error) {
	sigs, err := a.rpc.GetSignaturesForAddress(ctx, wallet, &solana.SignaturesOpts{Limit: a.cfg.ActivitySignatureLimit})
	if err != nil {
		return false, fmt.Errorf("fetch signatures of %s: %w", wallet, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.ActivityConcurrency)

	for _, sig := range sigs {
		if sig.Failed() {
			continue
		}
		g.Go(func() error {
			tx, err := a.rpc.GetTransaction(gctx, sig.Signature)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if HasPumpFunOperation(solana.OrDefault(tx, err, nil)) {
				return errActivityFound
			}
			return nil
		})
	}

	switch err := g.Wait(); {
	case errors.Is(err, errActivityFound):
		return true, nil
	case err != nil:
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return false, nil
}
