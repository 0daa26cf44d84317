// Package holders enumerates the owners of a token mint and filters them by
// USD value and the excluded-address set.
package holders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-holder-scan/internal/domain"
	"solana-holder-scan/internal/observability"
	"solana-holder-scan/internal/solana"
)

// DefaultMinHolderUSD is the minimum aggregated USD value of a holder.
var DefaultMinHolderUSD = decimal.NewFromInt(10)

var (
	// ErrMintNotFound is returned when the mint account does not exist.
	ErrMintNotFound = errors.New("mint account not found")
	// ErrNotTokenMint is returned when the mint account is not owned by the Token program.
	ErrNotTokenMint = errors.New("not a token program mint")
)

// Options configures Scanner.
type Options struct {
	MinUSD   decimal.Decimal
	Excluded *ExclusionSet
	// ExcludeOffCurve drops owners that are program derived addresses
	// (pool vaults, program-owned accounts).
	ExcludeOffCurve bool
	Logger          zerolog.Logger
}

// Scanner finds qualifying holders of a mint.
type Scanner struct {
	rpc             solana.RPCClient
	minUSD          decimal.Decimal
	excluded        *ExclusionSet
	excludeOffCurve bool
	logger          zerolog.Logger
}

// NewScanner creates a holder scanner.
func NewScanner(rpc solana.RPCClient, opts Options) *Scanner {
	if opts.MinUSD.IsZero() {
		opts.MinUSD = DefaultMinHolderUSD
	}
	if opts.Excluded == nil {
		opts.Excluded = NewExclusionSet(DefaultExcludedAddresses)
	}
	return &Scanner{
		rpc:             rpc,
		minUSD:          opts.MinUSD,
		excluded:        opts.Excluded,
		excludeOffCurve: opts.ExcludeOffCurve,
		logger:          opts.Logger.With().Str("component", "holders").Logger(),
	}
}

// Scan lists every token account of mint with one program-account scan and
// returns the owners whose summed USD value reaches the minimum, sorted by
// value descending.
func (s *Scanner) Scan(ctx context.Context, mint string, price decimal.Decimal) ([]domain.Holder, error) {
	if err := s.checkMint(ctx, mint); err != nil {
		return nil, err
	}

	accounts, err := s.rpc.ScanTokenHolders(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("scan holders: %w", err)
	}

	holders := AggregateHolders(accounts, price, s.minUSD, s.isExcluded)
	observability.RecordHoldersScanned(len(holders))

	s.logger.Info().
		Str("mint", mint).
		Int("token_accounts", len(accounts)).
		Int("holders", len(holders)).
		Msg("holder scan complete")

	return holders, nil
}

// checkMint makes sure mint is a Token program account, so a mistyped or
// foreign mint fails instead of scanning to an empty holder list.
func (s *Scanner) checkMint(ctx context.Context, mint string) error {
	info, err := s.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return fmt.Errorf("load mint account: %w", err)
	}
	if info == nil {
		return fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}
	if info.Owner != solana.TokenProgramID {
		return fmt.Errorf("%w: %s is owned by %s", ErrNotTokenMint, mint, info.Owner)
	}
	return nil
}

func (s *Scanner) isExcluded(owner string) bool {
	if s.excluded.Contains(owner) {
		return true
	}
	return s.excludeOffCurve && !solana.IsOnCurve(owner)
}

// AggregateHolders sums USD value per owner and keeps owners whose total is
// at least minUSD and who are not excluded. Accounts without an owner are
// skipped. The result is sorted by value descending, then address.
func AggregateHolders(accounts []solana.TokenAccount, price, minUSD decimal.Decimal, excluded func(string) bool) []domain.Holder {
	totals := make(map[string]decimal.Decimal)
	for _, acc := range accounts {
		if acc.Owner == "" {
			continue
		}
		totals[acc.Owner] = totals[acc.Owner].Add(acc.UIAmount.Mul(price))
	}

	holders := make([]domain.Holder, 0, len(totals))
	for owner, usd := range totals {
		if usd.LessThan(minUSD) {
			continue
		}
		if excluded != nil && excluded(owner) {
			continue
		}
		holders = append(holders, domain.Holder{Address: owner, ValueUSD: usd})
	}

	sort.Slice(holders, func(i, j int) bool {
		if c := holders[i].ValueUSD.Cmp(holders[j].ValueUSD); c != 0 {
			return c > 0
		}
		return holders[i].Address < holders[j].Address
	})
	return holders
}
