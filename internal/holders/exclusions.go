package holders

import (
	"context"
	"fmt"
	"strings"

	"solana-holder-scan/internal/storage"
)

// DefaultExcludedAddresses are program, platform and treasury addresses that
// are never reported as holders: AMM authorities, exchange hot wallets, core
// programs and the major stable/native mints.
var DefaultExcludedAddresses = []string{
	"8psNvWTrdNTiVRNzAgsou9kETXNJm2SXZyaKuJraVRtf",
	"HLnpSz9h2S4hiLQ43rnSD9XkcUThA7B8hQMKmDaiTLcC",
	"5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1",
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8",
	"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
	"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
	"11111111111111111111111111111111",
	"So11111111111111111111111111111111111111112",
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So",
	"7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj",
	"DdZR6zRFiUt4S5mg7AV1uKB2z1f1WzcNYCaTEEWPAuby",
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4",
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
}

// ExclusionSet is an immutable set of excluded owner addresses.
type ExclusionSet struct {
	set map[string]struct{}
}

// NewExclusionSet builds a set from address lists, ignoring blanks.
func NewExclusionSet(lists ...[]string) *ExclusionSet {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, a := range list {
			if a = strings.TrimSpace(a); a != "" {
				set[a] = struct{}{}
			}
		}
	}
	return &ExclusionSet{set: set}
}

// Contains reports whether address is excluded.
func (s *ExclusionSet) Contains(address string) bool {
	if s == nil {
		return false
	}
	_, ok := s.set[address]
	return ok
}

// Len returns the number of excluded addresses.
func (s *ExclusionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.set)
}

// LoadExclusionSet merges the defaults, configured extras and the addresses
// held in store. A nil store contributes nothing.
func LoadExclusionSet(ctx context.Context, store storage.ExclusionStore, extra []string) (*ExclusionSet, error) {
	var stored []string
	if store != nil {
		entries, err := store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("load excluded addresses: %w", err)
		}
		stored = make([]string, len(entries))
		for i, e := range entries {
			stored[i] = e.Address
		}
	}
	return NewExclusionSet(DefaultExcludedAddresses, extra, stored), nil
}
