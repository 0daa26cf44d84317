package storage

import "context"

// ExcludedAddress is one entry of the excluded-address list.
type ExcludedAddress struct {
	Address string // base58 owner address
	Label   string // free-form description, e.g. "raydium authority"
}

// ExclusionStore provides access to the excluded_addresses list.
// The list is read once at startup; the analysis pipeline never writes to it.
type ExclusionStore interface {
	// Insert adds an address. Returns ErrDuplicateKey if the address exists.
	Insert(ctx context.Context, e ExcludedAddress) error

	// List returns all excluded addresses ordered by address.
	List(ctx context.Context) ([]ExcludedAddress, error)
}
