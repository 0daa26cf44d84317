package solana

import "context"

// Caller issues a raw JSON-RPC call on a named pool. HTTPClient implements it.
type Caller interface {
	Call(ctx context.Context, pool, method string, params []interface{}, result interface{}, opts ...CallOption) error
}

// RPCClient defines the typed Solana queries used by the analysis pipeline.
type RPCClient interface {
	// GetBalance returns the SOL balance of an address in lamports.
	GetBalance(ctx context.Context, address string) (uint64, error)

	// GetTokenAccountsByOwner lists token accounts of owner matching the filter.
	GetTokenAccountsByOwner(ctx context.Context, owner string, filter TokenAccountFilter) ([]TokenAccount, error)

	// ScanTokenHolders lists every token account of the mint.
	ScanTokenHolders(ctx context.Context, mint string) ([]TokenAccount, error)

	// GetAccountInfo retrieves account info. Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTransaction retrieves a transaction by signature. Returns nil if not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
}
