package stub

import (
	"context"
	"sync"

	"solana-holder-scan/internal/solana"
)

// Method names used for call counting and failure injection.
const (
	MethodGetBalance              = "getBalance"
	MethodGetTokenAccountsByOwner = "getTokenAccountsByOwner"
	MethodScanTokenHolders        = "getProgramAccounts"
	MethodGetAccountInfo          = "getAccountInfo"
	MethodGetSignatures           = "getSignaturesForAddress"
	MethodGetTransaction          = "getTransaction"
)

// RPCClient implements solana.RPCClient in memory for testing.
// It is safe for concurrent use.
type RPCClient struct {
	mu sync.Mutex

	balances      map[string]uint64
	tokenAccounts map[string][]solana.TokenAccount
	holders       map[string][]solana.TokenAccount
	accounts      map[string]*solana.AccountInfo
	signatures    map[string][]solana.SignatureInfo
	transactions  map[string]*solana.Transaction

	failures map[string]*failure
	calls    map[string]int

	// Hook runs before every call. A non-nil error is returned to the caller.
	Hook func(ctx context.Context, method, key string) error
}

type failure struct {
	err       error
	remaining int // negative fails forever
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		balances:      make(map[string]uint64),
		tokenAccounts: make(map[string][]solana.TokenAccount),
		holders:       make(map[string][]solana.TokenAccount),
		accounts:      make(map[string]*solana.AccountInfo),
		signatures:    make(map[string][]solana.SignatureInfo),
		transactions:  make(map[string]*solana.Transaction),
		failures:      make(map[string]*failure),
		calls:         make(map[string]int),
	}
}

// SetBalance sets the lamport balance of an address.
func (c *RPCClient) SetBalance(address string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[address] = lamports
}

// AddTokenAccounts adds token accounts owned by owner.
func (c *RPCClient) AddTokenAccounts(owner string, accounts ...solana.TokenAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range accounts {
		a.Owner = owner
		c.tokenAccounts[owner] = append(c.tokenAccounts[owner], a)
	}
}

// AddHolders adds token accounts returned by ScanTokenHolders for mint.
func (c *RPCClient) AddHolders(mint string, accounts ...solana.TokenAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range accounts {
		a.Mint = mint
		c.holders[mint] = append(c.holders[mint], a)
	}
	if _, ok := c.accounts[mint]; !ok {
		c.accounts[mint] = &solana.AccountInfo{Owner: solana.TokenProgramID}
	}
}

// AddAccountInfo adds account info for an address.
func (c *RPCClient) AddAccountInfo(address string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[address] = info
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signatures[address] = append(c.signatures[address], sigs...)
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions[tx.Signature] = tx
}

// Fail makes the next times calls of method return err. times < 0 fails forever.
func (c *RPCClient) Fail(method string, err error, times int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[method] = &failure{err: err, remaining: times}
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *RPCClient) enter(ctx context.Context, method, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Hook != nil {
		if err := c.Hook(ctx, method, key); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	f, ok := c.failures[method]
	if !ok || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

// GetBalance returns the stored balance, zero when unknown.
func (c *RPCClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	if err := c.enter(ctx, MethodGetBalance, address); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[address], nil
}

// GetTokenAccountsByOwner filters the owner's accounts by mint or returns all of them.
func (c *RPCClient) GetTokenAccountsByOwner(ctx context.Context, owner string, filter solana.TokenAccountFilter) ([]solana.TokenAccount, error) {
	if err := c.enter(ctx, MethodGetTokenAccountsByOwner, owner); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]solana.TokenAccount, 0, len(c.tokenAccounts[owner]))
	for _, a := range c.tokenAccounts[owner] {
		if filter.Mint != "" && a.Mint != filter.Mint {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// ScanTokenHolders returns the stored holder accounts of mint.
func (c *RPCClient) ScanTokenHolders(ctx context.Context, mint string) ([]solana.TokenAccount, error) {
	if err := c.enter(ctx, MethodScanTokenHolders, mint); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]solana.TokenAccount, len(c.holders[mint]))
	copy(out, c.holders[mint])
	return out, nil
}

// GetAccountInfo returns stored account info or nil.
func (c *RPCClient) GetAccountInfo(ctx context.Context, address string) (*solana.AccountInfo, error) {
	if err := c.enter(ctx, MethodGetAccountInfo, address); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts[address], nil
}

// GetSignaturesForAddress retrieves signatures for an address from the stub store.
func (c *RPCClient) GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if err := c.enter(ctx, MethodGetSignatures, address); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	sigs := c.signatures[address]
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		sigs = sigs[:opts.Limit]
	}
	out := make([]solana.SignatureInfo, len(sigs))
	copy(out, sigs)
	return out, nil
}

// GetTransaction retrieves a transaction by signature, nil when unknown.
func (c *RPCClient) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	if err := c.enter(ctx, MethodGetTransaction, signature); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transactions[signature], nil
}
