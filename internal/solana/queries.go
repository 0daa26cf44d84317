package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultQueryAttempts is the outer attempt budget of each typed query.
const DefaultQueryAttempts = 2

// Queries implements RPCClient on top of a Caller. Each query adds its own
// small retry budget around the call-level retries of the Caller.
type Queries struct {
	caller   Caller
	attempts uint
	backoff  Backoff
}

// QueriesOption configures Queries.
type QueriesOption func(*Queries)

// WithQueryAttempts sets the outer attempt budget.
func WithQueryAttempts(n uint) QueriesOption {
	return func(q *Queries) {
		q.attempts = n
	}
}

// WithQueryBackoff sets the wait between outer attempts.
func WithQueryBackoff(b Backoff) QueriesOption {
	return func(q *Queries) {
		q.backoff = b
	}
}

// NewQueries creates typed queries over caller.
func NewQueries(caller Caller, opts ...QueriesOption) *Queries {
	q := &Queries{
		caller:   caller,
		attempts: DefaultQueryAttempts,
		backoff:  Backoff{Base: 500 * time.Millisecond, Multiplier: 2, Cap: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

var _ RPCClient = (*Queries)(nil)

// call runs one method through the outer retry. Hard RPC errors are not retried again.
func (q *Queries) call(ctx context.Context, pool, method string, params []interface{}, result interface{}) error {
	_, err := Retry(ctx, RetryPolicy{
		Attempts: q.attempts,
		Backoff:  q.backoff,
		RetryIf: func(err error) bool {
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) {
				return rpcErr.Retryable()
			}
			return true
		},
	}, func(ctx context.Context, _ uint) (struct{}, error) {
		return struct{}{}, q.caller.Call(ctx, pool, method, params, result)
	})
	return err
}

// GetBalance returns the SOL balance of an address in lamports.
func (q *Queries) GetBalance(ctx context.Context, address string) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := q.call(ctx, PoolPrimary, "getBalance", []interface{}{address}, &result); err != nil {
		return 0, fmt.Errorf("get balance %s: %w", address, err)
	}
	return result.Value, nil
}

// GetTokenAccountsByOwner lists parsed token accounts of owner. Entries that
// do not decode as token accounts are skipped.
func (q *Queries) GetTokenAccountsByOwner(ctx context.Context, owner string, filter TokenAccountFilter) ([]TokenAccount, error) {
	selector := map[string]interface{}{}
	switch {
	case filter.Mint != "":
		selector["mint"] = filter.Mint
	case filter.ProgramID != "":
		selector["programId"] = filter.ProgramID
	default:
		selector["programId"] = TokenProgramID
	}

	params := []interface{}{
		owner,
		selector,
		map[string]interface{}{"encoding": "jsonParsed"},
	}

	var result struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := q.call(ctx, PoolPrimary, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, fmt.Errorf("get token accounts of %s: %w", owner, err)
	}
	return parseKeyedAccounts(result.Value), nil
}

// ScanTokenHolders lists every token account of mint using getProgramAccounts
// on the Token program. A result that is not a list yields no accounts.
func (q *Queries) ScanTokenHolders(ctx context.Context, mint string) ([]TokenAccount, error) {
	params := []interface{}{
		TokenProgramID,
		map[string]interface{}{
			"encoding": "jsonParsed",
			"filters": []interface{}{
				map[string]interface{}{"dataSize": TokenAccountSize},
				map[string]interface{}{"memcmp": map[string]interface{}{"offset": 0, "bytes": mint}},
			},
		},
	}

	var raw json.RawMessage
	if err := q.call(ctx, PoolPrimary, "getProgramAccounts", params, &raw); err != nil {
		return nil, fmt.Errorf("scan holders of %s: %w", mint, err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return []TokenAccount{}, nil
	}
	return parseKeyedAccounts(entries), nil
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (q *Queries) GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	params := []interface{}{
		address,
		map[string]interface{}{"encoding": "base64"},
	}

	var result getAccountInfoResult
	if err := q.call(ctx, PoolPrimary, "getAccountInfo", params, &result); err != nil {
		return nil, fmt.Errorf("get account info %s: %w", address, err)
	}
	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
		RentEpoch:  result.Value.RentEpoch,
	}
	if len(result.Value.Data) >= 1 {
		info.Data = result.Value.Data[0]
	}
	return info, nil
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// GetSignaturesForAddress retrieves signatures for an address with pagination.
func (q *Queries) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	config := make(map[string]interface{})
	if opts != nil {
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
	}

	params := []interface{}{address}
	if len(config) > 0 {
		params = append(params, config)
	}

	var result []getSignaturesResult
	if err := q.call(ctx, PoolActivity, "getSignaturesForAddress", params, &result); err != nil {
		return nil, fmt.Errorf("get signatures of %s: %w", address, err)
	}

	sigs := make([]SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			BlockTime: r.BlockTime,
			Err:       r.Err,
		}
	}
	return sigs, nil
}

// getSignaturesResult is the raw RPC response item for getSignaturesForAddress.
type getSignaturesResult struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// GetTransaction retrieves a transaction by signature with outer and inner
// instructions resolved to program ids.
func (q *Queries) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *getTransactionResult
	if err := q.call(ctx, PoolActivity, "getTransaction", params, &result); err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", signature, err)
	}
	if result == nil {
		return nil, nil
	}

	tx := &Transaction{
		Slot:      result.Slot,
		Signature: signature,
	}
	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}
	if result.Transaction != nil && result.Transaction.Message != nil {
		for _, ix := range result.Transaction.Message.Instructions {
			tx.Instructions = append(tx.Instructions, Instruction{ProgramID: ix.ProgramID, Data: ix.Data})
		}
	}
	if result.Meta != nil {
		tx.Failed = result.Meta.Err != nil
		for _, group := range result.Meta.InnerInstructions {
			for _, ix := range group.Instructions {
				tx.Inner = append(tx.Inner, Instruction{ProgramID: ix.ProgramID, Data: ix.Data})
			}
		}
	}
	return tx, nil
}

// getTransactionResult is the raw jsonParsed response for getTransaction.
type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err               interface{}         `json:"err"`
	InnerInstructions []innerInstructions `json:"innerInstructions"`
}

type innerInstructions struct {
	Index        int                 `json:"index"`
	Instructions []parsedInstruction `json:"instructions"`
}

type getTransactionTx struct {
	Message *getTransactionMessage `json:"message"`
}

type getTransactionMessage struct {
	Instructions []parsedInstruction `json:"instructions"`
}

type parsedInstruction struct {
	ProgramID string `json:"programId"`
	Data      string `json:"data"`
}

// keyedAccount is one element of getProgramAccounts / getTokenAccountsByOwner
// with jsonParsed encoding.
type keyedAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Lamports uint64 `json:"lamports"`
		Data     struct {
			Parsed struct {
				Info struct {
					Mint        string `json:"mint"`
					Owner       string `json:"owner"`
					TokenAmount struct {
						Amount         string `json:"amount"`
						Decimals       uint8  `json:"decimals"`
						UIAmountString string `json:"uiAmountString"`
					} `json:"tokenAmount"`
				} `json:"info"`
			} `json:"parsed"`
		} `json:"data"`
	} `json:"account"`
}

// parseKeyedAccounts decodes entries one by one and drops malformed ones.
func parseKeyedAccounts(entries []json.RawMessage) []TokenAccount {
	accounts := make([]TokenAccount, 0, len(entries))
	for _, entry := range entries {
		acc, ok := parseKeyedAccount(entry)
		if ok {
			accounts = append(accounts, acc)
		}
	}
	return accounts
}

func parseKeyedAccount(raw json.RawMessage) (TokenAccount, bool) {
	var ka keyedAccount
	if err := json.Unmarshal(raw, &ka); err != nil {
		return TokenAccount{}, false
	}
	info := ka.Account.Data.Parsed.Info
	if info.Owner == "" || info.TokenAmount.Amount == "" {
		return TokenAccount{}, false
	}

	amount, err := decimal.NewFromString(info.TokenAmount.Amount)
	if err != nil {
		return TokenAccount{}, false
	}

	decimals := info.TokenAmount.Decimals
	uiAmount := amount.Shift(-int32(decimals))
	if s := info.TokenAmount.UIAmountString; s != "" {
		if v, err := decimal.NewFromString(s); err == nil {
			uiAmount = v
		}
	}

	return TokenAccount{
		Pubkey:   ka.Pubkey,
		Mint:     info.Mint,
		Owner:    info.Owner,
		Amount:   amount,
		Decimals: decimals,
		UIAmount: uiAmount,
		Lamports: ka.Account.Lamports,
	}, true
}
