package domain

import "github.com/shopspring/decimal"

// WalletResult is the outcome of analyzing one holder wallet.
// Every analyzed wallet yields exactly one result: qualified, or
// disqualified with a Reason.
type WalletResult struct {
	Address   string `json:"address"`
	Qualified bool   `json:"qualified"`
	Reason    Reason `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"` // set for ReasonError

	SolBalance          float64 `json:"solBalance"`
	ReclaimableLamports uint64  `json:"reclaimableLamports"`
	ReclaimableSOL      float64 `json:"reclaimableSol"`

	TotalAccounts   int `json:"totalAccounts"`
	EmptyAccounts   int `json:"emptyAccounts"`
	NFTAccounts     int `json:"nftAccounts"`
	CleanupAccounts int `json:"cleanupAccounts"`

	TokenBalance  float64 `json:"tokenBalance"`  // target mint, UI units
	TokenValueUSD float64 `json:"tokenValueUsd"` // TokenBalance * price
}

// Disqualified builds a tagged result for a wallet that did not qualify.
func Disqualified(address string, reason Reason) WalletResult {
	return WalletResult{Address: address, Reason: reason}
}

// Failed builds a ReasonError result.
func Failed(address string, err error) WalletResult {
	r := WalletResult{Address: address, Reason: ReasonError}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) float64 {
	return decimal.NewFromInt(int64(lamports)).Shift(-9).InexactFloat64()
}
