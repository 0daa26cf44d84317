package solana

import "github.com/shopspring/decimal"

// Well-known program ids and chain constants.
const (
	TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

	// TokenAccountSize is the data length of an SPL token account.
	TokenAccountSize = 165

	LamportsPerSOL = 1_000_000_000
)

// TokenAccount is a parsed SPL token account.
type TokenAccount struct {
	Pubkey   string
	Mint     string
	Owner    string
	Amount   decimal.Decimal // raw base units
	Decimals uint8
	// UIAmount is Amount scaled by Decimals.
	UIAmount decimal.Decimal
	Lamports uint64
}

// IsEmpty reports whether the account holds no tokens.
func (a TokenAccount) IsEmpty() bool {
	return a.Amount.IsZero()
}

// IsNFT reports whether the account looks like a single-edition NFT holding.
func (a TokenAccount) IsNFT() bool {
	return a.Decimals == 0 && a.Amount.Equal(decimal.NewFromInt(1))
}

// TokenAccountFilter selects token accounts for getTokenAccountsByOwner.
// Exactly one of ProgramID or Mint must be set.
type TokenAccountFilter struct {
	ProgramID string
	Mint      string
}

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// Failed reports whether the transaction failed on chain.
func (s SignatureInfo) Failed() bool {
	return s.Err != nil
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// Transaction is a fetched transaction reduced to what activity detection needs.
type Transaction struct {
	Slot         int64
	Signature    string
	BlockTime    int64 // Unix timestamp (seconds)
	Failed       bool
	Instructions []Instruction
	// Inner holds instructions emitted through CPI, flattened.
	Inner []Instruction
}

// AllInstructions returns outer and inner instructions.
func (t *Transaction) AllInstructions() []Instruction {
	out := make([]Instruction, 0, len(t.Instructions)+len(t.Inner))
	out = append(out, t.Instructions...)
	return append(out, t.Inner...)
}

// Instruction is a single instruction with its program id resolved.
type Instruction struct {
	ProgramID string
	// Data is base58 encoded; empty for instructions the node parsed.
	Data string
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}
