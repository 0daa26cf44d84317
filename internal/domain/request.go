package domain

import (
	"errors"
	"strings"
)

// ErrMissingMint is returned when an analysis request has no mint.
var ErrMissingMint = errors.New("mint is required")

// AnalysisRequest is one client request to analyze the holders of a mint.
// Nil optional fields fall back to configured defaults.
type AnalysisRequest struct {
	Mint            string   `json:"mint"`
	MinAccounts     *int     `json:"minAccounts,omitempty"`
	MaxSolBalance   *float64 `json:"maxSolBalance,omitempty"`
	PriceSource     string   `json:"priceSource,omitempty"`
	RequireActivity *bool    `json:"requireActivity,omitempty"`
}

// Normalize trims string fields.
func (r *AnalysisRequest) Normalize() {
	r.Mint = strings.TrimSpace(r.Mint)
	r.PriceSource = strings.ToLower(strings.TrimSpace(r.PriceSource))
}

// Validate checks required fields.
func (r AnalysisRequest) Validate() error {
	if r.Mint == "" {
		return ErrMissingMint
	}
	if r.MinAccounts != nil && *r.MinAccounts < 0 {
		return errors.New("minAccounts must not be negative")
	}
	if r.MaxSolBalance != nil && *r.MaxSolBalance < 0 {
		return errors.New("maxSolBalance must not be negative")
	}
	return nil
}
