// Package stream defines the events of an analysis session and the sinks
// that deliver them to a client.
package stream

import "solana-holder-scan/internal/domain"

// Event is one message of an analysis stream.
type Event interface {
	EventName() string
}

// PriceEvent carries the resolved token price.
type PriceEvent struct {
	TokenPrice float64 `json:"tokenPrice"`
}

// HoldersEvent carries the number of qualifying holders found.
type HoldersEvent struct {
	TotalHolders int `json:"totalHolders"`
}

// ProgressEvent reports cumulative counts after each group.
type ProgressEvent struct {
	Progress          int `json:"progress"`
	Total             int `json:"total"`
	Qualified         int `json:"qualified"`
	HighBalance       int `json:"high_balance"`
	NoPumpfunActivity int `json:"no_pumpfun_activity"`
	LowAccounts       int `json:"low_accounts"`
	Error             int `json:"error"`
}

// Count adds one result to the progress counters.
func (p *ProgressEvent) Count(r domain.WalletResult) {
	p.Progress++
	if r.Qualified {
		p.Qualified++
		return
	}
	switch r.Reason {
	case domain.ReasonHighBalance:
		p.HighBalance++
	case domain.ReasonNoPumpfunActivity:
		p.NoPumpfunActivity++
	case domain.ReasonLowAccounts:
		p.LowAccounts++
	default:
		p.Error++
	}
}

// BatchEvent carries the qualified results of one group.
type BatchEvent struct {
	Batch        bool                  `json:"batch"`
	Results      []domain.WalletResult `json:"results"`
	BatchNumber  int                   `json:"batchNumber"`
	TotalBatches int                   `json:"totalBatches"`
}

// DoneEvent terminates a successful stream.
type DoneEvent struct {
	Done         bool `json:"done"`
	TotalResults int  `json:"totalResults"`
}

// ErrorEvent terminates a failed stream.
type ErrorEvent struct {
	Error string `json:"error"`
}

func (PriceEvent) EventName() string    { return "price" }
func (HoldersEvent) EventName() string  { return "holders" }
func (ProgressEvent) EventName() string { return "progress" }
func (BatchEvent) EventName() string    { return "batch" }
func (DoneEvent) EventName() string     { return "done" }
func (ErrorEvent) EventName() string    { return "error" }
