package domain

import "github.com/shopspring/decimal"

// Holder is an owner address of a scanned mint with its aggregated USD value.
type Holder struct {
	Address  string          // owner wallet address
	ValueUSD decimal.Decimal // sum over all token accounts of the mint
}

// Addresses returns the holder addresses in order.
func Addresses(holders []Holder) []string {
	out := make([]string, len(holders))
	for i, h := range holders {
		out[i] = h.Address
	}
	return out
}
