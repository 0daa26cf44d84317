package domain

// Reason tags a wallet that did not qualify.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonHighBalance       Reason = "high_balance"
	ReasonNoPumpfunActivity Reason = "no_pumpfun_activity"
	ReasonLowAccounts       Reason = "low_accounts"
	ReasonError             Reason = "error"
)

// String returns the string representation of Reason.
func (r Reason) String() string {
	return string(r)
}
