package domain

// PairBalances is one account's view of a pair: option and obligation
// balances as decimal strings.
type PairBalances struct {
	Option     string `json:"option"`
	Obligation string `json:"obligation"`
}

// Seller is one obligation holder a request can exercise against.
type Seller struct {
	Account    Account `json:"account"`
	Obligation string  `json:"obligation"`
}

// TreasuryBalance is the collateral view served for one (pair, account).
type TreasuryBalance struct {
	Deposited string `json:"deposited"`
	Locked    string `json:"locked"`
	Unlocked  string `json:"unlocked"`
}
