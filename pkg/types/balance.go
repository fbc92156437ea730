package types

// Balance is the derived spendable balance for one address.
// Deposits come from the external payment backend, spent from the local
// debit ledger; nothing here is stored or cached.
type Balance struct {
	Address     string  `json:"address"`
	Deposits    float64 `json:"deposits"`
	Spent       float64 `json:"spent"`
	Balance     float64 `json:"balance"`
	BalanceUSD  float64 `json:"balance_usd"`
	RateUSD     float64 `json:"rate_usd"`
}
