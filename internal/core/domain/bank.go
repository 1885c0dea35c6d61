package domain

import "github.com/shopspring/decimal"

// BankConfig holds the per-bank limits applied before an EFT submission.
type BankConfig struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	MinAmount decimal.Decimal `json:"min_amount"`
	MaxAmount decimal.Decimal `json:"max_amount"`
	FeeRate   decimal.Decimal `json:"fee_rate"`
}

// AcceptsAmount reports whether amount lies within [MinAmount, MaxAmount].
func (b BankConfig) AcceptsAmount(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(b.MinAmount) && amount.LessThanOrEqual(b.MaxAmount)
}

// EstimatedFee is the fee the bank is expected to report for amount.
func (b BankConfig) EstimatedFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(b.FeeRate).Round(2)
}
