// Package tokenconst contains Ember token constants shared between the
// contract and client-side code.
package tokenconst

const (
	// Symbol is a ticker symbol of the Ember token.
	Symbol = "EMBR"

	// Decimals is a decimal precision of the Ember token.
	Decimals = 18

	// MaxFeeRateBps is the maximum allowed flash loan fee rate, in basis
	// points (10%).
	MaxFeeRateBps = 1000

	// FeeDenominator is the divisor of the fee rate: a rate of
	// FeeDenominator basis points would correspond to a 100% fee.
	FeeDenominator = 10_000
)
