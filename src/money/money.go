package money

import (
	"github.com/shopspring/decimal"
)

// Context carries the fixed decimal precision used for every monetary
// computation in a run. It is built once from config before the pipeline
// starts and threaded through enrichment and the realization engine, so that
// rounding behaviour never depends on package-global state set elsewhere.
type Context struct {
	Precision int32
}

func NewContext(precision int32) Context {
	if precision <= 0 {
		precision = 10
	}
	return Context{Precision: precision}
}

// Div divides a by b rounded to the context precision. Callers must guard
// against a zero divisor; monetary divisors here are validated upstream.
func (c Context) Div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, c.Precision)
}

// Mul multiplies and rounds to the context precision.
func (c Context) Mul(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Round(c.Precision)
}

// Round normalizes an amount to the context precision.
func (c Context) Round(a decimal.Decimal) decimal.Decimal {
	return a.Round(c.Precision)
}

// Convert turns an original-currency amount into the reporting currency
// given a rate expressed as foreign-currency-units per one reporting unit.
func (c Context) Convert(amount, unitsPerReporting decimal.Decimal) decimal.Decimal {
	return amount.DivRound(unitsPerReporting, c.Precision)
}
