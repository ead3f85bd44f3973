package document

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultTolerance is the largest header/lines deviation still accepted
var DefaultTolerance = decimal.NewFromFloat(0.01)

// Reason explains a reconciliation result
type Reason string

const (
	ReasonOK             Reason = "ok"
	ReasonNoLines        Reason = "no-lines"
	ReasonAmountMismatch Reason = "amount-mismatch"
)

// Result is the outcome of Evaluate. It is data, never an error: an invalid
// result is the normal state of a document being edited.
type Result struct {
	IsValid      bool
	Reason       Reason
	HeaderAmount decimal.Decimal
	LineTotal    decimal.Decimal
	Deviation    decimal.Decimal
	Tolerance    decimal.Decimal
}

// Message returns the user-facing explanation. A mismatch always states the exact deviation.
func (r Result) Message() string {
	switch r.Reason {
	case ReasonNoLines:
		return "The document needs at least one line before it can be saved"
	case ReasonAmountMismatch:
		return fmt.Sprintf("Amount excl. tax %s differs from the line total %s by %s",
			FormatAmount(r.HeaderAmount), FormatAmount(r.LineTotal), FormatAmount(r.Deviation))
	}
	return "Lines reconcile with the header"
}

// EffectiveTolerance returns the tolerance to use; zero or negative values fall back to the default
func EffectiveTolerance(tolerance decimal.Decimal) decimal.Decimal {
	if tolerance.LessThanOrEqual(decimal.Zero) {
		return DefaultTolerance
	}
	return tolerance
}

// Evaluate checks the header amount against the sum of its lines.
// It is a pure function; evaluating the same inputs twice gives the same result.
func Evaluate(header Header, lines []Line, tolerance decimal.Decimal) Result {
	tolerance = EffectiveTolerance(tolerance)
	lineTotal := sumExclTax(lines)
	deviation := header.AmountExclTax.Sub(lineTotal).Abs()

	result := Result{
		HeaderAmount: header.AmountExclTax,
		LineTotal:    lineTotal,
		Deviation:    deviation,
		Tolerance:    tolerance,
	}
	switch {
	case len(lines) == 0:
		result.Reason = ReasonNoLines
	case deviation.GreaterThan(tolerance):
		result.Reason = ReasonAmountMismatch
	default:
		result.IsValid = true
		result.Reason = ReasonOK
	}
	return result
}

// Warning is a non-blocking finding shown next to the save control
type Warning struct {
	Code    string
	Message string
}

// CheckTaxConsistency reports when the header's three amounts disagree.
// The amounts are independent user claims, so this never blocks a save.
func CheckTaxConsistency(header Header, tolerance decimal.Decimal) []Warning {
	tolerance = EffectiveTolerance(tolerance)
	expected := header.AmountExclTax.Add(header.TaxAmount)
	gap := expected.Sub(header.AmountInclTax).Abs()
	if gap.LessThanOrEqual(tolerance) {
		return nil
	}
	return []Warning{{
		Code: "TAX_INCONSISTENT",
		Message: fmt.Sprintf("Amount incl. tax %s does not equal amount excl. tax plus tax (%s), difference %s",
			FormatAmount(header.AmountInclTax), FormatAmount(expected), FormatAmount(gap)),
	}}
}
