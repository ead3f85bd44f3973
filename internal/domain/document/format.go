package document

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a monetary amount with two decimals and digit grouping,
// e.g. 1234.5 becomes "1,234.50". The integer part is never rounded through a float.
func FormatAmount(d decimal.Decimal) string {
	rounded := d.Round(2)
	abs := rounded.Abs()
	whole := abs.Truncate(0)
	frac := abs.Sub(whole).StringFixed(2)[1:]

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	return sign + amountPrinter.Sprintf("%d", whole.IntPart()) + frac
}
