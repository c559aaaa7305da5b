// Package format renders amounts and months as the budgeting UI shows them.
package format

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Currency formats an amount as whole US dollars, e.g. "$1,200" or "-$35".
func Currency(amount decimal.Decimal) string {
	whole := amount.Round(0)
	symbol := printer.Sprint(currency.Symbol(currency.USD))
	s := symbol + printer.Sprintf("%d", whole.Abs().IntPart())
	if whole.IsNegative() {
		return "-" + s
	}
	return s
}

// MonthYear formats a month as "March 2024".
func MonthYear(year, month int) string {
	return fmt.Sprintf("%s %d", time.Month(month).String(), year)
}
