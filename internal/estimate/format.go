package estimate

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCurrency formats a dollar amount rounded to whole dollars with
// thousands separators, e.g. "$6,210".
func FormatCurrency(amount float64) string {
	if amount < 0 {
		return "-" + FormatCurrency(-amount)
	}
	return printer.Sprintf("$%d", int64(math.Round(amount)))
}

// FormatCurrencyCents formats a dollar amount with cents, e.g. "$69.00".
func FormatCurrencyCents(amount float64) string {
	if amount < 0 {
		return "-" + FormatCurrencyCents(-amount)
	}
	return printer.Sprintf("$%.2f", amount)
}

// NotApplicable is shown in place of a breakeven count when no drug is
// losing money.
const NotApplicable = "not applicable"

// FormatBreakeven renders a breakeven fill count for display.
func FormatBreakeven(fills *int) string {
	if fills == nil {
		return NotApplicable
	}
	return printer.Sprintf("%d fills/month", *fills)
}
