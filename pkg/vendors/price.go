package vendors

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var pricePrinter = message.NewPrinter(language.BritishEnglish)

// FormatPrice renders an amount as localized currency text ("£1.29"). An
// unrecognized currency code falls back to "<amount> <code>".
func FormatPrice(amount float64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%.2f %s", amount, code)
	}
	return pricePrinter.Sprint(currency.Symbol(unit.Amount(amount)))
}
