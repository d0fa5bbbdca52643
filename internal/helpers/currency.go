package helpers

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount formats a whole amount with thousands separators, e.g. ₦20,000
func FormatAmount(currency string, amount int64) string {
	if amount < 0 {
		return "-" + currency + amountPrinter.Sprintf("%d", -amount)
	}
	return currency + amountPrinter.Sprintf("%d", amount)
}

// FormatSignedAmount formats an amount with an explicit sign, e.g. +₦1,000
func FormatSignedAmount(currency string, amount int64) string {
	if amount < 0 {
		return FormatAmount(currency, amount)
	}
	return "+" + FormatAmount(currency, amount)
}
