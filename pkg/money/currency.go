package money

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// DefaultCurrency applies when neither the source nor configuration names one.
const DefaultCurrency = "USD"

var symbolCodes = map[string]string{
	"$":   "USD",
	"US$": "USD",
	"€":   "EUR",
	"£":   "GBP",
	"₴":   "UAH",
	"ГРН": "UAH",
	"ZŁ":  "PLN",
	"¥":   "JPY",
	"₽":   "RUB",
	"₹":   "INR",
}

// NormalizeCurrency upper-cases raw and maps known symbols to ISO 4217 codes.
// A present three-letter code is kept even when it is not ISO (e.g. "RMB").
// Blank input or text that is not a code yields def.
func NormalizeCurrency(raw, def string) string {
	if def == "" {
		def = DefaultCurrency
	}
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return def
	}
	if mapped, ok := symbolCodes[code]; ok {
		return mapped
	}
	if unit, err := currency.ParseISO(code); err == nil {
		return unit.String()
	}
	if isLetterCode(code) {
		return code
	}
	return def
}

func isLetterCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// ValidCurrency reports whether code is a recognised ISO 4217 code.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	_, err := currency.ParseISO(code)
	return err == nil
}

// FormatPrice renders a price the way the catalog displays it.
func FormatPrice(p Price, code string) string {
	f, ok := p.Float()
	if !ok {
		return "Price not available"
	}
	amount := fmt.Sprintf("%.2f", f)
	switch strings.ToUpper(code) {
	case "UAH":
		return amount + " ₴"
	case "PLN":
		return amount + " zł"
	case "USD", "":
		if f < 0 {
			return "-$" + strings.TrimPrefix(amount, "-")
		}
		return "$" + amount
	default:
		return strings.ToUpper(code) + " " + amount
	}
}
