package extraction

import (
	"regexp"
	"strings"

	"github.com/gdkp/gdkp-backend/pkg/money"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

var (
	symbolPricePattern = regexp.MustCompile(`[$€£₴]\s*(\d+(?:[.,]\d{1,2})?)`)
	plainPricePattern  = regexp.MustCompile(`(\d+(?:[.,]\d{1,2})?)\s*(?:USD|EUR|GBP|UAH|PLN|грн|zł)?`)
	digitsOnly         = regexp.MustCompile(`^\d+$`)
	hasDigit           = regexp.MustCompile(`\d`)
)

// ParseOCRText guesses a single product record from plain OCR text: the
// first price-like token, a currency from symbols or codes, and the first
// line longer than three characters that carries no digits as the name.
func ParseOCRText(text, defaultCurrency string) (types.Record, bool) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return types.Record{}, false
	}

	rec := types.Record{
		Text:     strings.TrimSpace(text),
		Price:    firstPrice(text),
		Currency: detectCurrency(text, defaultCurrency),
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	for _, line := range lines {
		if len([]rune(line)) > 3 && !hasDigit.MatchString(line) {
			rec.ProductName = line
			break
		}
	}
	if rec.ProductName == "" && len(lines) > 0 && !digitsOnly.MatchString(lines[0]) {
		rec.ProductName = lines[0]
	}
	return rec, rec.ProductName != ""
}

func firstPrice(text string) money.Price {
	for _, pattern := range []*regexp.Regexp{symbolPricePattern, plainPricePattern} {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if p, err := money.ParsePrice(strings.Replace(m[1], ",", ".", 1)); err == nil {
				return p
			}
		}
	}
	return money.UnknownPrice()
}

func detectCurrency(text, def string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "€") || strings.Contains(lower, "eur"):
		return "EUR"
	case strings.Contains(text, "£") || strings.Contains(lower, "gbp"):
		return "GBP"
	case strings.Contains(text, "₴") || strings.Contains(lower, "грн") || strings.Contains(lower, "uah"):
		return "UAH"
	case strings.Contains(lower, "zł") || strings.Contains(lower, "pln"):
		return "PLN"
	case strings.Contains(text, "$") || strings.Contains(lower, "usd"):
		return "USD"
	}
	return money.NormalizeCurrency("", def)
}
