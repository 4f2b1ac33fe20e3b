package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gdkp/gdkp-backend/pkg/money"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

// ParseError reports model output that holds no usable product objects.
type ParseError struct {
	Raw  string
	Kind Kind
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("normalize: no product objects in model output (%s)", e.Kind)
}

// Normalize turns raw model output into staged records.
func Normalize(raw, defaultCurrency string) ([]types.Record, error) {
	parsed := Parse(raw)
	if parsed.Kind == KindUnparsable || len(parsed.Objects) == 0 {
		return nil, &ParseError{Raw: raw, Kind: parsed.Kind}
	}
	records := make([]types.Record, 0, len(parsed.Objects))
	for _, obj := range parsed.Objects {
		records = append(records, fromObject(obj, defaultCurrency))
	}
	return records, nil
}

// Records re-applies normalization to records already in memory.
func Records(in []types.Record, defaultCurrency string) []types.Record {
	out := make([]types.Record, len(in))
	for i, rec := range in {
		name := strings.TrimSpace(rec.ProductName)
		text := strings.TrimSpace(rec.Text)
		if text == "" {
			text = name
		}
		out[i] = types.Record{
			Text:        text,
			ProductName: name,
			Price:       rec.Price,
			Currency:    money.NormalizeCurrency(rec.Currency, defaultCurrency),
		}
	}
	return out
}

func fromObject(obj map[string]any, defaultCurrency string) types.Record {
	title := firstString(obj, "title", "productName", "name")
	text := firstString(obj, "text")
	if text == "" {
		text = title
	}
	return types.Record{
		Text:        text,
		ProductName: title,
		Price:       priceOf(obj["price"]),
		Currency:    money.NormalizeCurrency(firstString(obj, "currency"), defaultCurrency),
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// priceOf keeps only JSON numbers; strings, booleans and objects become unknown.
func priceOf(v any) money.Price {
	n, ok := v.(json.Number)
	if !ok {
		return money.UnknownPrice()
	}
	p, err := money.ParsePrice(n.String())
	if err != nil {
		return money.UnknownPrice()
	}
	return p
}
