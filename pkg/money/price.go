package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Price is a nullable signed decimal. The zero value is "unknown".
// It encodes to a bare JSON number or null.
type Price struct {
	decimal.NullDecimal
}

// Amounts outside these bounds are treated as unknown. Exponents are checked
// before any arithmetic so a literal like 1e30000000 is never expanded.
const (
	maxExponent   = 12
	minExponent   = -12
	maxPriceText  = "1000000000000"
	maxPriceFloat = 1e12
)

var maxPrice = decimal.RequireFromString(maxPriceText)

// NewPrice wraps a known amount. Amounts that are out of range or carry
// more than 12 fractional digits become unknown.
func NewPrice(d decimal.Decimal) Price {
	if !inRange(d) {
		return UnknownPrice()
	}
	return Price{decimal.NullDecimal{Decimal: d, Valid: true}}
}

func inRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp > maxExponent || exp < minExponent {
		return false
	}
	return d.Abs().LessThanOrEqual(maxPrice)
}

// UnknownPrice is the null price.
func UnknownPrice() Price {
	return Price{}
}

// PriceFromFloat converts a float, rejecting NaN and infinities as unknown.
func PriceFromFloat(f float64) Price {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxPriceFloat {
		return UnknownPrice()
	}
	return NewPrice(decimal.NewFromFloat(f).Round(-minExponent))
}

// ParsePrice parses a decimal literal such as "12.99" or "-3". Literals that
// parse but fall outside the supported range are an error.
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return UnknownPrice(), fmt.Errorf("invalid price %q: %w", s, err)
	}
	if !inRange(d) {
		return UnknownPrice(), fmt.Errorf("price %q out of range", s)
	}
	return NewPrice(d), nil
}

func (p Price) Known() bool {
	return p.Valid
}

// Float returns the amount as float64 and whether it is known.
func (p Price) Float() (float64, bool) {
	if !p.Valid {
		return 0, false
	}
	f, _ := p.Decimal.Float64()
	return f, true
}

func (p Price) Equal(other Price) bool {
	if p.Valid != other.Valid {
		return false
	}
	return !p.Valid || p.Decimal.Equal(other.Decimal)
}

func (p Price) String() string {
	if !p.Valid {
		return "null"
	}
	return p.Decimal.String()
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return []byte(p.Decimal.String()), nil
}

// UnmarshalJSON accepts a number, a numeric string or null.
// Anything else decodes to an unknown price.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = UnknownPrice()
		return nil
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case json.Number:
		parsed, err := ParsePrice(v.String())
		if err != nil {
			*p = UnknownPrice()
			return nil
		}
		*p = parsed
	case string:
		parsed, err := ParsePrice(v)
		if err != nil {
			*p = UnknownPrice()
			return nil
		}
		*p = parsed
	default:
		*p = UnknownPrice()
	}
	return nil
}
