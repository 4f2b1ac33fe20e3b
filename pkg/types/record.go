package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gdkp/gdkp-backend/pkg/money"
)

// Record is one staged, not yet persisted product row.
type Record struct {
	Text        string      `json:"text"`
	ProductName string      `json:"productName"`
	Price       money.Price `json:"price"`
	Currency    string      `json:"currency"`
}

// Location is the store a batch was captured at.
type Location struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// IsZero reports whether neither field is set.
func (l Location) IsZero() bool {
	return strings.TrimSpace(l.Name) == "" && strings.TrimSpace(l.Address) == ""
}

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the pair is finite and within range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return math.Abs(c.Lat) <= 90 && math.Abs(c.Lng) <= 180
}

// String renders the "lat,lon" hint format with six decimals.
func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// ParseCoordinates parses a "lat,lon" hint.
func ParseCoordinates(s string) (Coordinates, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return Coordinates{}, fmt.Errorf("coordinates: expected lat,lon got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("coordinates: latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("coordinates: longitude: %w", err)
	}
	c := Coordinates{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coordinates{}, fmt.Errorf("coordinates: out of range %q", s)
	}
	return c, nil
}
