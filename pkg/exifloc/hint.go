package exifloc

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/gdkp/gdkp-backend/pkg/types"
)

// Hinter derives an optional "lat,lon" location hint from image bytes.
// Implementations must never panic; any failure means no hint.
type Hinter interface {
	LocationHint(data []byte) (string, bool)
}

// HinterFunc adapts a function to Hinter.
type HinterFunc func(data []byte) (string, bool)

func (f HinterFunc) LocationHint(data []byte) (string, bool) {
	return f(data)
}

// Default reads GPS tags with goexif and falls back to the marker scan.
func Default() Hinter {
	return Chain(ExifHinter{}, MarkerScanHinter{})
}

// ExifHinter uses a full EXIF parser.
type ExifHinter struct{}

func (ExifHinter) LocationHint(data []byte) (hint string, ok bool) {
	defer func() {
		if recover() != nil {
			hint, ok = "", false
		}
	}()
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	lat, lng, err := x.LatLong()
	if err != nil {
		return "", false
	}
	return format(types.Coordinates{Lat: lat, Lng: lng})
}

// MarkerScanHinter is a best-effort scan: it looks for the APP1 marker
// followed by the "Exif" signature and walks only as far as the GPS IFD.
// Results are range-checked and rejected when implausible.
type MarkerScanHinter struct{}

func (MarkerScanHinter) LocationHint(data []byte) (hint string, ok bool) {
	defer func() {
		if recover() != nil {
			hint, ok = "", false
		}
	}()
	coords, found := scanGPS(data)
	if !found {
		return "", false
	}
	return format(coords)
}

// Chain returns the first hint produced by hinters, in order.
func Chain(hinters ...Hinter) Hinter {
	return HinterFunc(func(data []byte) (string, bool) {
		for _, h := range hinters {
			if h == nil {
				continue
			}
			if hint, ok := h.LocationHint(data); ok {
				return hint, true
			}
		}
		return "", false
	})
}

func format(c types.Coordinates) (string, bool) {
	if !c.Valid() || (c.Lat == 0 && c.Lng == 0) {
		return "", false
	}
	return c.String(), true
}
