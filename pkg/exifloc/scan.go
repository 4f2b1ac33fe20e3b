package exifloc

import (
	"bytes"
	"encoding/binary"

	"github.com/gdkp/gdkp-backend/pkg/types"
)

const (
	tagGPSIFD       = 0x8825
	tagGPSLatRef    = 0x0001
	tagGPSLat       = 0x0002
	tagGPSLngRef    = 0x0003
	tagGPSLng       = 0x0004
	typeRational    = 5
	ifdEntrySize    = 12
	maxScanMarkers  = 8
	exifHeaderBytes = 6
)

var (
	app1Marker    = []byte{0xFF, 0xE1}
	exifSignature = []byte("Exif")
)

func scanGPS(data []byte) (types.Coordinates, bool) {
	offset := 0
	for attempt := 0; attempt < maxScanMarkers; attempt++ {
		idx := bytes.Index(data[offset:], app1Marker)
		if idx < 0 {
			return types.Coordinates{}, false
		}
		pos := offset + idx
		// marker(2) + segment length(2) then the signature.
		sig := pos + 4
		if sig+exifHeaderBytes <= len(data) && bytes.Equal(data[sig:sig+4], exifSignature) {
			if coords, ok := readTIFF(data[sig+exifHeaderBytes:]); ok {
				return coords, true
			}
		}
		offset = pos + 2
	}
	return types.Coordinates{}, false
}

type tiff struct {
	buf   []byte
	order binary.ByteOrder
}

func readTIFF(buf []byte) (types.Coordinates, bool) {
	if len(buf) < 8 {
		return types.Coordinates{}, false
	}
	t := tiff{buf: buf}
	switch string(buf[:2]) {
	case "II":
		t.order = binary.LittleEndian
	case "MM":
		t.order = binary.BigEndian
	default:
		return types.Coordinates{}, false
	}

	ifd0, ok := t.u32(4)
	if !ok {
		return types.Coordinates{}, false
	}
	gpsEntry, ok := t.find(int(ifd0), tagGPSIFD)
	if !ok {
		return types.Coordinates{}, false
	}
	gpsIFD, ok := t.u32(gpsEntry + 8)
	if !ok {
		return types.Coordinates{}, false
	}

	lat, ok := t.degrees(int(gpsIFD), tagGPSLat)
	if !ok {
		return types.Coordinates{}, false
	}
	lng, ok := t.degrees(int(gpsIFD), tagGPSLng)
	if !ok {
		return types.Coordinates{}, false
	}
	if t.ref(int(gpsIFD), tagGPSLatRef) == 'S' {
		lat = -lat
	}
	if t.ref(int(gpsIFD), tagGPSLngRef) == 'W' {
		lng = -lng
	}
	coords := types.Coordinates{Lat: lat, Lng: lng}
	return coords, coords.Valid()
}

// find returns the byte offset of the IFD entry carrying tag.
func (t tiff) find(ifd int, tag uint16) (int, bool) {
	count, ok := t.u16(ifd)
	if !ok {
		return 0, false
	}
	for i := 0; i < int(count); i++ {
		entry := ifd + 2 + i*ifdEntrySize
		got, ok := t.u16(entry)
		if !ok {
			return 0, false
		}
		if got == tag {
			return entry, true
		}
	}
	return 0, false
}

func (t tiff) ref(ifd int, tag uint16) byte {
	entry, ok := t.find(ifd, tag)
	if !ok || entry+8 >= len(t.buf) {
		return 0
	}
	return t.buf[entry+8]
}

// degrees reads a three-rational degrees/minutes/seconds value.
func (t tiff) degrees(ifd int, tag uint16) (float64, bool) {
	entry, ok := t.find(ifd, tag)
	if !ok {
		return 0, false
	}
	typ, _ := t.u16(entry + 2)
	count, _ := t.u32(entry + 4)
	if typ != typeRational || count != 3 {
		return 0, false
	}
	at, ok := t.u32(entry + 8)
	if !ok {
		return 0, false
	}
	var parts [3]float64
	for i := range parts {
		num, ok1 := t.u32(int(at) + i*8)
		den, ok2 := t.u32(int(at) + i*8 + 4)
		if !ok1 || !ok2 || den == 0 {
			return 0, false
		}
		parts[i] = float64(num) / float64(den)
	}
	return parts[0] + parts[1]/60 + parts[2]/3600, true
}

func (t tiff) u16(at int) (uint16, bool) {
	if at < 0 || at+2 > len(t.buf) {
		return 0, false
	}
	return t.order.Uint16(t.buf[at:]), true
}

func (t tiff) u32(at int) (uint32, bool) {
	if at < 0 || at+4 > len(t.buf) {
		return 0, false
	}
	return t.order.Uint32(t.buf[at:]), true
}
