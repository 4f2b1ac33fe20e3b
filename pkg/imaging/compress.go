package imaging

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 1920
	DefaultMaxBytes     = 2 << 20
	DefaultQuality      = 82
	minQuality          = 40
	qualityStep         = 8

	// maxPixels caps the decoded size; larger images are passed through.
	maxPixels = 50_000_000
)

// Options bounds the compressed output.
type Options struct {
	MaxDimension int
	MaxBytes     int
	Quality      int
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	return o
}

// Result is the compressed image. Compressed is false when the original
// bytes were returned unchanged.
type Result struct {
	Data       []byte
	MIMEType   string
	Width      int
	Height     int
	Compressed bool
}

// Compress downsizes and re-encodes an image as JPEG within opts. It never
// enlarges and never fails: undecodable input, and input whose header
// declares more than maxPixels, is returned as-is without decoding pixels.
func Compress(data []byte, mimeType string, opts Options) Result {
	opts = opts.withDefaults()
	original := Result{Data: data, MIMEType: mimeType}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return original
	}
	original.Width, original.Height = cfg.Width, cfg.Height
	if format == "jpeg" {
		original.MIMEType = "image/jpeg"
	}
	if !decodable(cfg.Width, cfg.Height) {
		return original
	}

	needsResize := cfg.Width > opts.MaxDimension || cfg.Height > opts.MaxDimension
	if format == "jpeg" && !needsResize && len(data) <= opts.MaxBytes {
		return original
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return original
	}

	img := src
	if needsResize {
		w, h := fit(cfg.Width, cfg.Height, opts.MaxDimension)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		img = dst
	}

	encoded, ok := encodeWithin(img, opts)
	if !ok {
		return original
	}
	if !needsResize && len(encoded) >= len(data) {
		return original
	}

	bounds := img.Bounds()
	return Result{
		Data:       encoded,
		MIMEType:   "image/jpeg",
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Compressed: true,
	}
}

// encodeWithin steps JPEG quality down until the output fits MaxBytes.
// The smallest attempt is returned when nothing fits.
func encodeWithin(img image.Image, opts Options) ([]byte, bool) {
	var best []byte
	for q := opts.Quality; q >= minQuality; q -= qualityStep {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, false
		}
		best = buf.Bytes()
		if len(best) <= opts.MaxBytes {
			return best, true
		}
	}
	return best, best != nil
}

// decodable reports whether a w x h image is small enough to decode.
func decodable(w, h int) bool {
	return w > 0 && h > 0 && w <= maxPixels/h
}

// fit scales w x h so the longest side equals max, preserving aspect ratio.
func fit(w, h, max int) (int, int) {
	if w >= h {
		nh := int(float64(h) * float64(max) / float64(w))
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := int(float64(w) * float64(max) / float64(h))
	if nw < 1 {
		nw = 1
	}
	return nw, max
}
