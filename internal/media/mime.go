package media

import (
	"github.com/gabriel-vasile/mimetype"
)

var allowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
	"image/heic",
	"image/heif",
}

const allowedImageDescription = "a JPEG, PNG, WebP, GIF or HEIC image"

// sniffImage detects the content type from the bytes themselves and reports
// whether it is an accepted image type.
func sniffImage(data []byte) (string, bool) {
	detected := mimetype.Detect(data)
	for _, allowed := range allowedImageTypes {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	return detected.String(), false
}
