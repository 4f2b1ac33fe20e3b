package types

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
)

// ImageFile is an accepted user image, independent of how it arrived.
type ImageFile struct {
	Name     string
	MIMEType string
	Source   string
	Data     []byte
}

var extByMIME = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/heic": "heic",
	"image/heif": "heif",
	"image/bmp":  "bmp",
	"image/tiff": "tiff",
}

// Ext returns the file extension (without dot) for the image.
func (f ImageFile) Ext() string {
	if ext, ok := extByMIME[strings.ToLower(f.MIMEType)]; ok {
		return ext
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), "."); ext != "" {
		if ext == "jpeg" {
			return "jpg"
		}
		return ext
	}
	return "jpg"
}

// DataURI renders the preview form of the image.
func (f ImageFile) DataURI() string {
	mime := f.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(f.Data))
}
