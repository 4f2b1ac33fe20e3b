package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

const (
	// DefaultField is the multipart field every image source posts to.
	DefaultField = "image"

	multipartOverhead = 1 << 20
	memoryLimit       = 8 << 20
)

// Sources the client may report for an image. Only used for logging.
var knownSources = map[string]struct{}{
	"file":      {},
	"camera":    {},
	"drop":      {},
	"clipboard": {},
}

// Acquire reads one image from a multipart request. Oversized, empty and
// non-image uploads are rejected before any processing.
func Acquire(r *http.Request, field string, maxBytes int64) (*types.ImageFile, error) {
	if field == "" {
		field = DefaultField
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes+multipartOverhead)
	}

	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, oversize(maxBytes)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "multipart form with an image is required")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "image is required")
	}
	defer func() { _ = file.Close() }()

	if maxBytes > 0 && header.Size > maxBytes {
		return nil, oversize(maxBytes)
	}

	reader := io.Reader(file)
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "image could not be read")
	}
	return FromBytes(header.Filename, r.FormValue("source"), data, maxBytes)
}

// FromBytes validates raw image bytes the same way Acquire does.
func FromBytes(name, src string, data []byte, maxBytes int64) (*types.ImageFile, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, oversize(maxBytes)
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "image is required")
	}

	mimeType, ok := sniffImage(data)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "file must be "+allowedImageDescription).
			WithDetails(map[string]any{"detected_type": mimeType})
	}

	return &types.ImageFile{
		Name:     filepath.Base(name),
		MIMEType: mimeType,
		Source:   source(src),
		Data:     data,
	}, nil
}

func source(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if _, ok := knownSources[v]; ok {
		return v
	}
	return "file"
}

func oversize(maxBytes int64) error {
	return pkgerrors.New(pkgerrors.CodeInvalidInput, fmt.Sprintf("image exceeds the %d MB limit", maxBytes>>20))
}
