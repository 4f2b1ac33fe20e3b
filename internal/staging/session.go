package staging

import (
	"github.com/gdkp/gdkp-backend/pkg/types"
)

// Image describes the accepted source image.
type Image struct {
	Name       string
	MIMEType   string
	Size       int
	Source     string
	ImageURL   string
	ObjectPath string
}

// Session is the staging state for one image. It holds the last extraction
// result, the editable records and the batch location.
type Session struct {
	Image     *Image
	RawResult string
	Editor    *Editor
	Location  *types.Location
}

// NewSession returns an empty session.
func NewSession(defaultCurrency string) *Session {
	return &Session{Editor: NewEditor(nil, defaultCurrency)}
}

// Accept installs a new image and clears everything derived from the previous one.
func (s *Session) Accept(img Image) {
	s.Image = &img
	s.RawResult = ""
	s.Location = nil
	s.Editor.Replace(nil)
}

// Extracted records the outcome of an extraction for the current image.
func (s *Session) Extracted(raw string, records []types.Record) {
	s.RawResult = raw
	s.Editor.Replace(records)
}

// SetLocation sets or clears the shared batch location.
func (s *Session) SetLocation(loc *types.Location) {
	if loc == nil || loc.IsZero() {
		s.Location = nil
		return
	}
	copied := *loc
	s.Location = &copied
}

// ImageURL returns the uploaded image URL for the batch, if any.
func (s *Session) ImageURL() string {
	if s.Image == nil {
		return ""
	}
	return s.Image.ImageURL
}
