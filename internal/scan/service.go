package scan

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/gdkp/gdkp-backend/internal/drafts"
	"github.com/gdkp/gdkp-backend/internal/extraction"
	"github.com/gdkp/gdkp-backend/internal/media"
	"github.com/gdkp/gdkp-backend/internal/staging"
	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

// Failure is the client-facing shape of one failed half of a scan.
type Failure struct {
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
	Details any            `json:"details,omitempty"`
}

// Result carries both outcomes; either half may be missing.
type Result struct {
	Upload          *media.UploadResult `json:"upload,omitempty"`
	UploadError     *Failure            `json:"upload_error,omitempty"`
	Extraction      *extraction.Result  `json:"extraction,omitempty"`
	ExtractionError *Failure            `json:"extraction_error,omitempty"`
	Draft           *drafts.Draft       `json:"draft,omitempty"`
}

// Service uploads and extracts one image at the same time.
type Service interface {
	Scan(ctx context.Context, img types.ImageFile, mode extraction.Mode) (*Result, error)
}

type service struct {
	uploads   media.Service
	extractor extraction.Service
	drafts    drafts.Service
	logg      *logger.Logger
	currency  string
}

// NewService wires a scan service. Drafts are optional; without them the
// staged records are only returned.
func NewService(uploads media.Service, extractor extraction.Service, ds drafts.Service, logg *logger.Logger, defaultCurrency string) (Service, error) {
	if uploads == nil {
		return nil, fmt.Errorf("media service required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extraction service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{uploads: uploads, extractor: extractor, drafts: ds, logg: logg, currency: defaultCurrency}, nil
}

// Scan runs upload and extraction concurrently. Neither half cancels the
// other. An error is returned only when both fail.
func (s *service) Scan(ctx context.Context, img types.ImageFile, mode extraction.Mode) (*Result, error) {
	var (
		g          errgroup.Group
		upload     *media.UploadResult
		extracted  *extraction.Result
		uploadErr  error
		extractErr error
	)
	g.Go(func() error {
		upload, uploadErr = guard(func() (*media.UploadResult, error) { return s.uploads.Upload(ctx, img) })
		return nil
	})
	g.Go(func() error {
		extracted, extractErr = guard(func() (*extraction.Result, error) { return s.extractor.Extract(ctx, img, mode) })
		return nil
	})
	_ = g.Wait()

	res := &Result{Upload: upload, Extraction: extracted}
	if uploadErr != nil {
		res.UploadError = failure(uploadErr)
	}
	if extractErr != nil {
		res.ExtractionError = failure(extractErr)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"upload_ok":     uploadErr == nil,
		"extraction_ok": extractErr == nil,
	})
	if uploadErr != nil && extractErr != nil {
		s.logg.Warn(ctx, "scan failed")
		return res, extractErr
	}

	session := staging.NewSession(s.currency)
	image := staging.Image{Name: img.Name, MIMEType: img.MIMEType, Size: len(img.Data), Source: img.Source}
	if upload != nil {
		image.ImageURL = upload.ImageURL
		image.ObjectPath = upload.Path
	}
	session.Accept(image)
	if upload != nil {
		session.SetLocation(upload.Location)
	}
	if extracted != nil {
		session.Extracted(extracted.RawContent, extracted.Records)
		res.Draft = s.saveDraft(ctx, session)
	}

	s.logg.Info(ctx, "scan completed")
	return res, nil
}

func (s *service) saveDraft(ctx context.Context, session *staging.Session) *drafts.Draft {
	if s.drafts == nil {
		return nil
	}
	d, err := s.drafts.Create(ctx, drafts.CreateInput{
		Records:    session.Editor.Records(),
		ImageURL:   session.ImageURL(),
		Location:   session.Location,
		RawContent: session.RawResult,
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "draft not stored")
		return nil
	}
	return d
}

func guard[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.Recovered(r)
		}
	}()
	return fn()
}

func failure(err error) *Failure {
	typed := pkgerrors.Ensure(err, pkgerrors.CodeInternal, "unexpected failure")
	f := &Failure{Code: typed.Code(), Message: typed.PublicMessage()}
	if pkgerrors.MetadataFor(typed.Code()).DetailsAllowed {
		f.Details = typed.Details()
	}
	return f
}
