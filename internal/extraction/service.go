package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdkp/gdkp-backend/internal/normalize"
	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/imaging"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/metrics"
	"github.com/gdkp/gdkp-backend/pkg/ocrspace"
	"github.com/gdkp/gdkp-backend/pkg/types"
	"github.com/gdkp/gdkp-backend/pkg/vision"
)

// Mode selects the recognition backend.
type Mode string

const (
	ModeVision Mode = "vision"
	ModeOCR    Mode = "ocr"
)

// ParseMode maps a request value to a Mode; empty means vision.
func ParseMode(v string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(v))) {
	case "", ModeVision:
		return ModeVision, nil
	case ModeOCR:
		return ModeOCR, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeInvalidInput, fmt.Sprintf("unknown mode %q", v))
	}
}

// Result is a successful extraction.
type Result struct {
	Records    []types.Record `json:"records"`
	RawContent string         `json:"raw_content"`
	Mode       Mode           `json:"mode"`
	Provider   string         `json:"provider"`
	Compressed bool           `json:"compressed"`
}

// Service runs compress, recognize and normalize for one image.
// It never persists anything.
type Service interface {
	Extract(ctx context.Context, img types.ImageFile, mode Mode) (*Result, error)
}

type ocrReader interface {
	ParseImage(ctx context.Context, data []byte, fileName string) (string, error)
}

// Options tunes compression and defaults.
type Options struct {
	Compression     imaging.Options
	DefaultCurrency string
	MaxImageBytes   int64
}

type service struct {
	vision  vision.Client
	ocr     ocrReader
	metrics *metrics.PipelineMetrics
	logg    *logger.Logger
	opts    Options
}

// NewService constructs an extraction service. The OCR reader is optional.
func NewService(client vision.Client, ocr ocrReader, m *metrics.PipelineMetrics, logg *logger.Logger, opts Options) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("vision client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{vision: client, ocr: ocr, metrics: m, logg: logg, opts: opts}, nil
}

func (s *service) Extract(ctx context.Context, img types.ImageFile, mode Mode) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := pkgerrors.Recovered(r)
			s.logg.Error(ctx, "extraction panicked", perr)
			result, err = nil, perr
		}
	}()

	if len(img.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "image is required")
	}
	if s.opts.MaxImageBytes > 0 && int64(len(img.Data)) > s.opts.MaxImageBytes {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput,
			fmt.Sprintf("image exceeds the %d MB limit", s.opts.MaxImageBytes>>20))
	}
	if mode == "" {
		mode = ModeVision
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"mode": string(mode), "image_bytes": len(img.Data)})

	compressed := s.compress(ctx, img)

	switch mode {
	case ModeOCR:
		return s.extractOCR(ctx, compressed)
	case ModeVision:
		return s.extractVision(ctx, compressed)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, fmt.Sprintf("unknown mode %q", mode))
	}
}

type compressedImage struct {
	types.ImageFile
	compressed bool
}

func (s *service) compress(ctx context.Context, img types.ImageFile) compressedImage {
	start := time.Now()
	res := imaging.Compress(img.Data, img.MIMEType, s.opts.Compression)
	s.metrics.ObserveDuration(metrics.StageCompress, "", time.Since(start))
	s.metrics.IncSuccess(metrics.StageCompress)
	if res.Compressed {
		s.logg.Debug(s.logg.WithFields(s.logg.WithStage(ctx, metrics.StageCompress), map[string]any{
			"original_bytes":   len(img.Data),
			"compressed_bytes": len(res.Data),
		}), "image compressed")
	}
	out := img
	out.Data = res.Data
	out.MIMEType = res.MIMEType
	return compressedImage{ImageFile: out, compressed: res.Compressed}
}

func (s *service) extractVision(ctx context.Context, img compressedImage) (*Result, error) {
	provider := s.vision.Provider()
	ctx = s.logg.WithField(s.logg.WithStage(ctx, metrics.StageVision), "provider", provider)

	start := time.Now()
	resp, err := s.vision.Extract(ctx, vision.Image{Data: img.Data, MIMEType: img.MIMEType})
	s.metrics.ObserveDuration(metrics.StageVision, provider, time.Since(start))
	if err != nil {
		s.metrics.IncFailure(metrics.StageVision, string(pkgerrors.CodeAI))
		s.logg.Error(ctx, "vision request failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeAI, err, "vision request failed")
	}
	s.metrics.IncSuccess(metrics.StageVision)
	s.metrics.AddTokens(provider, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	records, err := normalize.Normalize(resp.Text, s.opts.DefaultCurrency)
	if err != nil {
		return nil, s.parseFailure(ctx, resp.Text, err)
	}
	s.metrics.IncSuccess(metrics.StageNormalize)

	return &Result{
		Records:    records,
		RawContent: resp.Text,
		Mode:       ModeVision,
		Provider:   provider,
		Compressed: img.compressed,
	}, nil
}

func (s *service) extractOCR(ctx context.Context, img compressedImage) (*Result, error) {
	if s.ocr == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "ocr mode is not enabled")
	}
	ctx = s.logg.WithField(s.logg.WithStage(ctx, metrics.StageOCR), "provider", "ocrspace")

	start := time.Now()
	text, err := s.ocr.ParseImage(ctx, img.Data, fmt.Sprintf("upload.%s", img.Ext()))
	s.metrics.ObserveDuration(metrics.StageOCR, "ocrspace", time.Since(start))
	if errors.Is(err, ocrspace.ErrNoText) {
		s.metrics.IncFailure(metrics.StageOCR, string(pkgerrors.CodeProcessing))
		return nil, pkgerrors.Wrap(pkgerrors.CodeProcessing, err, "no text found in the image")
	}
	if err != nil {
		s.metrics.IncFailure(metrics.StageOCR, string(pkgerrors.CodeAI))
		s.logg.Error(ctx, "ocr request failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeAI, err, "ocr request failed")
	}
	s.metrics.IncSuccess(metrics.StageOCR)

	rec, ok := ParseOCRText(text, s.opts.DefaultCurrency)
	if !ok {
		return nil, s.parseFailure(ctx, text, fmt.Errorf("no product name in ocr text"))
	}
	s.metrics.IncSuccess(metrics.StageNormalize)

	return &Result{
		Records:    []types.Record{rec},
		RawContent: text,
		Mode:       ModeOCR,
		Provider:   "ocrspace",
		Compressed: img.compressed,
	}, nil
}

func (s *service) parseFailure(ctx context.Context, raw string, cause error) error {
	s.metrics.IncFailure(metrics.StageNormalize, string(pkgerrors.CodeProcessing))
	ctx = s.logg.WithStage(ctx, metrics.StageNormalize)
	s.logg.Warn(s.logg.WithField(ctx, "raw_content", raw), "model output could not be parsed")
	return pkgerrors.Wrap(pkgerrors.CodeProcessing, cause, "Failed to parse response").
		WithDetails(map[string]any{"raw_content": raw})
}
