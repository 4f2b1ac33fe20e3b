package extraction

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/imaging"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/metrics"
	"github.com/gdkp/gdkp-backend/pkg/ocrspace"
	"github.com/gdkp/gdkp-backend/pkg/types"
	"github.com/gdkp/gdkp-backend/pkg/vision"
)

type stubVision struct {
	text  string
	err   error
	panic bool
	seen  []vision.Image
}

func (s *stubVision) Provider() string { return "stub" }

func (s *stubVision) Extract(_ context.Context, img vision.Image) (*vision.Response, error) {
	s.seen = append(s.seen, img)
	if s.panic {
		panic("provider exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &vision.Response{Text: s.text, Usage: vision.Usage{InputTokens: 10, OutputTokens: 5}}, nil
}

type stubOCR struct {
	text string
	err  error
}

func (s stubOCR) ParseImage(context.Context, []byte, string) (string, error) {
	return s.text, s.err
}

func pngImage(t *testing.T, w, h int) types.ImageFile {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return types.ImageFile{Name: "tag.png", MIMEType: "image/png", Data: buf.Bytes()}
}

func newTestService(t *testing.T, v vision.Client, ocr ocrReader) Service {
	t.Helper()
	svc, err := NewService(v, ocr, metrics.NewPipelineMetrics(prometheus.NewRegistry()), logger.Nop(), Options{
		Compression:     imaging.Options{MaxDimension: 64},
		DefaultCurrency: "USD",
		MaxImageBytes:   1 << 20,
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, logger.Nop(), Options{})
	require.Error(t, err)
	_, err = NewService(&stubVision{}, nil, nil, nil, Options{})
	require.Error(t, err)
}

func TestExtractCompressesBeforeVisionAndNormalizes(t *testing.T) {
	v := &stubVision{text: "```json\n[{\"title\":\"Milk\",\"price\":1.29},{\"title\":\"Bread\",\"price\":null,\"currency\":\"EUR\"}]\n```"}
	svc := newTestService(t, v, nil)

	res, err := svc.Extract(context.Background(), pngImage(t, 200, 100), "")
	require.NoError(t, err)

	require.Len(t, v.seen, 1)
	assert.Equal(t, "image/jpeg", v.seen[0].MIMEType)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(v.seen[0].Data))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)

	assert.True(t, res.Compressed)
	assert.Equal(t, ModeVision, res.Mode)
	assert.Equal(t, "stub", res.Provider)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "Milk", res.Records[0].ProductName)
	assert.Equal(t, "USD", res.Records[0].Currency)
	assert.Equal(t, "1.29", res.Records[0].Price.String())
	assert.False(t, res.Records[1].Price.Known())
	assert.Equal(t, "EUR", res.Records[1].Currency)
}

func TestExtractRejectsMissingAndOversizedImages(t *testing.T) {
	svc := newTestService(t, &stubVision{}, nil)

	_, err := svc.Extract(context.Background(), types.ImageFile{}, ModeVision)
	assert.Equal(t, pkgerrors.CodeInvalidInput, pkgerrors.As(err).Code())

	big := types.ImageFile{Data: make([]byte, 2<<20)}
	_, err = svc.Extract(context.Background(), big, ModeVision)
	assert.Equal(t, pkgerrors.CodeInvalidInput, pkgerrors.As(err).Code())
	assert.Contains(t, pkgerrors.As(err).Message(), "1 MB")
}

func TestExtractMapsProviderFailureToAIError(t *testing.T) {
	svc := newTestService(t, &stubVision{err: &vision.Error{Provider: "stub", StatusCode: 500}}, nil)

	_, err := svc.Extract(context.Background(), pngImage(t, 10, 10), ModeVision)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeAI, typed.Code())
	assert.Equal(t, pkgerrors.MessageAIFailed, typed.PublicMessage())
}

func TestExtractUnparsableKeepsRawContent(t *testing.T) {
	raw := "Sorry, I can't make out any prices."
	svc := newTestService(t, &stubVision{text: raw}, nil)

	_, err := svc.Extract(context.Background(), pngImage(t, 10, 10), ModeVision)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeProcessing, typed.Code())
	assert.Equal(t, map[string]any{"raw_content": raw}, typed.Details())
}

func TestExtractRecoversPanics(t *testing.T) {
	svc := newTestService(t, &stubVision{panic: true}, nil)

	res, err := svc.Extract(context.Background(), pngImage(t, 10, 10), ModeVision)
	assert.Nil(t, res)
	assert.Equal(t, pkgerrors.CodeProcessing, pkgerrors.As(err).Code())
}

func TestExtractPassesUndecodableImageThrough(t *testing.T) {
	v := &stubVision{text: `{"title":"Cheese","price":5}`}
	svc := newTestService(t, v, nil)

	img := types.ImageFile{MIMEType: "image/heic", Data: []byte("heic-bytes")}
	res, err := svc.Extract(context.Background(), img, ModeVision)
	require.NoError(t, err)
	assert.False(t, res.Compressed)
	assert.Equal(t, []byte("heic-bytes"), v.seen[0].Data)
	assert.Equal(t, "image/heic", v.seen[0].MIMEType)
}

func TestExtractOCRMode(t *testing.T) {
	svc := newTestService(t, &stubVision{}, stubOCR{text: "SUPER MARKET\r\nOrganic Bananas\r\n€ 1,99\r\n"})

	res, err := svc.Extract(context.Background(), pngImage(t, 10, 10), ModeOCR)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, ModeOCR, res.Mode)
	assert.Equal(t, "SUPER MARKET", res.Records[0].ProductName)
	assert.Equal(t, "1.99", res.Records[0].Price.String())
	assert.Equal(t, "EUR", res.Records[0].Currency)
}

func TestExtractOCRFailures(t *testing.T) {
	_, err := newTestService(t, &stubVision{}, nil).Extract(context.Background(), pngImage(t, 4, 4), ModeOCR)
	assert.Equal(t, pkgerrors.CodeInvalidInput, pkgerrors.As(err).Code())

	_, err = newTestService(t, &stubVision{}, stubOCR{err: ocrspace.ErrNoText}).Extract(context.Background(), pngImage(t, 4, 4), ModeOCR)
	assert.Equal(t, pkgerrors.CodeProcessing, pkgerrors.As(err).Code())

	_, err = newTestService(t, &stubVision{}, stubOCR{err: errors.New("503")}).Extract(context.Background(), pngImage(t, 4, 4), ModeOCR)
	assert.Equal(t, pkgerrors.CodeAI, pkgerrors.As(err).Code())

	_, err = newTestService(t, &stubVision{}, stubOCR{text: "3\n12"}).Extract(context.Background(), pngImage(t, 4, 4), ModeOCR)
	assert.Equal(t, pkgerrors.CodeProcessing, pkgerrors.As(err).Code())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeVision, m)
	m, err = ParseMode(" OCR ")
	require.NoError(t, err)
	assert.Equal(t, ModeOCR, m)
	_, err = ParseMode("tesseract")
	assert.Error(t, err)
}

func TestParseOCRText(t *testing.T) {
	rec, ok := ParseOCRText("4,50 zł\nMasło extra\n200g", "USD")
	require.True(t, ok)
	assert.Equal(t, "Masło extra", rec.ProductName)
	assert.Equal(t, "4.5", rec.Price.String())
	assert.Equal(t, "PLN", rec.Currency)

	rec, ok = ParseOCRText("Tea\nGreen tea 20 bags\n$3.10", "UAH")
	require.True(t, ok)
	assert.Equal(t, "Tea", rec.ProductName, "short first line is the fallback name")
	assert.Equal(t, "3.1", rec.Price.String())
	assert.Equal(t, "USD", rec.Currency)

	rec, ok = ParseOCRText("Apfel", "EUR")
	require.True(t, ok)
	assert.Equal(t, "EUR", rec.Currency)
	assert.False(t, rec.Price.Known())

	_, ok = ParseOCRText("   ", "USD")
	assert.False(t, ok)
}
