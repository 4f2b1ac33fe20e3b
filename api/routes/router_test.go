package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdkp/gdkp-backend/api/controllers"
	"github.com/gdkp/gdkp-backend/internal/drafts"
	"github.com/gdkp/gdkp-backend/internal/extraction"
	product "github.com/gdkp/gdkp-backend/internal/products"
	"github.com/gdkp/gdkp-backend/internal/staging"
	"github.com/gdkp/gdkp-backend/pkg/config"
	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/metrics"
	"github.com/gdkp/gdkp-backend/pkg/money"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubExtraction struct {
	result *extraction.Result
	err    error
	mode   extraction.Mode
	img    types.ImageFile
}

func (s *stubExtraction) Extract(_ context.Context, img types.ImageFile, mode extraction.Mode) (*extraction.Result, error) {
	s.img = img
	s.mode = mode
	return s.result, s.err
}

type stubProducts struct {
	saved   *product.SaveInput
	queries []string
}

func (s *stubProducts) Save(_ context.Context, input product.SaveInput) (*product.SaveResult, error) {
	s.saved = &input
	return &product.SaveResult{Count: len(input.Records)}, nil
}

func (s *stubProducts) Search(_ context.Context, query string) ([]product.ProductDTO, error) {
	s.queries = append(s.queries, query)
	return []product.ProductDTO{}, nil
}

func (s *stubProducts) Recent(context.Context) ([]product.ProductDTO, error) {
	return []product.ProductDTO{{Name: "Milk", DisplayPrice: "$1.99"}}, nil
}

// stubDrafts keeps a single draft in memory and runs ops against a real
// staging session.
type stubDrafts struct {
	draft *drafts.Draft
}

func (s *stubDrafts) Create(_ context.Context, input drafts.CreateInput) (*drafts.Draft, error) {
	s.draft = &drafts.Draft{ID: uuid.NewString(), Records: input.Records, ImageURL: input.ImageURL, Location: input.Location}
	return s.draft, nil
}

func (s *stubDrafts) Get(_ context.Context, id string) (*drafts.Draft, error) {
	if s.draft == nil || s.draft.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "draft not found")
	}
	return s.draft, nil
}

func (s *stubDrafts) Apply(ctx context.Context, id string, op drafts.Op) (*drafts.Draft, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	session := staging.NewSession("USD")
	session.Extracted("", d.Records)
	session.SetLocation(d.Location)
	if err := op(session); err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeInvalidInput, "draft operation failed")
	}
	d.Records = session.Editor.Records()
	d.Location = session.Location
	return d, nil
}

func (s *stubDrafts) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	s.draft = nil
	return nil
}

func (s *stubDrafts) Submit(ctx context.Context, id string) (*product.SaveResult, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.draft = nil
	return &product.SaveResult{Count: len(d.Records)}, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestRouter(t *testing.T, d Deps) http.Handler {
	t.Helper()
	if d.Config == nil {
		d.Config = &config.Config{
			App:   config.AppConfig{Env: "test"},
			Media: config.MediaConfig{MaxUploadMB: 1},
		}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return NewRouter(d)
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func multipartImage(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "tag.png")
	require.NoError(t, err)
	_, err = part.Write(pngBuf.Bytes())
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestHealthRoutes(t *testing.T) {
	h := newTestRouter(t, Deps{Readiness: map[string]controllers.Pinger{
		"database": stubPinger{},
		"redis":    nil,
	}})

	rec, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Gdkp-Env"))

	rec, env := do(t, h, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var ready struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ready))
	assert.Equal(t, "ok", ready.Checks["database"])
	assert.Equal(t, "disabled", ready.Checks["redis"])

	h = newTestRouter(t, Deps{Readiness: map[string]controllers.Pinger{
		"storage": stubPinger{err: errors.New("bucket unreachable")},
	}})
	rec, env = do(t, h, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(pkgerrors.CodeDependency), env.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newTestRouter(t, Deps{Gatherer: reg, HTTP: metrics.NewHTTPMetrics(reg)})

	do(t, h, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/health/live",status="200"} 1`)
}

func TestExtractRoute(t *testing.T) {
	stub := &stubExtraction{result: &extraction.Result{
		Records: []types.Record{{ProductName: "Milk", Price: money.PriceFromFloat(1.99), Currency: "USD"}},
		Mode:    extraction.ModeOCR,
	}}
	h := newTestRouter(t, Deps{Extraction: stub})

	body, ct := multipartImage(t, map[string]string{"mode": "ocr", "source": "camera"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", ct)
	rec, env := do(t, h, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, extraction.ModeOCR, stub.mode)
	assert.Equal(t, "image/png", stub.img.MIMEType)

	var result extraction.Result
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Milk", result.Records[0].ProductName)
}

func TestExtractRouteRejectsUnknownMode(t *testing.T) {
	h := newTestRouter(t, Deps{Extraction: &stubExtraction{}})

	body, ct := multipartImage(t, map[string]string{"mode": "telepathy"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", ct)
	rec, env := do(t, h, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(pkgerrors.CodeInvalidInput), env.Error.Code)
}

func TestExtractRouteReturnsRawContentOnParseFailure(t *testing.T) {
	stub := &stubExtraction{err: pkgerrors.New(pkgerrors.CodeProcessing, "Failed to parse AI response").
		WithDetails(map[string]any{"raw_content": "I see a banana"})}
	h := newTestRouter(t, Deps{Extraction: stub})

	body, ct := multipartImage(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", ct)
	rec, env := do(t, h, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PROCESSING_ERROR", env.Error.Code)
	assert.Equal(t, "I see a banana", env.Error.Details["raw_content"])
}

func TestExtractRouteRequiresImage(t *testing.T) {
	h := newTestRouter(t, Deps{Extraction: &stubExtraction{}})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("mode", "vision"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, env := do(t, h, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "image is required", env.Error.Message)
}

func TestSaveProductsRoute(t *testing.T) {
	stub := &stubProducts{}
	h := newTestRouter(t, Deps{Products: stub})

	payload := `{"records":[{"text":"MILK 1.99","productName":"Milk","price":1.99,"currency":"USD"},{"productName":"Bread","price":null,"currency":"USD"}],
		"image_url":"https://storage.googleapis.com/b/product-images/1.jpg","location":{"name":"Corner Shop","address":"1 Main St"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec, env := do(t, h, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result product.SaveResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.Count)

	require.NotNil(t, stub.saved)
	assert.Equal(t, "Corner Shop", stub.saved.Location.Name)
	assert.False(t, stub.saved.Records[1].Price.Known())
}

func TestSaveProductsRouteRejectsEmptyBatch(t *testing.T) {
	stub := &stubProducts{}
	h := newTestRouter(t, Deps{Products: stub})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"records":[]}`))
	rec, env := do(t, h, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "records")
	assert.Nil(t, stub.saved)
}

func TestSearchProductsRoute(t *testing.T) {
	stub := &stubProducts{}
	h := newTestRouter(t, Deps{Products: stub})

	rec, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/products/search?query=%20%20", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.queries)

	rec, env := do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/products/search?query=+Milk+", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Milk"}, stub.queries)
	assert.JSONEq(t, `[]`, string(env.Data))

	rec, env = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/products/recent", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"display_price":"$1.99"`)
}

func TestDraftRoutes(t *testing.T) {
	stub := &stubDrafts{}
	h := newTestRouter(t, Deps{Drafts: stub})

	create := `{"records":[{"productName":"Milk","price":1.99,"currency":"USD"}],"image_url":"https://example.com/a.jpg"}`
	rec, env := do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/drafts", strings.NewReader(create)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d drafts.Draft
	require.NoError(t, json.Unmarshal(env.Data, &d))
	base := "/api/v1/drafts/" + d.ID

	rec, _ = do(t, h, httptest.NewRequest(http.MethodPost, base+"/records", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, stub.draft.Records, 2)
	assert.Equal(t, "USD", stub.draft.Records[1].Currency)

	rec, _ = do(t, h, httptest.NewRequest(http.MethodPatch, base+"/records/1", strings.NewReader(`{"productName":"Eggs","price":"3.49","currency":"eur"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Eggs", stub.draft.Records[1].ProductName)
	assert.Equal(t, "3.49", stub.draft.Records[1].Price.String())
	assert.Equal(t, "EUR", stub.draft.Records[1].Currency)

	rec, _ = do(t, h, httptest.NewRequest(http.MethodPatch, base+"/records/0", strings.NewReader(`{"price":null}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, stub.draft.Records[0].Price.Known())
	assert.Equal(t, "Milk", stub.draft.Records[0].ProductName)

	rec, env = do(t, h, httptest.NewRequest(http.MethodDelete, base+"/records/7", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)

	rec, _ = do(t, h, httptest.NewRequest(http.MethodDelete, base+"/records/0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.draft.Records, 1)

	rec, _ = do(t, h, httptest.NewRequest(http.MethodPut, base+"/location", strings.NewReader(`{"name":"Market","address":""}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.draft.Location)
	assert.Equal(t, "Market", stub.draft.Location.Name)

	rec, env = do(t, h, httptest.NewRequest(http.MethodPost, base+"/submit", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"count":1,"ids":null}`, string(env.Data))

	rec, env = do(t, h, httptest.NewRequest(http.MethodGet, base, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestPlacesRouteWithoutClient(t *testing.T) {
	h := newTestRouter(t, Deps{})

	rec, env := do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/places/autocomplete?input=lidl", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DEPENDENCY_ERROR", env.Error.Code)
}
