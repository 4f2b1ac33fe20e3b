package media

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/exifloc"
	"github.com/gdkp/gdkp-backend/pkg/imaging"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/maps"
	"github.com/gdkp/gdkp-backend/pkg/metrics"
	"github.com/gdkp/gdkp-backend/pkg/storage/gcs"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

const objectPrefix = "product-images"

type objectStore interface {
	Upload(ctx context.Context, object, contentType string, data []byte) (*gcs.Object, error)
}

type placeFinder interface {
	Nearby(ctx context.Context, lat, lng, radius float64) (*maps.Place, error)
}

// Service stores product images and derives an optional store location.
type Service interface {
	Upload(ctx context.Context, img types.ImageFile) (*UploadResult, error)
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	Path         string          `json:"path"`
	ImageURL     string          `json:"image_url"`
	LocationHint string          `json:"location_hint,omitempty"`
	Location     *types.Location `json:"location,omitempty"`
}

// Options tunes the upload service.
type Options struct {
	NearbyRadius float64
	Compression  imaging.Options
	Now          func() time.Time
}

type service struct {
	store   objectStore
	hinter  exifloc.Hinter
	places  placeFinder
	metrics *metrics.PipelineMetrics
	logg    *logger.Logger
	opts    Options
}

// NewService wires an upload service. The hinter and place finder are optional.
func NewService(store objectStore, hinter exifloc.Hinter, places placeFinder, m *metrics.PipelineMetrics, logg *logger.Logger, opts Options) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{store: store, hinter: hinter, places: places, metrics: m, logg: logg, opts: opts}, nil
}

// ObjectPath names an upload by its millisecond timestamp.
func ObjectPath(now time.Time, img types.ImageFile) string {
	return fmt.Sprintf("%s/%d.%s", objectPrefix, now.UnixMilli(), img.Ext())
}

func (s *service) Upload(ctx context.Context, img types.ImageFile) (*UploadResult, error) {
	if len(img.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "image is required")
	}

	// Compression re-encodes as JPEG and drops EXIF, so the hint is read first.
	hint, hinted := "", false
	if s.hinter != nil {
		hint, hinted = s.hinter.LocationHint(img.Data)
	}

	start := time.Now()
	compressed := imaging.Compress(img.Data, img.MIMEType, s.opts.Compression)
	s.metrics.ObserveDuration(metrics.StageCompress, "", time.Since(start))
	s.metrics.IncSuccess(metrics.StageCompress)
	stored := img
	stored.Data, stored.MIMEType = compressed.Data, compressed.MIMEType

	path := ObjectPath(s.opts.Now(), stored)
	ctx = s.logg.WithStage(ctx, metrics.StageUpload)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"object":         path,
		"source":         img.Source,
		"original_bytes": len(img.Data),
		"stored_bytes":   len(stored.Data),
	})

	start = time.Now()
	obj, err := s.store.Upload(ctx, path, stored.MIMEType, stored.Data)
	s.metrics.ObserveDuration(metrics.StageUpload, "gcs", time.Since(start))
	if err != nil {
		s.metrics.IncFailure(metrics.StageUpload, string(pkgerrors.CodeStorage))
		s.logg.Error(ctx, "image upload failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "image upload failed")
	}
	s.metrics.IncSuccess(metrics.StageUpload)

	res := &UploadResult{Path: obj.Name, ImageURL: obj.URL}
	if !hinted {
		return res, nil
	}
	res.LocationHint = hint
	res.Location = s.resolve(ctx, hint)
	return res, nil
}

// resolve turns a coordinate hint into the nearest place. Failures only log.
func (s *service) resolve(ctx context.Context, hint string) *types.Location {
	if s.places == nil {
		return nil
	}
	coords, err := types.ParseCoordinates(hint)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "location_hint", hint), "location hint unparsable")
		return nil
	}
	place, err := s.places.Nearby(ctx, coords.Lat, coords.Lng, s.opts.NearbyRadius)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"location_hint": hint, "error": err.Error()}), "nearby place lookup failed")
		return nil
	}
	if place == nil {
		return nil
	}
	loc := &types.Location{Name: place.Name, Address: place.Address}
	if loc.IsZero() {
		return nil
	}
	return loc
}
