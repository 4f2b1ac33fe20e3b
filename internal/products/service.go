package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gdkp/gdkp-backend/internal/normalize"
	"github.com/gdkp/gdkp-backend/internal/staging"
	"github.com/gdkp/gdkp-backend/pkg/db/models"
	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/metrics"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

const defaultResultLimit = 20

// Service saves staged batches and answers catalog queries.
type Service interface {
	Save(ctx context.Context, input SaveInput) (*SaveResult, error)
	Search(ctx context.Context, query string) ([]ProductDTO, error)
	Recent(ctx context.Context) ([]ProductDTO, error)
}

// SaveInput is one confirmed batch. Every row shares the image and location.
type SaveInput struct {
	Records  []types.Record
	ImageURL string
	Location *types.Location
}

// SaveResult reports what was written.
type SaveResult struct {
	Count int         `json:"count"`
	IDs   []uuid.UUID `json:"ids"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Options configures defaults for the catalog.
type Options struct {
	DefaultCurrency string
	ResultLimit     int
}

type service struct {
	repo    *Repository
	tx      txRunner
	metrics *metrics.PipelineMetrics
	logg    *logger.Logger
	opts    Options
}

// NewService constructs the product service.
func NewService(repo *Repository, tx txRunner, m *metrics.PipelineMetrics, logg *logger.Logger, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = defaultResultLimit
	}
	return &service{repo: repo, tx: tx, metrics: m, logg: logg, opts: opts}, nil
}

func (s *service) Save(ctx context.Context, input SaveInput) (*SaveResult, error) {
	records := normalize.Records(input.Records, s.opts.DefaultCurrency)
	if err := staging.ValidateRecords(records); err != nil {
		return nil, err
	}

	var location *types.Location
	if input.Location != nil && !input.Location.IsZero() {
		loc := types.Location{
			Name:    strings.TrimSpace(input.Location.Name),
			Address: strings.TrimSpace(input.Location.Address),
		}
		location = &loc
	}
	imageURL := strings.TrimSpace(input.ImageURL)

	rows := make([]models.Product, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.Product{
			Data: models.ProductData{
				Name:     rec.ProductName,
				Price:    rec.Price,
				Currency: rec.Currency,
				OCRText:  rec.Text,
				ImageURL: imageURL,
				Location: location,
			},
		})
	}

	ctx = s.logg.WithStage(ctx, metrics.StageSave)
	ctx = s.logg.WithFields(ctx, map[string]any{"records": len(rows), "image_url": imageURL})
	start := time.Now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateBatch(ctx, rows)
	})
	s.metrics.ObserveDuration(metrics.StageSave, "", time.Since(start))
	if err != nil {
		s.metrics.IncFailure(metrics.StageSave, string(pkgerrors.CodeDatabase))
		s.logg.Error(ctx, "saving products failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "saving products failed")
	}
	s.metrics.IncSuccess(metrics.StageSave)
	s.logg.Info(ctx, "products saved")

	// ids are assigned by the model's create hook and read back from rows.
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return &SaveResult{Count: len(rows), IDs: ids}, nil
}

func (s *service) Search(ctx context.Context, query string) ([]ProductDTO, error) {
	term := strings.TrimSpace(query)
	if term == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "search query is required")
	}
	rows, err := s.repo.SearchByName(ctx, term, s.opts.ResultLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "searching products failed")
	}
	return toDTOs(rows), nil
}

func (s *service) Recent(ctx context.Context) ([]ProductDTO, error) {
	rows, err := s.repo.ListRecent(ctx, s.opts.ResultLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "listing products failed")
	}
	return toDTOs(rows), nil
}
