package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gdkp/gdkp-backend/internal/normalize"
	product "github.com/gdkp/gdkp-backend/internal/products"
	"github.com/gdkp/gdkp-backend/internal/staging"
	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/redis"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

const defaultTTL = 24 * time.Hour

// Draft is a staged batch kept between requests.
type Draft struct {
	ID         string          `json:"id"`
	Records    []types.Record  `json:"records"`
	ImageURL   string          `json:"image_url"`
	Location   *types.Location `json:"location,omitempty"`
	RawContent string          `json:"raw_content,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CreateInput seeds a new draft, typically from an extraction result.
type CreateInput struct {
	Records    []types.Record
	ImageURL   string
	Location   *types.Location
	RawContent string
}

// Op mutates the staging session rebuilt from a draft.
type Op func(*staging.Session) error

// Service persists staging sessions so edits survive a page reload.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Draft, error)
	Get(ctx context.Context, id string) (*Draft, error)
	Apply(ctx context.Context, id string, op Op) (*Draft, error)
	Delete(ctx context.Context, id string) error
	Submit(ctx context.Context, id string) (*product.SaveResult, error)
}

type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	DraftKey(id string) string
}

type saver interface {
	Save(ctx context.Context, input product.SaveInput) (*product.SaveResult, error)
}

// Options configures draft lifetime and defaults.
type Options struct {
	TTL             time.Duration
	DefaultCurrency string
	Now             func() time.Time
}

type service struct {
	store    store
	products saver
	logg     *logger.Logger
	opts     Options
}

// NewService constructs the drafts service.
func NewService(st store, products saver, logg *logger.Logger, opts Options) (Service, error) {
	if st == nil {
		return nil, fmt.Errorf("draft store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{store: st, products: products, logg: logg, opts: opts}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Draft, error) {
	session := staging.NewSession(s.opts.DefaultCurrency)
	session.Accept(staging.Image{ImageURL: strings.TrimSpace(input.ImageURL)})
	session.Extracted(input.RawContent, normalize.Records(input.Records, s.opts.DefaultCurrency))
	session.SetLocation(input.Location)

	now := s.opts.Now().UTC()
	d := &Draft{ID: uuid.NewString(), CreatedAt: now}
	s.fromSession(d, session)
	if err := s.put(ctx, d); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"draft_id": d.ID, "records": len(d.Records)}), "draft created")
	return d, nil
}

func (s *service) Get(ctx context.Context, id string) (*Draft, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "draft not found")
	}
	raw, err := s.store.Get(ctx, s.store.DraftKey(id))
	if redis.IsMissing(err) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "draft not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading draft failed")
	}
	var d Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "draft payload corrupt")
	}
	return &d, nil
}

// Apply runs op against the draft and stores the result. A failing op
// leaves the stored draft untouched.
func (s *service) Apply(ctx context.Context, id string, op Op) (*Draft, error) {
	if op == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "operation is required")
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	session := s.toSession(d)
	if err := op(session); err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeInvalidInput, "draft operation failed")
	}
	s.fromSession(d, session)
	if err := s.put(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "draft not found")
	}
	n, err := s.store.Del(ctx, s.store.DraftKey(id))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting draft failed")
	}
	if n == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "draft not found")
	}
	return nil
}

// Submit validates the draft, saves it as products and removes it.
func (s *service) Submit(ctx context.Context, id string) (*product.SaveResult, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	session := s.toSession(d)
	if err := session.Editor.Validate(); err != nil {
		return nil, err
	}

	res, err := s.products.Save(ctx, product.SaveInput{
		Records:  session.Editor.Records(),
		ImageURL: session.ImageURL(),
		Location: session.Location,
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"draft_id": id, "saved": res.Count})
	if _, err := s.store.Del(ctx, s.store.DraftKey(id)); err != nil {
		// The rows are saved; the draft will expire on its own.
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "draft cleanup after submit failed")
	}
	s.logg.Info(ctx, "draft submitted")
	return res, nil
}

func (s *service) toSession(d *Draft) *staging.Session {
	session := staging.NewSession(s.opts.DefaultCurrency)
	session.Accept(staging.Image{ImageURL: d.ImageURL})
	session.Extracted(d.RawContent, d.Records)
	session.SetLocation(d.Location)
	return session
}

func (s *service) fromSession(d *Draft, session *staging.Session) {
	d.Records = session.Editor.Records()
	if d.Records == nil {
		d.Records = []types.Record{}
	}
	d.ImageURL = session.ImageURL()
	d.Location = session.Location
	d.RawContent = session.RawResult
	d.UpdatedAt = s.opts.Now().UTC()
}

func (s *service) put(ctx context.Context, d *Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding draft failed")
	}
	if err := s.store.Set(ctx, s.store.DraftKey(d.ID), payload, s.opts.TTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing draft failed")
	}
	return nil
}
