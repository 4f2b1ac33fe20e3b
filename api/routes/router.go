package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gdkp/gdkp-backend/api/controllers"
	"github.com/gdkp/gdkp-backend/api/middleware"
	"github.com/gdkp/gdkp-backend/internal/drafts"
	"github.com/gdkp/gdkp-backend/internal/extraction"
	"github.com/gdkp/gdkp-backend/internal/media"
	product "github.com/gdkp/gdkp-backend/internal/products"
	"github.com/gdkp/gdkp-backend/internal/scan"
	"github.com/gdkp/gdkp-backend/pkg/config"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/metrics"
)

// Deps bundles everything the router hands to controllers. Optional
// services may be nil; their routes then answer with an error envelope.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	Gatherer   prometheus.Gatherer
	HTTP       *metrics.HTTPMetrics
	Readiness  map[string]controllers.Pinger
	Extraction extraction.Service
	Uploads    media.Service
	Scans      scan.Service
	Products   product.Service
	Drafts     drafts.Service
	Places     controllers.PlacesClient
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger
	maxUpload := cfg.Media.MaxUploadBytes()

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTP),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, d.Readiness))
	})

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extract", controllers.Extract(d.Extraction, maxUpload, logg))
		r.Post("/uploads", controllers.Upload(d.Uploads, maxUpload, logg))
		r.Post("/scans", controllers.Scan(d.Scans, maxUpload, logg))

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.SaveProducts(d.Products, logg))
			r.Get("/search", controllers.SearchProducts(d.Products, logg))
			r.Get("/recent", controllers.RecentProducts(d.Products, logg))
		})

		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", controllers.CreateDraft(d.Drafts, logg))
			r.Route("/{draftId}", func(r chi.Router) {
				r.Get("/", controllers.GetDraft(d.Drafts, logg))
				r.Delete("/", controllers.DeleteDraft(d.Drafts, logg))
				r.Put("/location", controllers.SetDraftLocation(d.Drafts, logg))
				r.Post("/records", controllers.AppendDraftRecord(d.Drafts, logg))
				r.Patch("/records/{index}", controllers.PatchDraftRecord(d.Drafts, logg))
				r.Delete("/records/{index}", controllers.RemoveDraftRecord(d.Drafts, logg))
				r.Post("/submit", controllers.SubmitDraft(d.Drafts, logg))
			})
		})

		r.Route("/places", func(r chi.Router) {
			r.Get("/autocomplete", controllers.PlacesAutocomplete(d.Places, logg))
			r.Get("/{placeId}", controllers.PlaceDetails(d.Places, logg))
		})
	})

	return r
}
