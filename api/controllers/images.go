package controllers

import (
	"net/http"

	"github.com/gdkp/gdkp-backend/api/responses"
	"github.com/gdkp/gdkp-backend/internal/extraction"
	"github.com/gdkp/gdkp-backend/internal/media"
	"github.com/gdkp/gdkp-backend/internal/scan"
	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

const modeField = "mode"

// Extract runs recognition on one uploaded image and returns staged records.
// Nothing is persisted.
func Extract(svc extraction.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "extraction service unavailable"))
			return
		}

		img, mode, err := acquireWithMode(r, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"mode": string(mode), "source": img.Source, "size": len(img.Data)})
		}
		result, err := svc.Extract(ctx, *img, mode)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// Upload stores one image and returns its public URL and location hint.
func Upload(svc media.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upload service unavailable"))
			return
		}

		img, err := media.Acquire(r, media.DefaultField, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Upload(r.Context(), *img)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Scan uploads and extracts in one request. Partial results are returned
// with 200; only a double failure is an error response.
func Scan(svc scan.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan service unavailable"))
			return
		}

		img, mode, err := acquireWithMode(r, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Scan(r.Context(), *img, mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func acquireWithMode(r *http.Request, maxBytes int64) (*types.ImageFile, extraction.Mode, error) {
	img, err := media.Acquire(r, media.DefaultField, maxBytes)
	if err != nil {
		return nil, "", err
	}
	mode, err := extraction.ParseMode(r.FormValue(modeField))
	if err != nil {
		return nil, "", err
	}
	return img, mode, nil
}
