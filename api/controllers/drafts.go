package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gdkp/gdkp-backend/api/responses"
	"github.com/gdkp/gdkp-backend/api/validators"
	"github.com/gdkp/gdkp-backend/internal/drafts"
	"github.com/gdkp/gdkp-backend/internal/staging"
	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/money"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

const (
	draftIDParam     = "draftId"
	recordIndexParam = "index"
)

type createDraftRequest struct {
	Records    []recordPayload  `json:"records" validate:"max=200,dive"`
	ImageURL   string           `json:"image_url" validate:"omitempty,url"`
	Location   *locationPayload `json:"location"`
	RawContent string           `json:"raw_content" validate:"max=20000"`
}

// patchRecordRequest distinguishes an absent price from an explicit null,
// which clears the price.
type patchRecordRequest struct {
	ProductName *string         `json:"productName" validate:"omitempty,max=500"`
	Price       json.RawMessage `json:"price"`
	Currency    *string         `json:"currency" validate:"omitempty,max=16"`
}

func (p patchRecordRequest) toPatch() (staging.Patch, error) {
	patch := staging.Patch{ProductName: p.ProductName, Currency: p.Currency}
	if len(p.Price) > 0 {
		var price money.Price
		if err := json.Unmarshal(p.Price, &price); err != nil {
			return staging.Patch{}, pkgerrors.Wrap(pkgerrors.CodeInvalidInput, err, "invalid price").
				WithDetails(map[string]any{"field": "price"})
		}
		patch.Price = &price
	}
	return patch, nil
}

func CreateDraft(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drafts unavailable"))
			return
		}

		var payload createDraftRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records := make([]types.Record, 0, len(payload.Records))
		for _, rec := range payload.Records {
			records = append(records, rec.toRecord())
		}
		draft, err := svc.Create(r.Context(), drafts.CreateInput{
			Records:    records,
			ImageURL:   payload.ImageURL,
			Location:   payload.Location.toLocation(),
			RawContent: payload.RawContent,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, draft)
	}
}

func GetDraft(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drafts unavailable"))
			return
		}

		draft, err := svc.Get(r.Context(), chi.URLParam(r, draftIDParam))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, draft)
	}
}

func DeleteDraft(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drafts unavailable"))
			return
		}

		id := chi.URLParam(r, draftIDParam)
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"id": id, "deleted": true})
	}
}

func AppendDraftRecord(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return applyDraftOp(svc, logg, http.StatusCreated, func(*http.Request) (drafts.Op, error) {
		return drafts.AppendBlank(), nil
	})
}

func PatchDraftRecord(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload patchRecordRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		applyDraftOp(svc, logg, http.StatusOK, func(r *http.Request) (drafts.Op, error) {
			index, err := validators.PathIndex(r, recordIndexParam)
			if err != nil {
				return nil, err
			}
			patch, err := payload.toPatch()
			if err != nil {
				return nil, err
			}
			return drafts.EditRecord(index, patch), nil
		})(w, r)
	}
}

func RemoveDraftRecord(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return applyDraftOp(svc, logg, http.StatusOK, func(r *http.Request) (drafts.Op, error) {
		index, err := validators.PathIndex(r, recordIndexParam)
		if err != nil {
			return nil, err
		}
		return drafts.RemoveRecord(index), nil
	})
}

// SetDraftLocation replaces the store location; blank fields clear it.
func SetDraftLocation(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload locationPayload
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		applyDraftOp(svc, logg, http.StatusOK, func(*http.Request) (drafts.Op, error) {
			return drafts.SetLocation(payload.toLocation()), nil
		})(w, r)
	}
}

func SubmitDraft(svc drafts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drafts unavailable"))
			return
		}

		result, err := svc.Submit(r.Context(), chi.URLParam(r, draftIDParam))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func applyDraftOp(svc drafts.Service, logg *logger.Logger, status int, build func(*http.Request) (drafts.Op, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "drafts unavailable"))
			return
		}

		op, err := build(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draft, err := svc.Apply(r.Context(), chi.URLParam(r, draftIDParam), op)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, status, draft)
	}
}
