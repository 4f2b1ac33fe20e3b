package controllers

import (
	"net/http"

	"github.com/gdkp/gdkp-backend/api/responses"
	"github.com/gdkp/gdkp-backend/api/validators"
	product "github.com/gdkp/gdkp-backend/internal/products"
	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/money"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

const maxQueryLen = 200

// SaveProducts persists a confirmed batch, one row per record.
func SaveProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload saveProductsRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Save(r.Context(), payload.toSaveInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// SearchProducts matches product names case-insensitively.
func SearchProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		query, err := validators.RequiredQuery(r, "query", maxQueryLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Search(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

func RecentProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		rows, err := svc.Recent(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

type recordPayload struct {
	Text        string      `json:"text" validate:"max=4000"`
	ProductName string      `json:"productName" validate:"max=500"`
	Price       money.Price `json:"price"`
	Currency    string      `json:"currency" validate:"max=16"`
}

func (p recordPayload) toRecord() types.Record {
	return types.Record{
		Text:        p.Text,
		ProductName: p.ProductName,
		Price:       p.Price,
		Currency:    p.Currency,
	}
}

type locationPayload struct {
	Name    string `json:"name" validate:"max=300"`
	Address string `json:"address" validate:"max=500"`
}

func (p *locationPayload) toLocation() *types.Location {
	if p == nil {
		return nil
	}
	return &types.Location{Name: p.Name, Address: p.Address}
}

type saveProductsRequest struct {
	Records  []recordPayload  `json:"records" validate:"required,min=1,max=200,dive"`
	ImageURL string           `json:"image_url" validate:"omitempty,url"`
	Location *locationPayload `json:"location"`
}

func (p saveProductsRequest) toSaveInput() product.SaveInput {
	records := make([]types.Record, 0, len(p.Records))
	for _, rec := range p.Records {
		records = append(records, rec.toRecord())
	}
	return product.SaveInput{
		Records:  records,
		ImageURL: p.ImageURL,
		Location: p.Location.toLocation(),
	}
}
