package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gdkp/gdkp-backend/api/responses"
	"github.com/gdkp/gdkp-backend/api/validators"
	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/maps"
)

// PlacesClient is the subset of the maps client used for store selection.
type PlacesClient interface {
	Autocomplete(ctx context.Context, req maps.AutocompleteRequest) ([]maps.AutocompleteSuggestion, error)
	ResolvePlace(ctx context.Context, placeID string) (*maps.Place, error)
}

func PlacesAutocomplete(client PlacesClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "places lookup not configured"))
			return
		}

		input, err := validators.RequiredQuery(r, "input", maxQueryLen)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req := maps.AutocompleteRequest{
			Input:        input,
			LanguageCode: validators.SanitizeString(r.URL.Query().Get("language"), 16),
		}
		if region := validators.SanitizeString(r.URL.Query().Get("region"), 8); region != "" {
			req.IncludedRegionCodes = []string{strings.ToLower(region)}
		}

		suggestions, err := client.Autocomplete(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if suggestions == nil {
			suggestions = []maps.AutocompleteSuggestion{}
		}

		responses.WriteSuccess(w, suggestions)
	}
}

func PlaceDetails(client PlacesClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "places lookup not configured"))
			return
		}

		place, err := client.ResolvePlace(r.Context(), chi.URLParam(r, "placeId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, place)
	}
}
