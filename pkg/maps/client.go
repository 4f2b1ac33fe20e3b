package maps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
)

const (
	defaultBaseURL        = "https://places.googleapis.com/v1"
	autocompleteFieldMask = "suggestions.placePrediction.placeId,suggestions.placePrediction.text"
	placeResolveFieldMask = "id,displayName,formattedAddress,location"
	nearbyFieldMask       = "places.id,places.displayName,places.formattedAddress,places.location"
	errorBodyLimit        = 1024
	defaultNearbyRadius   = 150.0
	maxNearbyRadius       = 50000.0
)

var errAPIKeyRequired = errors.New("google maps api key is required")

// Client wraps the Google Places (New) endpoints used to label where a
// price was seen.
type Client struct {
	http    *resty.Client
	baseURL string
	apiKey  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient swaps the transport, mostly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = resty.NewWithClient(client)
		}
	}
}

// WithBaseURL overrides the Places base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// NewClient builds the Places client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{apiKey: key, baseURL: defaultBaseURL}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.http == nil {
		client.http = resty.New()
	}
	client.http.SetTimeout(10*time.Second).
		SetHeader("X-Goog-Api-Key", key)

	return client, nil
}

// AutocompleteRequest is the payload sent to places:autocomplete.
type AutocompleteRequest struct {
	Input               string   `json:"input"`
	IncludedRegionCodes []string `json:"includedRegionCodes,omitempty"`
	LanguageCode        string   `json:"languageCode,omitempty"`
}

// AutocompleteSuggestion is one place prediction.
type AutocompleteSuggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

// Place is a resolved store or venue.
type Place struct {
	PlaceID string  `json:"place_id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type apiPlace struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string `json:"formattedAddress"`
	Location         struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
}

func (p apiPlace) toPlace() *Place {
	return &Place{
		PlaceID: p.ID,
		Name:    p.DisplayName.Text,
		Address: p.FormattedAddress,
		Lat:     p.Location.Latitude,
		Lng:     p.Location.Longitude,
	}
}

// Autocomplete queries suggested places for partial input.
func (c *Client) Autocomplete(ctx context.Context, req AutocompleteRequest) ([]AutocompleteSuggestion, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	if strings.TrimSpace(req.Input) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "autocomplete input is required")
	}

	var out struct {
		Suggestions []struct {
			Prediction struct {
				PlaceID string `json:"placeId"`
				Text    struct {
					Text string `json:"text"`
				} `json:"text"`
			} `json:"placePrediction"`
		} `json:"suggestions"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		ExpectContentType("application/json").
		SetHeader("X-Goog-FieldMask", autocompleteFieldMask).
		SetBody(req).
		SetResult(&out).
		Post(c.baseURL + "/places:autocomplete")
	if err := check(resp, err, "autocomplete"); err != nil {
		return nil, err
	}

	suggestions := make([]AutocompleteSuggestion, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if s.Prediction.PlaceID == "" {
			continue
		}
		suggestions = append(suggestions, AutocompleteSuggestion{
			PlaceID:     s.Prediction.PlaceID,
			Description: s.Prediction.Text.Text,
		})
	}
	return suggestions, nil
}

// ResolvePlace fetches name, address and coordinates for a place ID.
func (c *Client) ResolvePlace(ctx context.Context, placeID string) (*Place, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	id := strings.TrimSpace(placeID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "place ID is required")
	}

	var out apiPlace
	resp, err := c.http.R().
		SetContext(ctx).
		ExpectContentType("application/json").
		SetHeader("X-Goog-FieldMask", placeResolveFieldMask).
		SetResult(&out).
		Get(fmt.Sprintf("%s/places/%s", c.baseURL, url.PathEscape(id)))
	if err := check(resp, err, "place resolve"); err != nil {
		return nil, err
	}
	return out.toPlace(), nil
}

// Nearby returns the closest place within radius meters of the point, or
// nil when nothing is there.
func (c *Client) Nearby(ctx context.Context, lat, lng, radius float64) (*Place, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInput, "coordinates out of range")
	}
	if radius <= 0 {
		radius = defaultNearbyRadius
	}
	if radius > maxNearbyRadius {
		radius = maxNearbyRadius
	}

	body := map[string]any{
		"maxResultCount": 1,
		"rankPreference": "DISTANCE",
		"locationRestriction": map[string]any{
			"circle": map[string]any{
				"center": map[string]float64{"latitude": lat, "longitude": lng},
				"radius": radius,
			},
		},
	}
	var out struct {
		Places []apiPlace `json:"places"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		ExpectContentType("application/json").
		SetHeader("X-Goog-FieldMask", nearbyFieldMask).
		SetBody(body).
		SetResult(&out).
		Post(c.baseURL + "/places:searchNearby")
	if err := check(resp, err, "nearby search"); err != nil {
		return nil, err
	}
	if len(out.Places) == 0 {
		return nil, nil
	}
	return out.Places[0].toPlace(), nil
}

func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+" request failed")
	}
	if resp.IsSuccess() {
		return nil
	}
	msg := strings.TrimSpace(resp.String())
	if len(msg) > errorBodyLimit {
		msg = msg[:errorBodyLimit]
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency,
		fmt.Errorf("status %d: %s", resp.StatusCode(), msg), op+" request failed")
}
