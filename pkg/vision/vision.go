package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gdkp/gdkp-backend/pkg/config"
)

// Prompt is the fixed instruction sent with every image.
const Prompt = `You read grocery receipts and shelf price tags.
Return ONLY a JSON value describing the products visible in the image:
- one product: {"title": string, "price": number | null, "currency": string}
- several products: [{"title": ..., "price": ..., "currency": ...}, ...]
Rules:
- "title" is the product name exactly as printed, in its original language.
- "price" is a plain number using a dot as decimal separator, or null when not readable.
- "currency" is an ISO 4217 code; infer it from symbols, language or store if it is not printed.
Do not add prose, explanations or markdown code fences.`

// Image is the payload sent to a provider.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURI renders the image as a base64 data URI.
func (i Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", i.mime(), base64.StdEncoding.EncodeToString(i.Data))
}

func (i Image) mime() string {
	if i.MIMEType == "" {
		return "image/jpeg"
	}
	return i.MIMEType
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is the raw assistant text of one extraction call.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Client sends one image plus Prompt to a hosted vision model.
// Implementations make exactly one request and never retry.
type Client interface {
	Extract(ctx context.Context, img Image) (*Response, error)
	Provider() string
}

// Error is a failed provider call. Detail is for logs only.
type Error struct {
	Provider   string
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("vision: %s request failed", e.Provider)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrEmptyResponse is returned when the provider answers without any text.
var ErrEmptyResponse = errors.New("empty model response")

// New builds the client selected by cfg.Provider.
func New(ctx context.Context, cfg config.VisionConfig) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("vision api key required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", config.VisionProviderOpenAI:
		return NewOpenAI(OpenAIOptions{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}), nil
	case config.VisionProviderGemini:
		return NewGemini(ctx, GeminiOptions{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
	case config.VisionProviderAnthropic:
		return NewAnthropic(AnthropicOptions{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.Provider)
	}
}
