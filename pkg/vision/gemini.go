package vision

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type GeminiOptions struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// GeminiClient uses the Gemini API with an inline image part.
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

func NewGemini(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &GeminiClient{client: client, model: model, maxTokens: int32(maxTokens)}, nil
}

func (g *GeminiClient) Provider() string {
	return "gemini"
}

func (g *GeminiClient) Extract(ctx context.Context, img Image) (*Response, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(Prompt),
		{InlineData: &genai.Blob{Data: img.Data, MIMEType: img.mime()}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens:  g.maxTokens,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, &Error{Provider: g.Provider(), Err: err}
	}
	if len(result.Candidates) == 0 {
		detail := ""
		if result.PromptFeedback != nil {
			detail = string(result.PromptFeedback.BlockReason)
		}
		return nil, &Error{Provider: g.Provider(), Detail: detail, Err: ErrEmptyResponse}
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Provider: g.Provider(), Err: ErrEmptyResponse}
	}

	resp := &Response{Text: text, Model: g.model}
	if result.UsageMetadata != nil {
		resp.Usage = Usage{
			InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	return resp, nil
}
