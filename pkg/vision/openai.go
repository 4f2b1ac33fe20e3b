package vision

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultOpenAIBaseURL points at Groq's OpenAI-compatible endpoint.
	DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1/"
	DefaultOpenAIModel   = "meta-llama/llama-4-scout-17b-16e-instruct"
	defaultMaxTokens     = 512
)

type OpenAIOptions struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func NewOpenAI(opts OpenAIOptions) *OpenAIClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &OpenAIClient{
		client: openai.NewClient(
			option.WithAPIKey(opts.APIKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

func (c *OpenAIClient) Provider() string {
	return "openai"
}

func (c *OpenAIClient) Extract(ctx context.Context, img Image) (*Response, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.model),
		MaxTokens: openai.Int(c.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(Prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: img.DataURI(),
				}),
			}),
		},
	})
	if err != nil {
		verr := &Error{Provider: c.Provider(), Err: err}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			verr.StatusCode = apiErr.StatusCode
		}
		return nil, verr
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Provider: c.Provider(), Err: ErrEmptyResponse}
	}
	if refusal := resp.Choices[0].Message.Refusal; refusal != "" {
		return nil, &Error{Provider: c.Provider(), Detail: refusal}
	}
	if strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &Error{Provider: c.Provider(), Err: ErrEmptyResponse}
	}

	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
