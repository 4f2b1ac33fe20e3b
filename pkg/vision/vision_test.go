package vision

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdkp/gdkp-backend/pkg/config"
)

var testImage = Image{Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}, MIMEType: "image/jpeg"}

func TestImageDataURI(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,/9j/2Q==", testImage.DataURI())
	assert.True(t, strings.HasPrefix(Image{Data: []byte("x")}.DataURI(), "data:image/jpeg;base64,"))
}

func TestOpenAIExtract(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "vision-model", body["model"])
		assert.EqualValues(t, 256, body["max_tokens"])
		raw, _ := json.Marshal(body["messages"])
		assert.Contains(t, string(raw), "data:image/jpeg;base64,")
		assert.Contains(t, string(raw), "ISO 4217")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "vision-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": `[{"title":"Milk","price":1.2,"currency":"EUR"}]`},
			}},
			"usage": map[string]any{"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18},
		})
	}))
	defer ts.Close()

	client := NewOpenAI(OpenAIOptions{APIKey: "test-key", BaseURL: ts.URL, Model: "vision-model", MaxTokens: 256})
	resp, err := client.Extract(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"Milk","price":1.2,"currency":"EUR"}]`, resp.Text)
	assert.Equal(t, int64(11), resp.Usage.InputTokens)
	assert.Equal(t, int64(7), resp.Usage.OutputTokens)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIExtractDoesNotRetryFailures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"message":"over capacity","type":"server_error"}}`)
	}))
	defer ts.Close()

	client := NewOpenAI(OpenAIOptions{APIKey: "k", BaseURL: ts.URL})
	_, err := client.Extract(context.Background(), testImage)
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "openai", verr.Provider)
	assert.Equal(t, http.StatusServiceUnavailable, verr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIExtractEmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","model":"m","choices":[]}`)
	}))
	defer ts.Close()

	_, err := NewOpenAI(OpenAIOptions{APIKey: "k", BaseURL: ts.URL}).Extract(context.Background(), testImage)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}

func TestAnthropicExtract(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/messages")
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		raw, _ := json.Marshal(body["messages"])
		assert.Contains(t, string(raw), `"media_type":"image/jpeg"`)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": `{"title":"Хліб","price":28,"currency":"UAH"}`}},
			"usage":       map[string]any{"input_tokens": 20, "output_tokens": 9},
		})
	}))
	defer ts.Close()

	client := NewAnthropic(AnthropicOptions{APIKey: "test-key", BaseURL: ts.URL, Model: "claude-test"})
	resp, err := client.Extract(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Хліб","price":28,"currency":"UAH"}`, resp.Text)
	assert.Equal(t, "claude-test", resp.Model)
	assert.Equal(t, int64(20), resp.Usage.InputTokens)
}

func TestAnthropicExtractSurfacesStatus(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer ts.Close()

	_, err := NewAnthropic(AnthropicOptions{APIKey: "bad", BaseURL: ts.URL}).Extract(context.Background(), testImage)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, http.StatusUnauthorized, verr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGeminiExtract(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		raw, _ := json.Marshal(body["contents"])
		assert.Contains(t, string(raw), "inlineData")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": `[{"title":"Jabłka","price":4.99,"currency":"PLN"}]`}},
				},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 30, "candidatesTokenCount": 12, "totalTokenCount": 42},
		})
	}))
	defer ts.Close()

	client, err := NewGemini(context.Background(), GeminiOptions{APIKey: "k", BaseURL: ts.URL + "/", Model: "gemini-test"})
	require.NoError(t, err)

	resp, err := client.Extract(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"Jabłka","price":4.99,"currency":"PLN"}]`, resp.Text)
	assert.Equal(t, int64(30), resp.Usage.InputTokens)
	assert.Equal(t, int64(12), resp.Usage.OutputTokens)
}

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, config.VisionConfig{Provider: "openai"})
	require.Error(t, err, "api key is required")

	c, err := New(ctx, config.VisionConfig{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Provider())

	c, err = New(ctx, config.VisionConfig{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Provider())

	c, err = New(ctx, config.VisionConfig{Provider: "gemini", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", c.Provider())

	_, err = New(ctx, config.VisionConfig{Provider: "ollama", APIKey: "k"})
	require.Error(t, err)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Provider: "openai", StatusCode: 429, Err: errors.New("rate limited")}
	assert.Equal(t, "vision: openai request failed (status 429): rate limited", err.Error())
}
