package ocrspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultEndpoint = "https://api.ocr.space/parse/image"
	// FreeAPIKey is OCR.space's public demo key.
	FreeAPIKey = "helloworld"
)

// ErrNoText is returned when OCR succeeds but finds no text.
var ErrNoText = errors.New("ocrspace: no text found in the image")

type Options struct {
	APIKey   string
	Endpoint string
	Language string
}

// Client calls the OCR.space parse endpoint.
type Client struct {
	http     *resty.Client
	endpoint string
	apiKey   string
	language string
}

func NewClient(opts Options) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		apiKey:   FreeAPIKey,
		language: "eng",
	}
	if opts.Endpoint != "" {
		c.endpoint = opts.Endpoint
	}
	if opts.APIKey != "" {
		c.apiKey = opts.APIKey
	}
	if opts.Language != "" {
		c.language = opts.Language
	}
	c.http = resty.New().
		SetDebug(false).
		SetHeader("Accept", "application/json")
	return c
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// Error is an OCR.space failure; Message comes from the provider.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ocrspace: status %d: %s", e.StatusCode, e.Message)
	}
	return "ocrspace: " + e.Message
}

// ParseImage uploads data and returns the text of the first parsed result.
func (c *Client) ParseImage(ctx context.Context, data []byte, fileName string) (string, error) {
	if fileName == "" {
		fileName = "image.jpg"
	}
	result := &parseResponse{}
	res, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", fileName, bytes.NewReader(data)).
		SetFormData(map[string]string{
			"language":          c.language,
			"isOverlayRequired": "false",
			"scale":             "true",
			"OCREngine":         "2",
			"apikey":            c.apiKey,
		}).
		SetResult(result).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("ocrspace: request failed: %w", err)
	}
	if res.IsError() {
		return "", &Error{StatusCode: res.StatusCode(), Message: strings.TrimSpace(res.String())}
	}
	if result.IsErroredOnProcessing {
		return "", &Error{Message: flattenMessage(result.ErrorMessage)}
	}
	if len(result.ParsedResults) == 0 || strings.TrimSpace(result.ParsedResults[0].ParsedText) == "" {
		return "", ErrNoText
	}
	return result.ParsedResults[0].ParsedText, nil
}

// flattenMessage accepts the string or string-array shapes OCR.space uses.
func flattenMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "processing failed"
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return strings.Join(many, "; ")
	}
	return "processing failed"
}
