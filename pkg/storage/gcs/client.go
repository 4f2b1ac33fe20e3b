package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/gdkp/gdkp-backend/pkg/config"
	"github.com/gdkp/gdkp-backend/pkg/logger"
)

const (
	scope          = "https://www.googleapis.com/auth/devstorage.read_write"
	pingTimeout    = 5 * time.Second
	requestTimeout = 30 * time.Second
	errorBodyLimit = 2048
)

// Pinger is satisfied by anything that can report bucket reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client uploads objects through the GCS JSON API.
type Client struct {
	http          *resty.Client
	bucket        string
	publicBaseURL string
	tokens        oauth2.TokenSource
}

// Object describes a stored object.
type Object struct {
	Bucket      string
	Name        string
	ContentType string
	Size        int64
	URL         string
}

// NewClient resolves credentials and verifies the bucket is reachable.
// Credentials come from inline JSON, a credentials file, or application
// default credentials, in that order. Anonymous skips auth entirely.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	client, err := newClient(ctx, cfg, gcp)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", client.bucket), "gcs client initialized")
	}
	return client, nil
}

func newClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	var tokens oauth2.TokenSource
	if !cfg.Anonymous {
		ts, err := tokenSource(ctx, gcp)
		if err != nil {
			return nil, err
		}
		tokens = oauth2.ReuseTokenSource(nil, ts)
	}

	apiBase := strings.TrimRight(cfg.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = "https://storage.googleapis.com"
	}
	publicBase := strings.TrimRight(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		publicBase = apiBase
	}

	return &Client{
		http:          resty.New().SetBaseURL(apiBase).SetTimeout(requestTimeout),
		bucket:        cfg.BucketName,
		publicBaseURL: publicBase,
		tokens:        tokens,
	}, nil
}

func tokenSource(ctx context.Context, gcp config.GCPConfig) (oauth2.TokenSource, error) {
	switch {
	case gcp.CredentialsJSON != "":
		creds, err := google.CredentialsFromJSON(ctx, []byte(gcp.CredentialsJSON), scope)
		if err != nil {
			return nil, fmt.Errorf("parsing service account credentials: %w", err)
		}
		return creds.TokenSource, nil
	case gcp.ApplicationCredentials != "":
		raw, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, raw, scope)
		if err != nil {
			return nil, fmt.Errorf("parsing credentials file: %w", err)
		}
		return creds.TokenSource, nil
	default:
		creds, err := google.FindDefaultCredentials(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("finding default credentials: %w", err)
		}
		return creds.TokenSource, nil
	}
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// PublicURL is the browser-facing URL of an object in the bucket.
func (c *Client) PublicURL(object string) string {
	segments := strings.Split(strings.TrimLeft(object, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, url.PathEscape(c.bucket), strings.Join(segments, "/"))
}

// Upload writes data as a single media upload and returns the stored object.
func (c *Client) Upload(ctx context.Context, object, contentType string, data []byte) (*Object, error) {
	if c == nil {
		return nil, errors.New("gcs client not initialized")
	}
	object = strings.TrimLeft(object, "/")
	if object == "" {
		return nil, errors.New("object name is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var meta struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
		Size        string `json:"size"`
	}
	resp, err := req.
		SetHeader("Content-Type", contentType).
		SetQueryParam("uploadType", "media").
		SetQueryParam("name", object).
		SetBody(data).
		SetResult(&meta).
		Post(fmt.Sprintf("/upload/storage/v1/b/%s/o", url.PathEscape(c.bucket)))
	if err != nil {
		return nil, fmt.Errorf("gcs upload: %w", err)
	}
	if err := statusError("gcs upload", resp); err != nil {
		return nil, err
	}

	name := object
	if meta.Name != "" {
		name = meta.Name
	}
	return &Object{
		Bucket:      c.bucket,
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		URL:         c.PublicURL(name),
	}, nil
}

// Delete removes an object. Missing objects are not an error.
func (c *Client) Delete(ctx context.Context, object string) error {
	if c == nil {
		return errors.New("gcs client not initialized")
	}
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.Delete(fmt.Sprintf("/storage/v1/b/%s/o/%s",
		url.PathEscape(c.bucket), url.PathEscape(strings.TrimLeft(object, "/"))))
	if err != nil {
		return fmt.Errorf("gcs delete: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	return statusError("gcs delete", resp)
}

// Ping lists at most one object, which requires storage.objects.list.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.
		SetQueryParam("maxResults", "1").
		SetHeader("Accept", "application/json").
		Get(fmt.Sprintf("/storage/v1/b/%s/o", url.PathEscape(c.bucket)))
	if err != nil {
		return err
	}
	return statusError("gcs object check", resp)
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	req := c.http.R().SetContext(ctx)
	if c.tokens == nil {
		return req, nil
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("gcs token: %w", err)
	}
	return req.SetAuthToken(tok.AccessToken), nil
}

func statusError(op string, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	body := strings.TrimSpace(resp.String())
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	if body != "" {
		return fmt.Errorf("%s failed: %s: %s", op, resp.Status(), body)
	}
	return fmt.Errorf("%s failed: %s", op, resp.Status())
}
