// Package immich is a client for the parts of the Immich server API the
// metadata sync reads from.
package immich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Client defaults.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultRetries  = 3
	DefaultPageSize = 200
	MaxPageSize     = 500
)

// apiPrefixes are tried in order by Detect.
var apiPrefixes = []string{"api", ""}

// Client is an Immich API client authenticated with an API key.
type Client struct {
	baseURL    *url.URL
	prefix     string
	apiKey     string
	httpClient *http.Client
	retries    uint64
	retryWait  time.Duration
	captureDir string
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d > 0 {
			c.httpClient.Timeout = d
		}
		return nil
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) Option {
	return func(c *Client) error {
		if n >= 0 {
			c.retries = uint64(n)
		}
		return nil
	}
}

// WithRetryWait sets the initial backoff interval.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) error {
		c.retryWait = d
		return nil
	}
}

// WithCaptureDir saves every JSON response into dir.
func WithCaptureDir(dir string) Option {
	return func(c *Client) error {
		return c.SetCaptureDir(dir)
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) error {
		c.logger = l
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc != nil {
			c.httpClient = hc
		}
		return nil
	}
}

// NewClient creates a client. The API prefix defaults to "/api" until
// Detect finds out otherwise.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("immich URL is empty")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("immich API key is empty")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid Immich URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid Immich URL %q: scheme must be http or https", baseURL)
	}
	// A URL that already ends in /api is used as is.
	if strings.HasSuffix(parsed.Path, "/api") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/api")
	}
	c := &Client{
		baseURL:    parsed,
		prefix:     apiPrefixes[0],
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		retries:    DefaultRetries,
		retryWait:  500 * time.Millisecond,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// resolveURL builds a full URL from the base URL, the API prefix and the
// endpoint. A query string in the endpoint is kept.
func (c *Client) resolveURL(endpoint string) string {
	segments := []string{}
	if c.prefix != "" {
		segments = append(segments, c.prefix)
	}
	pathPart, query, hasQuery := strings.Cut(endpoint, "?")
	segments = append(segments, pathPart)
	result := c.baseURL.JoinPath(segments...)
	if hasQuery {
		result.RawQuery = query
	}
	return result.String()
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if c.retryWait > 0 {
		exp.InitialInterval = c.retryWait
	}
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, c.retries), ctx)
}

// SetCaptureDir enables API response capturing to the specified directory.
// Pass an empty string to disable capturing.
func (c *Client) SetCaptureDir(dir string) error {
	if dir == "" {
		c.captureDir = ""
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	c.captureDir = dir
	return nil
}

// captureResponse saves the response body to a file if capturing is enabled.
func (c *Client) captureResponse(endpoint string, body []byte) {
	if c.captureDir == "" {
		return
	}
	name, _, _ := strings.Cut(endpoint, "?")
	name = strings.TrimPrefix(strings.ReplaceAll(name, "/", "_"), "_")
	name = fmt.Sprintf("%s_%s.json", name, time.Now().Format("20060102_150405.000"))
	path := filepath.Join(c.captureDir, name)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err == nil {
		body = pretty.Bytes()
	}
	if err := os.WriteFile(path, body, 0600); err != nil {
		c.logger.Warn().Err(err).Str("file", path).Msg("could not capture response")
	}
}

// Detect finds the working API prefix by pinging with and without "/api".
func (c *Client) Detect(ctx context.Context) error {
	var errs []error
	for _, prefix := range apiPrefixes {
		c.prefix = prefix
		err := c.Ping(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("prefix %q: %w", prefix, err))
	}
	c.prefix = apiPrefixes[0]
	return fmt.Errorf("could not reach Immich API: %w", errors.Join(errs...))
}

// Prefix returns the API prefix currently in use.
func (c *Client) Prefix() string {
	return c.prefix
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := doGetJSON[struct {
		Res string `json:"res"`
	}](ctx, c, "server/ping")
	if err != nil {
		return err
	}
	if resp.Res != "pong" {
		return fmt.Errorf("unexpected ping response %q", resp.Res)
	}
	return nil
}

// Version returns the server version.
func (c *Client) Version(ctx context.Context) (*ServerVersion, error) {
	return doGetJSON[ServerVersion](ctx, c, "server/version")
}
