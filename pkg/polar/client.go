// Package polar is a thin typed client for the Polar.sh API. It covers the
// surface this module uses: products, checkouts, customers, customer portal
// sessions, subscriptions and orders. Calls are not retried; transient and
// permanent failures are reported alike.
package polar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// ServerProduction selects the live Polar API.
	ServerProduction = "production"

	// ServerSandbox selects the Polar sandbox.
	ServerSandbox = "sandbox"

	productionBaseURL = "https://api.polar.sh"
	sandboxBaseURL    = "https://sandbox-api.polar.sh"

	defaultHTTPTimeout = 10 * time.Second

	// defaultListLimit is applied when a list call passes no limit.
	defaultListLimit = 10
)

var (
	// ErrAccessTokenMissing is returned when no access token is configured.
	// This is a fatal configuration error, surfaced synchronously from the
	// constructor rather than on first use.
	ErrAccessTokenMissing = errors.New("polar access token is not set")

	// ErrInvalidServer is returned for an unrecognized server selector.
	ErrInvalidServer = errors.New("polar server must be \"production\" or \"sandbox\"")
)

// Metrics records outbound API calls. billing.Metrics satisfies it.
type Metrics interface {
	RecordAPICall(endpoint, status string)
	RecordAPICallDuration(endpoint string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordAPICall(_, _ string)                    {}
func (noopMetrics) RecordAPICallDuration(_ string, _ time.Duration) {}

// Config holds client configuration. It is validated once by NewClient;
// nothing reads the process environment afterwards.
type Config struct {
	// AccessToken authenticates every request (required).
	AccessToken string

	// Server selects the API environment: ServerProduction (default) or
	// ServerSandbox.
	Server string

	// BaseURL overrides the server-derived base URL. Used in tests.
	BaseURL string

	// HTTPClient is optional. If nil, a default client with a 10s timeout
	// is used.
	HTTPClient *http.Client

	// Metrics is optional; if nil, API call metrics are silently dropped.
	Metrics Metrics
}

// FromEnv builds a Config from POLAR_ACCESS_TOKEN and POLAR_SERVER.
func FromEnv() (Config, error) {
	token := os.Getenv("POLAR_ACCESS_TOKEN")
	if token == "" {
		return Config{}, fmt.Errorf("%w: POLAR_ACCESS_TOKEN environment variable is empty", ErrAccessTokenMissing)
	}
	return Config{
		AccessToken: token,
		Server:      os.Getenv("POLAR_SERVER"),
	}, nil
}

// Client calls the Polar API.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	metrics     Metrics
}

// NewClient creates a Client from config.
func NewClient(config Config) (*Client, error) {
	accessToken := strings.TrimSpace(config.AccessToken)
	if accessToken == "" {
		return nil, ErrAccessTokenMissing
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		switch config.Server {
		case "", ServerProduction:
			baseURL = productionBaseURL
		case ServerSandbox:
			baseURL = sandboxBaseURL
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidServer, config.Server)
		}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
		metrics:     metrics,
	}, nil
}

// APIError is a non-2xx response from the Polar API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("polar API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("polar API error: status %d: %s", e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type apiErrorBody struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

// do performs one API request. endpoint is the logical path used for metrics
// (no ids interpolated); path is the concrete request path.
func (c *Client) do(ctx context.Context, method, endpoint, path string, query url.Values, body, out interface{}) error {
	startTime := time.Now()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPICall(endpoint, "error")
		c.metrics.RecordAPICallDuration(endpoint, time.Since(startTime))
		return fmt.Errorf("polar request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.metrics.RecordAPICall(endpoint, strconv.Itoa(resp.StatusCode))
	c.metrics.RecordAPICallDuration(endpoint, time.Since(startTime))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(respBody),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// errorDetail extracts a human-readable message from an error response.
// Polar reports validation errors under "detail", which may be a string or
// a structured list.
func errorDetail(body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return strings.TrimSpace(string(body))
	}
	if parsed.Error != "" {
		return parsed.Error
	}
	if len(parsed.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(parsed.Detail, &s); err == nil {
		return s
	}
	return string(parsed.Detail)
}

func listQuery(limit int) url.Values {
	if limit <= 0 {
		limit = defaultListLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return q
}
