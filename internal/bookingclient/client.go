// Package bookingclient talks JSON over HTTP to the booking service.
//
// Every call gets its own timeout. Non-2xx answers surface as *HTTPError,
// timeouts wrap ErrTimeout, and bodies that are not JSON are returned as text.
package bookingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"payment-processor/config"
	"payment-processor/internal/util"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 8 * time.Second

	internalSecretHeader = "X-Internal-Secret"
)

// ErrTimeout is wrapped by every error caused by the per-call deadline
var ErrTimeout = errors.New("booking service request timed out")

// HTTPError is returned for any non-2xx response
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s %s", e.StatusCode, e.Method, e.URL)
}

// Response is a successful booking service answer. Value holds the decoded
// JSON document, or the raw text when the body is not valid JSON.
type Response struct {
	StatusCode int
	Raw        []byte
	Value      any
}

type Client struct {
	baseURL        string
	internalSecret string
	jwtSecret      string
	timeout        time.Duration
	httpClient     *http.Client
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a booking service client
func NewClient(cfg config.BookingConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		internalSecret: cfg.InternalSecret,
		jwtSecret:      cfg.JWTSecret,
		timeout:        timeout,
		httpClient:     &http.Client{},
		limiter:        rate.NewLimiter(limit, burst),
		logger:         util.GetLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Request performs one call against the booking service. body is sent as
// JSON when non-nil.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	ctx, span := util.StartSpan(ctx, "BookingClient.Request")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + path
	endpoint := endpointLabel(path)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.transportError(ctx, method, url, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		util.BookingRequestDuration.WithLabelValues(method, endpoint, "error").Observe(time.Since(start).Seconds())
		return nil, c.transportError(ctx, method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	util.BookingRequestDuration.WithLabelValues(method, endpoint, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.transportError(ctx, method, url, err)
	}

	value := parseBody(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Booking service returned error status",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil, &HTTPError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: value}
	}

	return &Response{StatusCode: resp.StatusCode, Raw: raw, Value: value}, nil
}

func (c *Client) transportError(ctx context.Context, method, url string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s after %s", ErrTimeout, method, url, c.timeout)
	}
	return fmt.Errorf("%s %s: %w", method, url, err)
}

func parseBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// endpointLabel keeps metric cardinality bounded by replacing the trailing
// resource id, e.g. /api/v1/seats/A1 -> /api/v1/seats/:id.
func endpointLabel(path string) string {
	segments := strings.Split(path, "/")
	if len(segments) > 4 {
		segments[len(segments)-1] = ":id"
	}
	return strings.Join(segments, "/")
}
