// internal/clients/api_client.go
package clients

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"storefront/internal/config"
)

const maxResponseSize = 8 << 20

// TokenSource yields the bearer token for the active session. An empty token
// means the request goes out unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Option customises an APIClient.
type Option func(*APIClient)

// WithHTTPClient replaces the underlying HTTP client. The client's transport
// is used as is, without tracing instrumentation.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *APIClient) {
		c.httpClient = hc
	}
}

// APIClient talks JSON to the remote catalog service.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *logrus.Logger
	debug      bool
	timeout    time.Duration
	maxTries   uint
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	tracer     trace.Tracer
	requests   metric.Int64Counter
}

// NewAPIClient creates a client for cfg.API.BaseURL. tokens may be nil.
func NewAPIClient(cfg *config.Config, tokens TokenSource, logger *logrus.Logger, opts ...Option) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimRight(cfg.API.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens:   tokens,
		logger:   logger,
		debug:    cfg.App.Debug,
		timeout:  cfg.API.RequestTimeout,
		maxTries: uint(cfg.API.RetryMaxAttempts),
		limiter:  rate.NewLimiter(rate.Inf, 0),
		tracer:   otel.Tracer("storefront/clients"),
	}
	if cfg.API.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.API.RateLimit), cfg.API.RateBurst)
	}
	if c.maxTries == 0 {
		c.maxTries = 1
	}

	for _, opt := range opts {
		opt(c)
	}

	threshold := uint32(cfg.API.BreakerFailures)
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "storefront-api",
		MaxRequests: 1,
		Timeout:     cfg.API.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	counter, err := otel.Meter("storefront/clients").Int64Counter(
		"storefront.client.requests",
		metric.WithDescription("Requests sent to the remote catalog service"),
	)
	if err != nil {
		logger.WithError(err).Warn("request counter unavailable")
	}
	c.requests = counter

	return c
}

// BaseURL returns the service root requests are resolved against.
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// Get decodes the response of GET path into out.
func (c *APIClient) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out.
func (c *APIClient) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *APIClient) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Patch sends body as JSON and decodes the response into out.
func (c *APIClient) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues DELETE path. An empty response body is a successful null result.
func (c *APIClient) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do performs one logical call. GETs are retried on transient failures;
// every other method is attempted exactly once. An empty response body leaves
// out untouched.
func (c *APIClient) Do(ctx context.Context, method, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "api."+strings.ToLower(method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("api.path", path),
		),
	)
	defer span.End()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tries := uint(1)
	if method == http.MethodGet {
		tries = c.maxTries
	}

	attempt := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.roundTrip(ctx, method, path, payload)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrCircuitOpen, err))
			}
			if !isRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			c.logger.WithError(err).WithFields(logrus.Fields{
				"method": method,
				"path":   path,
			}).Debug("retrying request")
			return nil, err
		}
		return res.([]byte), nil
	}

	data, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(tries),
	)
	c.count(ctx, method, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *APIClient) roundTrip(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")
	req.Header.Set("X-Request-ID", uuid.NewString())

	token := c.bearer(ctx)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.debug {
		c.logRequest(req, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("read response body: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	return data, nil
}

func (c *APIClient) bearer(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("could not read session token, sending request unauthenticated")
		return ""
	}
	return token
}

func (c *APIClient) logRequest(req *http.Request, token string) {
	fields := logrus.Fields{
		"url":       req.URL.String(),
		"method":    req.Method,
		"has_token": token != "",
		"request":   req.Header.Get("X-Request-ID"),
	}
	if token != "" {
		fields["token_start"] = tokenPrefix(token)
	}
	c.logger.WithFields(fields).Debug("API request")
}

func (c *APIClient) count(ctx context.Context, method string, err error) {
	if c.requests == nil {
		return
	}
	c.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("outcome", outcome(err)),
	))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "2xx"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	}
	status := StatusCode(err)
	if status == 0 {
		return "network"
	}
	return fmt.Sprintf("%dxx", status/100)
}

func tokenPrefix(token string) string {
	if len(token) <= 20 {
		return token[:len(token)/2] + "..."
	}
	return token[:20] + "..."
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(io.LimitReader(r, maxResponseSize))
}
