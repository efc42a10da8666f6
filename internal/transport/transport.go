// Package transport implements the shared HTTP client every provider
// adapter calls through: JSON POST/GET, SSE POST, contextual headers,
// provider-request-id extraction, Retry-After parsing, the idempotency-
// gated retry policy, and telemetry/tracing emission. It is the Go
// translation of the original core's http_client.rs, including the
// idempotency-gated retry loop and the curl-debug side effect.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/howard-nolan/ai-proxy/aiproxyerr"
	"github.com/howard-nolan/ai-proxy/model"
	"github.com/howard-nolan/ai-proxy/telemetry"
)

const (
	userAgent              = "ai-proxy/0.1"
	defaultConnectTimeout  = 5 * time.Second
	defaultRequestTimeout  = 60 * time.Second
	defaultPoolMaxIdle     = 8
	maxRetries             = 2
	retryBaseDelayProdMs   = 200
	retryBaseDelayTestMs   = 1
	retryCapMs             = 3000
	errorBodyTruncateLen   = 300
	telemetryMsgTruncate   = 200
)

var requestIDCandidates = []string{
	"x-request-id",
	"request-id",
	"x-amzn-requestid",
	"x-amz-request-id",
	"x-cdn-request-id",
}

// RequestCtx carries the correlation ids threaded through one HTTP call.
type RequestCtx struct {
	RequestID      string
	TurnID         string
	IdempotencyKey string
}

func (c RequestCtx) headers() http.Header {
	h := make(http.Header)
	if c.RequestID != "" {
		h.Set("X-Request-Id", c.RequestID)
	}
	if c.TurnID != "" {
		h.Set("X-Turn-Id", c.TurnID)
	}
	if c.IdempotencyKey != "" {
		h.Set("Idempotency-Key", c.IdempotencyKey)
	}
	return h
}

// Client is the shared HTTP client used by every provider adapter.
// Constructed once at registry build time and safe for concurrent use.
type Client struct {
	http         *http.Client
	logger       *zap.Logger
	tracer       *telemetry.Tracer
	retryBaseMs  int64
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger attaches a structured logger; defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTestRetryDelay swaps the production 200ms retry base for the 1ms
// test base named in spec §9, so retry-backoff tests stay fast.
func WithTestRetryDelay() Option {
	return func(c *Client) { c.retryBaseMs = retryBaseDelayTestMs }
}

// New builds a Client from an HTTP config. Zero values fall back to the
// defaults named in spec §6.
func New(cfg model.HTTPConfig, opts ...Option) *Client {
	connectTimeout := defaultConnectTimeout
	if cfg.ConnectTimeoutMs > 0 {
		connectTimeout = time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond
	}
	requestTimeout := defaultRequestTimeout
	if cfg.RequestTimeoutMs > 0 {
		requestTimeout = time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	}
	maxIdle := defaultPoolMaxIdle
	if cfg.PoolMaxIdlePerHost != nil {
		maxIdle = *cfg.PoolMaxIdlePerHost
	}

	dialer := &net.Dialer{Timeout: connectTimeout}
	roundTripper := &http.Transport{
		MaxIdleConnsPerHost: maxIdle,
		DialContext:         dialer.DialContext,
	}
	httpClient := &http.Client{
		Timeout:   requestTimeout,
		Transport: roundTripper,
	}

	c := &Client{
		http:        httpClient,
		logger:      zap.NewNop(),
		retryBaseMs: retryBaseDelayProdMs,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tracer = telemetry.NewTracer(c.logger)
	return c
}

func extractRequestID(h http.Header) string {
	for _, candidate := range requestIDCandidates {
		if v := h.Get(candidate); v != "" {
			return v
		}
	}
	return ""
}

// parseRetryAfter returns the numeric Retry-After value in seconds. An
// HTTP-date form is treated as absent per spec §4.3/§9 (an explicit open
// question the spec says not to guess on).
func parseRetryAfter(h http.Header) *uint64 {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return nil
	}
	secs, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil
	}
	return &secs
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func mapHTTPError(provider string, status int, retryAfter *uint64, body string) *aiproxyerr.Error {
	switch {
	case status == http.StatusTooManyRequests:
		return aiproxyerr.RateLimited(provider, retryAfter)
	case status >= 500 && status <= 599:
		return aiproxyerr.ProviderUnavailable(provider)
	default:
		return aiproxyerr.ProviderErr(provider, strconv.Itoa(status), truncate(body, errorBodyTruncateLen))
	}
}

func errorKindOf(err *aiproxyerr.Error) string {
	switch err.Kind {
	case aiproxyerr.KindProviderError:
		return err.Code
	default:
		return string(err.Kind)
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func (c *Client) sleepForRetry(ctx context.Context, attempt int, retryAfter *uint64) error {
	var delay time.Duration
	if retryAfter != nil {
		delay = time.Duration(*retryAfter) * time.Second
	} else {
		backoff := float64(c.retryBaseMs) * math.Pow(2, float64(attempt))
		if backoff > retryCapMs {
			backoff = retryCapMs
		}
		delay = time.Duration(backoff) * time.Millisecond
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) maybeDebugCurl(method, url string, body []byte, headers http.Header) {
	if os.Getenv("AIPROXY_DEBUG_HTTP") != "2" {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "curl -X %s '%s'", method, url)
	for k, vals := range headers {
		for _, v := range vals {
			if strings.EqualFold(k, "Authorization") && strings.HasPrefix(v, "Bearer ") {
				v = aiproxyerr.MaskBearer(strings.TrimPrefix(v, "Bearer "))
			}
			fmt.Fprintf(&b, " -H '%s: %s'", k, v)
		}
	}
	if len(body) > 0 {
		fmt.Fprintf(&b, " -d '%s'", string(body))
	}
	fmt.Fprintln(os.Stderr, b.String())
}

// buildRequest constructs the *http.Request shared by PostJSON/PostSSE,
// applying User-Agent, any adapter-supplied headers, and the three
// contextual headers named in spec §4.4.
func (c *Client) buildRequest(ctx context.Context, method, url string, body []byte, headers http.Header, rc RequestCtx, attempt int) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	for k, vals := range rc.headers() {
		for _, v := range vals {
			req.Header.Set(k, v)
		}
	}
	req.Header.Set("X-Retry-Attempt", strconv.Itoa(attempt))
	return req, nil
}

// PostJSON sends body as a JSON POST, decodes the response into R, and
// returns the decoded value, the provider request id (if any), and the
// observed latency in milliseconds. Retries are applied only when
// rc.IdempotencyKey is non-empty, per spec §4.4.
func PostJSON[R any](ctx context.Context, c *Client, provider, url string, body any, headers http.Header, rc RequestCtx) (R, string, uint64, error) {
	var zero R

	payload, err := json.Marshal(body)
	if err != nil {
		return zero, "", 0, aiproxyerr.Other(fmt.Errorf("marshaling request: %w", err))
	}

	ctx, finish := c.tracer.StartHTTPRequest(ctx, provider, http.MethodPost, url, rc.TurnID, rc.RequestID, rc.IdempotencyKey)

	start := time.Now()
	var lastErr error
	for attempt := 0; ; attempt++ {
		c.maybeDebugCurl(http.MethodPost, url, payload, headers)

		req, err := c.buildRequest(ctx, http.MethodPost, url, payload, headers, rc, attempt)
		if err != nil {
			lastErr = aiproxyerr.Other(err)
			break
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = aiproxyerr.ProviderUnavailable(provider)
			if rc.IdempotencyKey != "" && attempt < maxRetries {
				if sleepErr := c.sleepForRetry(ctx, attempt, nil); sleepErr != nil {
					lastErr = aiproxyerr.Other(sleepErr)
					break
				}
				continue
			}
			break
		}

		latency := uint64(time.Since(start).Milliseconds())
		providerRequestID := extractRequestID(resp.Header)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			text, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			retryAfter := parseRetryAfter(resp.Header)
			apiErr := mapHTTPError(provider, resp.StatusCode, retryAfter, string(text))

			if rc.IdempotencyKey != "" && isRetryableStatus(resp.StatusCode) && attempt < maxRetries {
				if sleepErr := c.sleepForRetry(ctx, attempt, retryAfter); sleepErr != nil {
					emitTrace(provider, rc, latency, providerRequestID, errorKindOf(apiErr), apiErr.Error())
					finish(resp.StatusCode, providerRequestID, latency, errorKindOf(apiErr), truncate(apiErr.Error(), telemetryMsgTruncate))
					return zero, "", 0, aiproxyerr.Other(sleepErr)
				}
				continue
			}

			emitTrace(provider, rc, latency, providerRequestID, errorKindOf(apiErr), apiErr.Error())
			finish(resp.StatusCode, providerRequestID, latency, errorKindOf(apiErr), truncate(apiErr.Error(), telemetryMsgTruncate))
			return zero, providerRequestID, latency, apiErr
		}

		var decoded R
		decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)
		resp.Body.Close()
		if decodeErr != nil {
			apiErr := aiproxyerr.ProviderErr(provider, strconv.Itoa(resp.StatusCode), fmt.Sprintf("json decode error: %v", decodeErr))
			emitTrace(provider, rc, latency, providerRequestID, errorKindOf(apiErr), apiErr.Error())
			finish(resp.StatusCode, providerRequestID, latency, errorKindOf(apiErr), truncate(apiErr.Error(), telemetryMsgTruncate))
			return zero, providerRequestID, latency, apiErr
		}

		emitTrace(provider, rc, latency, providerRequestID, "", "")
		finish(resp.StatusCode, providerRequestID, latency, "", "")
		return decoded, providerRequestID, latency, nil
	}

	apiErr, ok := lastErr.(*aiproxyerr.Error)
	if !ok {
		apiErr = aiproxyerr.ProviderUnavailable(provider)
	}
	latency := uint64(time.Since(start).Milliseconds())
	emitTrace(provider, rc, latency, "", errorKindOf(apiErr), apiErr.Error())
	finish(0, "", latency, errorKindOf(apiErr), truncate(apiErr.Error(), telemetryMsgTruncate))
	return zero, "", latency, apiErr
}

func emitTrace(provider string, rc RequestCtx, latency uint64, providerRequestID, errorKind, errorMessage string) {
	telemetry.Emit(telemetry.ProviderTrace{
		TurnID:            rc.TurnID,
		Provider:          provider,
		RequestID:         rc.RequestID,
		ProviderRequestID: providerRequestID,
		LatencyMs:         latency,
		ErrorKind:         errorKind,
		ErrorMessage:      truncate(errorMessage, telemetryMsgTruncate),
	})
}

// GetJSON behaves like PostJSON but issues a GET with no body. It does
// not retry: GETs aren't used on any code path requiring idempotency
// replay in this module today.
func GetJSON[R any](ctx context.Context, c *Client, provider, url string, headers http.Header, rc RequestCtx) (R, string, uint64, error) {
	var zero R
	start := time.Now()
	ctx, finish := c.tracer.StartHTTPRequest(ctx, provider, http.MethodGet, url, rc.TurnID, rc.RequestID, rc.IdempotencyKey)

	req, err := c.buildRequest(ctx, http.MethodGet, url, nil, headers, rc, 0)
	if err != nil {
		return zero, "", 0, aiproxyerr.Other(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		apiErr := aiproxyerr.ProviderUnavailable(provider)
		latency := uint64(time.Since(start).Milliseconds())
		emitTrace(provider, rc, latency, "", errorKindOf(apiErr), apiErr.Error())
		finish(0, "", latency, errorKindOf(apiErr), apiErr.Error())
		return zero, "", latency, apiErr
	}
	defer resp.Body.Close()

	latency := uint64(time.Since(start).Milliseconds())
	providerRequestID := extractRequestID(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(resp.Body)
		retryAfter := parseRetryAfter(resp.Header)
		apiErr := mapHTTPError(provider, resp.StatusCode, retryAfter, string(text))
		emitTrace(provider, rc, latency, providerRequestID, errorKindOf(apiErr), apiErr.Error())
		finish(resp.StatusCode, providerRequestID, latency, errorKindOf(apiErr), truncate(apiErr.Error(), telemetryMsgTruncate))
		return zero, providerRequestID, latency, apiErr
	}

	var decoded R
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		apiErr := aiproxyerr.ProviderErr(provider, strconv.Itoa(resp.StatusCode), fmt.Sprintf("json decode error: %v", err))
		emitTrace(provider, rc, latency, providerRequestID, errorKindOf(apiErr), apiErr.Error())
		finish(resp.StatusCode, providerRequestID, latency, errorKindOf(apiErr), truncate(apiErr.Error(), telemetryMsgTruncate))
		return zero, providerRequestID, latency, apiErr
	}
	emitTrace(provider, rc, latency, providerRequestID, "", "")
	finish(resp.StatusCode, providerRequestID, latency, "", "")
	return decoded, providerRequestID, latency, nil
}

// SSEFinish ends the "sse.stream" span opened for one stream's whole
// lifetime; call it exactly once, when the stream produces its terminal
// event, with the same values reported in the stream's terminal
// ProviderTrace.
type SSEFinish func(providerRequestID string, latencyMs uint64, errorKind string)

// PostSSE sends body as a POST expecting a text/event-stream response
// and returns the framed line stream (see sse.go), the provider request
// id, and the finisher for the "sse.stream" span spec §4.4 requires.
// Non-2xx and connection-level failures are mapped to an error and end
// the span immediately, before any streaming begins; on success the
// returned finisher must be called by whoever drains the stream.
func (c *Client) PostSSE(ctx context.Context, provider, url string, body any, headers http.Header, rc RequestCtx) (*LineStream, string, SSEFinish, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", nil, aiproxyerr.Other(fmt.Errorf("marshaling request: %w", err))
	}
	c.maybeDebugCurl(http.MethodPost, url, payload, headers)

	ctx, finish := c.tracer.StartSSEStream(ctx, provider)
	start := time.Now()

	req, err := c.buildRequest(ctx, http.MethodPost, url, payload, headers, rc, 0)
	if err != nil {
		finish("", uint64(time.Since(start).Milliseconds()), string(aiproxyerr.KindOther))
		return nil, "", nil, aiproxyerr.Other(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		apiErr := aiproxyerr.ProviderUnavailable(provider)
		emitTrace(provider, rc, uint64(time.Since(start).Milliseconds()), "", errorKindOf(apiErr), apiErr.Error())
		finish("", uint64(time.Since(start).Milliseconds()), errorKindOf(apiErr))
		return nil, "", nil, apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		text, _ := io.ReadAll(resp.Body)
		retryAfter := parseRetryAfter(resp.Header)
		apiErr := mapHTTPError(provider, resp.StatusCode, retryAfter, string(text))
		emitTrace(provider, rc, uint64(time.Since(start).Milliseconds()), extractRequestID(resp.Header), errorKindOf(apiErr), apiErr.Error())
		finish(extractRequestID(resp.Header), uint64(time.Since(start).Milliseconds()), errorKindOf(apiErr))
		return nil, "", nil, apiErr
	}

	providerRequestID := extractRequestID(resp.Header)
	return NewLineStream(resp.Body), providerRequestID, SSEFinish(finish), nil
}
