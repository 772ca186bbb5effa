package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/telemetry"
	"github.com/ggonzalez94/swapper/internal/version"
)

const maxBodyBytes = 8 << 20

// Client is the outbound JSON transport shared by every provider adapter.
// Retries are a caller policy: adapters never loop, and the default of zero
// means one attempt per request.
type Client struct {
	rc        *retryablehttp.Client
	userAgent string
	metrics   *telemetry.Metrics
	log       *logrus.Entry
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	log := telemetry.Logger("httpx")
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = timeout
	rc.RetryMax = retries
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.WithFields(logrus.Fields{"host": req.URL.Host, "path": req.URL.Path, "attempt": attempt}).Debug("retrying provider request")
		}
	}
	return &Client{
		rc:        rc,
		userAgent: version.UserAgent(),
		metrics:   telemetry.DefaultMetrics(),
		log:       log,
	}
}

// WithMetrics swaps the collector set; nil disables metrics.
func (c *Client) WithMetrics(m *telemetry.Metrics) *Client {
	c.metrics = m
	return c
}

// DoJSON sends req and decodes a 2xx JSON body into out. Any other status, an
// empty body, or undecodable JSON becomes a CodeUpstream error carrying the
// raw status and body.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) (http.Header, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "http "+req.Method)
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("server.address", req.URL.Host),
		attribute.String("url.path", req.URL.Path),
	)
	var spanErr error
	defer func() { telemetry.EndSpan(span, spanErr) }()

	rreq, err := retryablehttp.FromRequest(req.WithContext(ctx))
	if err != nil {
		spanErr = clierr.Wrap(clierr.CodeInternal, "prepare provider request", err)
		return nil, spanErr
	}

	start := time.Now()
	resp, err := c.rc.Do(rreq)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		spanErr = mapTransportError(ctx, err)
		c.log.WithFields(logrus.Fields{"host": req.URL.Host, "path": req.URL.Path, "error": err.Error()}).Debug("provider request failed")
		return nil, spanErr
	}
	defer resp.Body.Close()

	buf, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.ObserveUpstream(req.URL.Host, resp.StatusCode)
	c.log.WithFields(logrus.Fields{
		"method":     req.Method,
		"host":       req.URL.Host,
		"path":       req.URL.Path,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("provider response")
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if readErr != nil {
		if ctx.Err() != nil {
			spanErr = mapTransportError(ctx, readErr)
			return resp.Header, spanErr
		}
		spanErr = clierr.Wrap(clierr.CodeUpstream, "read provider response", &clierr.UpstreamError{Status: resp.StatusCode})
		return resp.Header, spanErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		spanErr = clierr.Wrap(
			clierr.CodeUpstream,
			fmt.Sprintf("%s %s%s returned status %d", req.Method, req.URL.Host, req.URL.Path, resp.StatusCode),
			&clierr.UpstreamError{Status: resp.StatusCode, Body: string(buf)},
		)
		return resp.Header, spanErr
	}

	if out == nil {
		return resp.Header, nil
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		spanErr = clierr.Wrap(clierr.CodeUpstream, "provider returned empty response", &clierr.UpstreamError{Status: resp.StatusCode})
		return resp.Header, spanErr
	}
	if err := json.Unmarshal(buf, out); err != nil {
		spanErr = clierr.Wrap(
			clierr.CodeUpstream,
			fmt.Sprintf("decode provider JSON: %v", err),
			&clierr.UpstreamError{Status: resp.StatusCode, Body: string(buf)},
		)
		return resp.Header, spanErr
	}
	return resp.Header, nil
}

func DoBodyJSON(ctx context.Context, c *Client, method, url string, body []byte, headers map[string]string, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

func mapTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return clierr.Wrap(clierr.CodeCancelled, "provider request cancelled", ctxErr)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return clierr.Wrap(clierr.CodeUpstream, fmt.Sprintf("provider timeout: %v", err), &clierr.UpstreamError{})
	}
	if errors.Is(err, context.Canceled) {
		return clierr.Wrap(clierr.CodeCancelled, "provider request cancelled", err)
	}
	return clierr.Wrap(clierr.CodeUpstream, fmt.Sprintf("provider request failed: %v", err), &clierr.UpstreamError{})
}
