// Package server exposes the dispatcher over a small JSON HTTP API using the
// same envelope and error codes as the CLI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ggonzalez94/swapper/internal/config"
	"github.com/ggonzalez94/swapper/internal/dispatch"
	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/out"
	"github.com/ggonzalez94/swapper/internal/telemetry"
)

const maxBodyBytes = 1 << 20

type Options struct {
	// RateLimit is the sustained requests per second across all clients.
	RateLimit float64
	RateBurst int
	// Project is the attribution applied when a request body names none.
	Project string
	Metrics *telemetry.Metrics
	Now     func() time.Time
}

type Server struct {
	dispatcher *dispatch.Dispatcher
	limiter    *rate.Limiter
	project    string
	metrics    *telemetry.Metrics
	now        func() time.Time
	log        *logrus.Entry
	mux        *http.ServeMux
}

func New(d *dispatch.Dispatcher, opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.DefaultMetrics()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		dispatcher: d,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		project:    opts.Project,
		metrics:    opts.Metrics,
		now:        opts.Now,
		log:        telemetry.Logger("server"),
		mux:        http.NewServeMux(),
	}
	s.handle("POST /v1/calldata", true, s.handleCallData)
	s.handle("POST /v1/quote", true, s.handleQuote)
	s.handle("GET /v1/status", true, s.handleStatus)
	s.handle("GET /v1/routers", true, s.handleRouters)
	s.handle("GET /v1/providers", true, s.handleProviders)
	s.handle("GET /healthz", false, s.handleHealth)
	s.mux.Handle("GET /metrics", opts.Metrics.Handler())
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return clierr.Wrap(clierr.CodeConfiguration, "listen", err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// Requests keep ctx values but not its cancellation, so Shutdown can
	// drain them.
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.WithField("addr", ln.Addr().String()).Info("api server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return clierr.Wrap(clierr.CodeInternal, "serve", err)
	case <-ctx.Done():
	}

	s.log.Info("api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return clierr.Wrap(clierr.CodeInternal, "shutdown", err)
	}
	return nil
}

type handlerFunc func(r *http.Request) (any, []model.ProviderStatus, error)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handle(pattern string, limited bool, h handlerFunc) {
	route := pattern[strings.Index(pattern, " ")+1:]
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		var (
			data     any
			statuses []model.ProviderStatus
			err      error
		)
		if limited && !s.limiter.Allow() {
			err = clierr.New(clierr.CodeRateLimited, "rate limit exceeded")
		} else {
			data, statuses, err = h(r)
		}
		if err != nil {
			s.writeEnvelope(rec, httpStatus(err), out.Failure(route, err, nil, statuses, s.now()))
		} else {
			s.writeEnvelope(rec, http.StatusOK, out.Success(route, data, nil, statuses, s.now()))
		}

		s.metrics.ObserveInbound(route, rec.status)
		entry := s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"route":      route,
			"status":     rec.status,
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			entry.WithField("error_type", clierr.TypeOf(err)).Info("request failed")
		} else {
			entry.Debug("request served")
		}
	})
}

func (s *Server) writeEnvelope(w http.ResponseWriter, status int, env model.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = out.Render(w, env, config.Settings{OutputMode: "json"})
}

func httpStatus(err error) int {
	cErr, ok := clierr.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch cErr.Code {
	case clierr.CodeValidation, clierr.CodeUnknownProvider:
		return http.StatusBadRequest
	case clierr.CodeUnsupportedRoute:
		return http.StatusUnprocessableEntity
	case clierr.CodeConfiguration:
		return http.StatusServiceUnavailable
	case clierr.CodeUpstream:
		return http.StatusBadGateway
	case clierr.CodeCancelled:
		return http.StatusRequestTimeout
	case clierr.CodeBlocked:
		return http.StatusForbidden
	case clierr.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return clierr.Wrap(clierr.CodeValidation, "decode request body", err)
	}
	return nil
}
