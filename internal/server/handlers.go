package server

import (
	"net/http"
	"time"

	"github.com/ggonzalez94/swapper/internal/dispatch"
	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/out"
	"github.com/ggonzalez94/swapper/internal/providers"
)

func (s *Server) handleCallData(r *http.Request) (any, []model.ProviderStatus, error) {
	req, err := s.swapRequest(r)
	if err != nil {
		return nil, nil, err
	}
	start := time.Now()
	data, err := s.dispatcher.Prepare(r.Context(), req)
	return data, []model.ProviderStatus{out.ProviderStatus(s.providerName(req.Provider), err, time.Since(start))}, err
}

func (s *Server) handleQuote(r *http.Request) (any, []model.ProviderStatus, error) {
	req, err := s.swapRequest(r)
	if err != nil {
		return nil, nil, err
	}
	start := time.Now()
	quote, err := s.dispatcher.Quote(r.Context(), req)
	statuses := []model.ProviderStatus{out.ProviderStatus(s.providerName(req.Provider), err, time.Since(start))}
	if err != nil {
		return nil, statuses, err
	}
	return dispatch.QuoteView(quote), statuses, nil
}

func (s *Server) handleStatus(r *http.Request) (any, []model.ProviderStatus, error) {
	q := r.URL.Query()
	pid, req, err := dispatch.BuildStatusRequest(q.Get("provider"), q.Get("tx"), q.Get("from_chain"), q.Get("to_chain"), q.Get("bridge"))
	if err != nil {
		return nil, nil, err
	}
	if pid == "" {
		pid = s.dispatcher.Default()
	}
	start := time.Now()
	st, err := s.dispatcher.BridgeStatus(r.Context(), pid, req)
	statuses := []model.ProviderStatus{out.ProviderStatus(string(pid), err, time.Since(start))}
	if err != nil {
		return nil, statuses, err
	}
	return st, statuses, nil
}

func (s *Server) handleRouters(r *http.Request) (any, []model.ProviderStatus, error) {
	var pid providers.ID
	if raw := r.URL.Query().Get("provider"); raw != "" {
		parsed, ok := providers.ParseID(raw)
		if !ok {
			return nil, nil, clierr.New(clierr.CodeUnknownProvider, "unknown provider "+raw)
		}
		pid = parsed
	}
	entries, err := s.dispatcher.Routers(pid)
	return entries, nil, err
}

func (s *Server) handleProviders(*http.Request) (any, []model.ProviderStatus, error) {
	return s.dispatcher.Providers(), nil, nil
}

func (s *Server) handleHealth(*http.Request) (any, []model.ProviderStatus, error) {
	return map[string]string{"status": "ok", "default_provider": string(s.dispatcher.Default())}, nil, nil
}

func (s *Server) swapRequest(r *http.Request) (providers.SwapRequest, error) {
	var in dispatch.RequestInput
	if err := decodeBody(r, &in); err != nil {
		return providers.SwapRequest{}, err
	}
	return dispatch.BuildRequest(in, s.project)
}

func (s *Server) providerName(pid providers.ID) string {
	if pid == "" {
		return string(s.dispatcher.Default())
	}
	return string(pid)
}
