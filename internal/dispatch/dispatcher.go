package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/providers"
	"github.com/ggonzalez94/swapper/internal/telemetry"
)

// Dispatcher routes requests to the adapter named by SwapRequest.Provider, or
// to the default adapter when none is named. It holds no mutable state after
// construction.
type Dispatcher struct {
	adapters  map[providers.ID]providers.Aggregator
	defaultID providers.ID
	metrics   *telemetry.Metrics
	log       *logrus.Entry
}

// New registers adapters under their IDs. defaultID must be one of them.
func New(defaultID providers.ID, adapters ...providers.Aggregator) (*Dispatcher, error) {
	d := &Dispatcher{
		adapters:  make(map[providers.ID]providers.Aggregator, len(adapters)),
		defaultID: defaultID,
		metrics:   telemetry.DefaultMetrics(),
		log:       telemetry.Logger("dispatch"),
	}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		if _, dup := d.adapters[a.ID()]; dup {
			return nil, clierr.New(clierr.CodeConfiguration, fmt.Sprintf("provider %s registered twice", a.ID()))
		}
		d.adapters[a.ID()] = a
	}
	if _, ok := d.adapters[defaultID]; !ok {
		return nil, clierr.New(clierr.CodeConfiguration, fmt.Sprintf("default provider %q is not registered", defaultID))
	}
	return d, nil
}

// WithMetrics swaps the collector set; nil disables metrics.
func (d *Dispatcher) WithMetrics(m *telemetry.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

func (d *Dispatcher) Default() providers.ID { return d.defaultID }

// Resolve returns the adapter for id, the default adapter when id is empty.
func (d *Dispatcher) Resolve(id providers.ID) (providers.Aggregator, error) {
	if id == "" {
		id = d.defaultID
	}
	a, ok := d.adapters[id]
	if !ok {
		return nil, clierr.New(clierr.CodeUnknownProvider, fmt.Sprintf("unknown provider %q", id))
	}
	return a, nil
}

func (d *Dispatcher) CallData(ctx context.Context, req providers.SwapRequest) ([]byte, error) {
	a, err := d.Resolve(req.Provider)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = d.observe(ctx, a.ID(), "calldata", req, func(ctx context.Context) error {
		var callErr error
		out, callErr = a.CallData(ctx, req)
		return callErr
	})
	return out, err
}

func (d *Dispatcher) Quote(ctx context.Context, req providers.SwapRequest) (providers.Quote, error) {
	a, err := d.Resolve(req.Provider)
	if err != nil {
		return providers.Quote{}, err
	}
	var out providers.Quote
	err = d.observe(ctx, a.ID(), "quote", req, func(ctx context.Context) error {
		var callErr error
		out, callErr = a.Quote(ctx, req)
		return callErr
	})
	return out, err
}

// BridgeStatus forwards to a provider that exposes transfer status. Providers
// without one report CodeUnsupportedRoute.
func (d *Dispatcher) BridgeStatus(ctx context.Context, id providers.ID, req providers.StatusRequest) (model.BridgeStatus, error) {
	a, err := d.Resolve(id)
	if err != nil {
		return model.BridgeStatus{}, err
	}
	sp, ok := a.(providers.StatusProvider)
	if !ok {
		return model.BridgeStatus{}, clierr.New(clierr.CodeUnsupportedRoute, fmt.Sprintf("%s does not expose bridge status", a.ID()))
	}

	ctx, span := telemetry.Tracer().Start(ctx, "dispatch.status")
	span.SetAttributes(attribute.String("provider", string(a.ID())), attribute.String("tx_hash", req.SourceTxHash))
	start := time.Now()
	out, err := sp.BridgeStatus(ctx, req)
	d.metrics.ObserveCall(string(a.ID()), "status", err, time.Since(start))
	telemetry.EndSpan(span, err)
	return out, err
}

// ResolveRouter answers the router address for id on chainID, or false.
func (d *Dispatcher) ResolveRouter(id providers.ID, chainID int64) (string, bool, error) {
	a, err := d.Resolve(id)
	if err != nil {
		return "", false, err
	}
	addr, ok := a.RouterByChainID()[chainID]
	return addr, ok, nil
}

// Providers describes every registered adapter, sorted by name.
func (d *Dispatcher) Providers() []model.ProviderInfo {
	out := make([]model.ProviderInfo, 0, len(d.adapters))
	for id, a := range d.adapters {
		info := a.Info()
		info.Default = id == d.defaultID
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *Dispatcher) observe(ctx context.Context, id providers.ID, op string, req providers.SwapRequest, call func(context.Context) error) error {
	ctx, span := telemetry.Tracer().Start(ctx, "dispatch."+op)
	span.SetAttributes(
		attribute.String("provider", string(id)),
		attribute.Int64("chain.input", req.InputChainID),
		attribute.Int64("chain.output", req.EffectiveOutputChainID()),
	)
	d.log.WithField("provider", id).Debugf("dispatching %s", req)

	start := time.Now()
	err := call(ctx)
	elapsed := time.Since(start)
	d.metrics.ObserveCall(string(id), op, err, elapsed)
	telemetry.EndSpan(span, err)

	entry := d.log.WithFields(logrus.Fields{"provider": id, "operation": op, "latency_ms": elapsed.Milliseconds()})
	if err != nil {
		entry.WithField("error_type", clierr.TypeOf(err)).Debug("provider call failed")
	} else {
		entry.Debug("provider call succeeded")
	}
	return err
}
