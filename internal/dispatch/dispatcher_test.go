package dispatch

import (
	"context"
	"math/big"
	"testing"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/providers"
	"github.com/ggonzalez94/swapper/internal/telemetry"
)

type fakeAdapter struct {
	id      providers.ID
	routers map[int64]string
	calls   int
	last    providers.SwapRequest
}

func (f *fakeAdapter) ID() providers.ID { return f.id }

func (f *fakeAdapter) Info() model.ProviderInfo { return model.ProviderInfo{Name: string(f.id)} }

func (f *fakeAdapter) RouterByChainID() map[int64]string { return f.routers }

func (f *fakeAdapter) Quote(_ context.Context, req providers.SwapRequest) (providers.Quote, error) {
	f.calls++
	f.last = req
	return providers.Quote{Provider: f.id, AmountIn: req.AmountString()}, nil
}

func (f *fakeAdapter) CallData(_ context.Context, req providers.SwapRequest) ([]byte, error) {
	f.calls++
	f.last = req
	return []byte(f.id), nil
}

type statusAdapter struct {
	fakeAdapter
}

func (s *statusAdapter) BridgeStatus(_ context.Context, req providers.StatusRequest) (model.BridgeStatus, error) {
	return model.BridgeStatus{Provider: string(s.id), SourceTxHash: req.SourceTxHash, State: model.BridgeStatePending}, nil
}

func request(id providers.ID) providers.SwapRequest {
	return providers.SwapRequest{
		Provider:     id,
		InputToken:   "0x21be370d5312f44cb42ce377bc9b8a0cef1a4c83",
		OutputToken:  "0x04068da6c83afcfa0e13ba15a6696662335d5b75",
		InputChainID: 250,
		AmountWei:    big.NewInt(1),
		Payer:        "0x00000000000000000000000000000000000000aa",
	}
}

func newDispatcher(t *testing.T) (*Dispatcher, *fakeAdapter, *statusAdapter) {
	t.Helper()
	oneinch := &fakeAdapter{id: providers.OneInch, routers: map[int64]string{250: "0x1111111254EEB25477B68fb85Ed929f73A960582"}}
	lifi := &statusAdapter{fakeAdapter{id: providers.LiFi}}
	d, err := New(providers.LiFi, oneinch, lifi)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d.WithMetrics(telemetry.NewMetrics()), oneinch, lifi
}

func TestNewRequiresRegisteredDefault(t *testing.T) {
	_, err := New(providers.Socket, &fakeAdapter{id: providers.OneInch})
	if !clierr.Is(err, clierr.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	_, err = New(providers.OneInch, &fakeAdapter{id: providers.OneInch}, &fakeAdapter{id: providers.OneInch})
	if err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestUnsetProviderUsesDefault(t *testing.T) {
	d, oneinch, lifi := newDispatcher(t)
	out, err := d.CallData(context.Background(), request(""))
	if err != nil {
		t.Fatalf("CallData failed: %v", err)
	}
	if string(out) != string(providers.LiFi) || lifi.calls != 1 || oneinch.calls != 0 {
		t.Fatalf("expected default adapter to handle request, got %q", out)
	}
	if d.Default() != providers.LiFi {
		t.Fatalf("unexpected default: %s", d.Default())
	}
}

func TestExplicitProviderAndPassThrough(t *testing.T) {
	d, oneinch, _ := newDispatcher(t)
	req := request(providers.OneInch)
	req.MaxSlippage = 0.01
	if _, err := d.Quote(context.Background(), req); err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if oneinch.calls != 1 || oneinch.last.MaxSlippage != 0.01 || oneinch.last.AmountWei.Cmp(req.AmountWei) != 0 {
		t.Fatalf("expected request forwarded unchanged: %+v", oneinch.last)
	}
}

func TestUnknownProvider(t *testing.T) {
	d, _, _ := newDispatcher(t)
	if _, err := d.CallData(context.Background(), request(providers.Socket)); !clierr.Is(err, clierr.CodeUnknownProvider) {
		t.Fatalf("expected unknown provider, got %v", err)
	}
	if _, _, err := d.ResolveRouter("NOPE", 1); !clierr.Is(err, clierr.CodeUnknownProvider) {
		t.Fatalf("expected unknown provider, got %v", err)
	}
}

func TestResolveRouter(t *testing.T) {
	d, _, _ := newDispatcher(t)
	addr, ok, err := d.ResolveRouter(providers.OneInch, 250)
	if err != nil || !ok || addr == "" {
		t.Fatalf("expected router, got %q ok=%v err=%v", addr, ok, err)
	}
	if _, ok, _ := d.ResolveRouter(providers.OneInch, 1); ok {
		t.Fatal("did not expect router on chain 1")
	}
}

func TestBridgeStatus(t *testing.T) {
	d, _, _ := newDispatcher(t)
	got, err := d.BridgeStatus(context.Background(), "", providers.StatusRequest{SourceTxHash: "0xabc"})
	if err != nil || got.SourceTxHash != "0xabc" || got.Provider != string(providers.LiFi) {
		t.Fatalf("unexpected status %+v err=%v", got, err)
	}
	if _, err := d.BridgeStatus(context.Background(), providers.OneInch, providers.StatusRequest{SourceTxHash: "0xabc"}); !clierr.Is(err, clierr.CodeUnsupportedRoute) {
		t.Fatalf("expected unsupported route, got %v", err)
	}
}

func TestProvidersMarksDefault(t *testing.T) {
	d, _, _ := newDispatcher(t)
	infos := d.Providers()
	if len(infos) != 2 || infos[0].Name != "LIFI" || !infos[0].Default || infos[1].Default {
		t.Fatalf("unexpected providers: %+v", infos)
	}
}
