package providers

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
)

const (
	testToken = "0x04068DA6C83AFCFA0e13ba15A6696662335D5B75"
	testPayer = "0x00000000000000000000000000000000000000AA"
)

func validRequest() SwapRequest {
	return SwapRequest{
		InputToken:   testToken,
		OutputToken:  "0x21be370d5312f44cb42ce377bc9b8a0cef1a4c83",
		InputChainID: 250,
		AmountWei:    big.NewInt(100000000),
		Payer:        testPayer,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SwapRequest)
		ok     bool
	}{
		{"valid", func(*SwapRequest) {}, true},
		{"lowercase address", func(r *SwapRequest) { r.InputToken = strings.ToLower(testToken) }, true},
		{"bad checksum", func(r *SwapRequest) { r.InputToken = "0x04068da6C83AFCFA0e13ba15A6696662335D5B75" }, false},
		{"missing prefix", func(r *SwapRequest) { r.OutputToken = "21be370d5312f44cb42ce377bc9b8a0cef1a4c83" }, false},
		{"short payer", func(r *SwapRequest) { r.Payer = "0x1234" }, false},
		{"negative chain", func(r *SwapRequest) { r.InputChainID = -1 }, false},
		{"nil amount", func(r *SwapRequest) { r.AmountWei = nil }, false},
		{"zero amount", func(r *SwapRequest) { r.AmountWei = big.NewInt(0) }, false},
		{"negative amount", func(r *SwapRequest) { r.AmountWei = big.NewInt(-5) }, false},
	}
	for _, tc := range cases {
		req := validRequest()
		tc.mutate(&req)
		if got := Validate(req); got != tc.ok {
			t.Fatalf("%s: Validate = %v, want %v", tc.name, got, tc.ok)
		}
		if !tc.ok && !clierr.Is(ValidateDetail(req), clierr.CodeValidation) {
			t.Fatalf("%s: expected validation error code", tc.name)
		}
	}
}

func TestPreflightChecksCredentialFirst(t *testing.T) {
	req := validRequest()
	req.Payer = "bogus"
	err := Preflight(OneInch, req, Credential{Required: true, EnvVar: "SWAPPER_ONE_INCH_API_KEY"})
	if !clierr.Is(err, clierr.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	err = Preflight(OneInch, req, Credential{Required: true, Value: "k"})
	if !clierr.Is(err, clierr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := Preflight(ParaSwap, validRequest(), Credential{}); err != nil {
		t.Fatalf("expected keyless provider to pass, got %v", err)
	}
}

func TestPreflightRejectsMalformedOptions(t *testing.T) {
	neg := int64(-1)
	cases := []struct {
		name   string
		mutate func(*SwapRequest)
	}{
		{"bad receiver", func(r *SwapRequest) { r.Receiver = "not-an-address" }},
		{"negative output chain", func(r *SwapRequest) { r.OutputChainID = &neg }},
		{"slippage out of range", func(r *SwapRequest) { r.MaxSlippage = 1.5 }},
		{"negative slippage", func(r *SwapRequest) { r.MaxSlippage = -0.1 }},
		{"negative deadline", func(r *SwapRequest) { r.Deadline = -1 }},
	}
	for _, tc := range cases {
		req := validRequest()
		tc.mutate(&req)
		if !Validate(req) {
			t.Fatalf("%s: optional fields must not affect Validate", tc.name)
		}
		if err := Preflight(LiFi, req, Credential{}); !clierr.Is(err, clierr.CodeValidation) {
			t.Fatalf("%s: expected validation error from Preflight, got %v", tc.name, err)
		}
	}
}

func TestEffectiveDefaults(t *testing.T) {
	req := validRequest()
	if req.EffectiveOutputChainID() != 250 || req.IsCrossChain() {
		t.Fatalf("expected output chain to default to input chain")
	}
	if req.EffectiveReceiver() != testPayer {
		t.Fatalf("expected receiver to default to payer")
	}
	dst := int64(10)
	req.OutputChainID = &dst
	if !req.IsCrossChain() || req.EffectiveOutputChainID() != 10 {
		t.Fatalf("expected cross-chain request")
	}
}

func TestSlippageConversions(t *testing.T) {
	req := validRequest()
	if SlippageBps(req, 100) != 100 || SlippagePercent(req, 1) != 1 || SlippageFraction(req, 0.005) != 0.005 {
		t.Fatal("expected fallbacks when slippage is unset")
	}
	req.MaxSlippage = 0.003
	if got := SlippageBps(req, 100); got != 30 {
		t.Fatalf("bps = %d", got)
	}
	if got := SlippagePercent(req, 1); got != 0.3 {
		t.Fatalf("percent = %v", got)
	}
	req.MaxSlippage = 0.00001
	if got := SlippageBps(req, 10); got != 10 {
		t.Fatalf("expected fallback when bps rounds to zero, got %d", got)
	}
}

func TestSlippageRoundingToZeroUsesFallback(t *testing.T) {
	req := validRequest()
	req.MaxSlippage = 1e-9
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"percent", SlippagePercent(req, 0.1), 0.1},
		{"fraction", SlippageFraction(req, 0.005), 0.005},
		{"bps", float64(SlippageBps(req, 10)), 10},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Fatalf("%s: expected fallback %v, got %v", tc.name, tc.want, tc.got)
		}
	}
}

func TestDeadlineAndAttribution(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	req := validRequest()
	if got := Deadline(req, now); got != 1_700_000_300 {
		t.Fatalf("deadline = %d", got)
	}
	req.Deadline = 42
	if got := Deadline(req, now); got != 42 {
		t.Fatalf("explicit deadline = %d", got)
	}
	if got := Attribution(req, ""); got != DefaultAttribution {
		t.Fatalf("attribution = %q", got)
	}
	req.Project = "acme"
	if got := Attribution(req, "fallback"); got != "acme" {
		t.Fatalf("attribution = %q", got)
	}
}

func TestEmbedRawKeepsBytes(t *testing.T) {
	raw := json.RawMessage(`{"b": 2,  "a":[1, 2.50]}`)
	body, err := EmbedRaw("priceRoute", raw, map[string]any{"slippage": 10})
	if err != nil {
		t.Fatalf("EmbedRaw failed: %v", err)
	}
	want := `{"priceRoute":{"b": 2,  "a":[1, 2.50]},"slippage":10}`
	if string(body) != want {
		t.Fatalf("body = %s", body)
	}
	if !json.Valid(body) {
		t.Fatal("expected valid json")
	}
	body, err = EmbedRaw("route", raw, nil)
	if err != nil || string(body) != `{"route":{"b": 2,  "a":[1, 2.50]}}` {
		t.Fatalf("unexpected body %s err=%v", body, err)
	}
	if _, err := EmbedRaw("route", nil, nil); err == nil {
		t.Fatal("expected error for empty route")
	}
}

func TestNoRoute(t *testing.T) {
	upstream := clierr.Wrap(clierr.CodeUpstream, "bad request", &clierr.UpstreamError{Status: 400, Body: `{"description":"Insufficient liquidity"}`})
	err := NoRoute(upstream, OneInch, "insufficient liquidity")
	if !clierr.Is(err, clierr.CodeUnsupportedRoute) {
		t.Fatalf("expected unsupported route, got %v", err)
	}
	if up, ok := clierr.Upstream(err); !ok || up.Status != 400 {
		t.Fatal("expected upstream cause to be preserved")
	}
	server := clierr.Wrap(clierr.CodeUpstream, "boom", &clierr.UpstreamError{Status: 500, Body: "insufficient liquidity"})
	if got := NoRoute(server, OneInch, "insufficient liquidity"); !clierr.Is(got, clierr.CodeUpstream) || clierr.Is(got, clierr.CodeUnsupportedRoute) {
		t.Fatalf("5xx must stay upstream, got %v", got)
	}
}

func TestDecodeCallData(t *testing.T) {
	out, err := DecodeCallData(OneInch, "0x12aa3caf")
	if err != nil || len(out) != 4 {
		t.Fatalf("decode: %x err=%v", out, err)
	}
	if _, err := DecodeCallData(OneInch, ""); !clierr.Is(err, clierr.CodeUpstream) {
		t.Fatalf("expected upstream error for empty data, got %v", err)
	}
	if _, err := DecodeCallData(OneInch, "0xzz"); !clierr.Is(err, clierr.CodeUpstream) {
		t.Fatalf("expected upstream error for malformed data, got %v", err)
	}
}

func TestBetweenPhases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if err := BetweenPhases(ctx, LiFi); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()
	if err := BetweenPhases(ctx, LiFi); !clierr.Is(err, clierr.CodeCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestRequestSummary(t *testing.T) {
	if got := CompactAmount(big.NewInt(100000000)); got != "1e8" {
		t.Fatalf("compact = %s", got)
	}
	if got := CompactAmount(big.NewInt(123456789)); got != "1.2346e8" {
		t.Fatalf("compact = %s", got)
	}
	if got := CompactAmount(big.NewInt(5)); got != "5e0" {
		t.Fatalf("compact = %s", got)
	}
	req := validRequest()
	req.Provider = OneInch
	want := "swap: 250:0x0406…5B75 (1e8 wei) -> 250:0x21be…4c83 via ONE_INCH"
	if got := req.String(); got != want {
		t.Fatalf("summary = %q", got)
	}
}

func TestParseID(t *testing.T) {
	cases := map[string]ID{"1inch": OneInch, "ONE_INCH": OneInch, "0x": ZeroX, "velora": ParaSwap, "Kyber": KyberSwap, "lifi": LiFi, "bungee": Socket}
	for in, want := range cases {
		if got, ok := ParseID(in); !ok || got != want {
			t.Fatalf("ParseID(%q) = %q ok=%v", in, got, ok)
		}
	}
	if _, ok := ParseID("uniswap"); ok {
		t.Fatal("did not expect uniswap to parse")
	}
}
