package lifi

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/httpx"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/providers"
)

const step = `{"id":"step-1","type":"lifi","tool":"stargate",  "action":{"fromChainId":10,"toChainId":8453},"estimate":{"toAmount":"990000"}}`

func bridgeRequest() providers.SwapRequest {
	dst := int64(8453)
	return providers.SwapRequest{
		InputToken:    "0x0b2c639c533813f4aa9d7837caf62653d097ff85",
		OutputToken:   "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
		InputChainID:  10,
		OutputChainID: &dst,
		AmountWei:     big.NewInt(1_000_000),
		Payer:         "0x00000000000000000000000000000000000000aa",
	}
}

func TestCallDataPostsChosenStepVerbatim(t *testing.T) {
	var routesBody map[string]any
	var stepBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		switch r.URL.Path {
		case "/advanced/routes":
			_ = json.NewDecoder(r.Body).Decode(&routesBody)
			_, _ = w.Write([]byte(`{"routes":[` +
				`{"id":"multi","toAmount":"1","steps":[{"id":"a"},{"id":"b"}]},` +
				`{"id":"single","toAmount":"990000","steps":[` + step + `]}]}`))
		case "/advanced/stepTransaction":
			stepBody, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"transactionRequest":{"to":"0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE","data":"0x4630a0d8beef","value":"0"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "", "")
	c.baseURL = srv.URL
	data, err := c.CallData(context.Background(), bridgeRequest())
	if err != nil {
		t.Fatalf("CallData failed: %v", err)
	}
	if len(data) != 6 {
		t.Fatalf("unexpected call data: %x", data)
	}
	if string(stepBody) != step {
		t.Fatalf("step was not posted verbatim:\n got %s\nwant %s", stepBody, step)
	}
	if routesBody["toChainId"] != float64(8453) || routesBody["fromAmount"] != "1000000" {
		t.Fatalf("unexpected routes body: %v", routesBody)
	}
	opts, _ := routesBody["options"].(map[string]any)
	if opts["slippage"] != 0.005 {
		t.Fatalf("expected default slippage 0.005, got %v", opts["slippage"])
	}
	if opts["integrator"] != providers.DefaultAttribution {
		t.Fatalf("unexpected integrator: %v", opts["integrator"])
	}
}

func TestCallDataSendsOptionalKey(t *testing.T) {
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("x-lifi-api-key")
		_, _ = w.Write([]byte(`{"routes":[]}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "lifi-key", "")
	c.baseURL = srv.URL
	_, err := c.CallData(context.Background(), bridgeRequest())
	if !clierr.Is(err, clierr.CodeUnsupportedRoute) {
		t.Fatalf("expected unsupported route for empty routes, got %v", err)
	}
	if key != "lifi-key" {
		t.Fatalf("expected api key header, got %q", key)
	}
}

func TestQuoteRejectsInvalidRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	defer srv.Close()

	c := New(httpx.New(time.Second, 0), "", "")
	c.baseURL = srv.URL
	req := bridgeRequest()
	req.AmountWei = nil
	if _, err := c.Quote(context.Background(), req); !clierr.Is(err, clierr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected zero outbound requests, got %d", calls.Load())
	}
}

func TestBridgeStatusIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		if q.Get("txHash") != "0xabc" || q.Get("fromChain") != "10" || q.Get("toChain") != "8453" || q.Get("bridge") != "stargate" {
			t.Errorf("unexpected status query: %v", q)
		}
		_, _ = w.Write([]byte(`{"status":"DONE","substatus":"COMPLETED","sending":{"txHash":"0xabc","chainId":10},"receiving":{"txHash":"0xdef","chainId":8453}}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "", "").WithStatusURL(srv.URL + "/status")
	req := providers.StatusRequest{SourceTxHash: "0xabc", SourceChainID: 10, DestinationChainID: 8453, BridgeName: "stargate"}
	first, err := c.BridgeStatus(context.Background(), req)
	if err != nil {
		t.Fatalf("BridgeStatus failed: %v", err)
	}
	second, err := c.BridgeStatus(context.Background(), req)
	if err != nil {
		t.Fatalf("BridgeStatus failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results: %+v vs %+v", first, second)
	}
	if first.State != model.BridgeStateSuccess || !first.Terminal || first.DestinationTxHash != "0xdef" {
		t.Fatalf("unexpected status: %+v", first)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one request per call, got %d", calls.Load())
	}
}

func TestBridgeStatusPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"NOT_FOUND"}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "", "").WithStatusURL(srv.URL)
	got, err := c.BridgeStatus(context.Background(), providers.StatusRequest{SourceTxHash: "0x1"})
	if err != nil {
		t.Fatalf("BridgeStatus failed: %v", err)
	}
	if got.Terminal || got.State != model.BridgeStatePending {
		t.Fatalf("expected pending, got %+v", got)
	}
}

func TestBridgeStatusSubstatus(t *testing.T) {
	tests := []struct {
		body      string
		state     string
		substatus string
	}{
		{`{"status":"DONE","substatus":"REFUNDED","receiving":{"chainId":8453}}`, model.BridgeStateFailed, "REFUNDED"},
		{`{"status":"DONE","substatus":"PARTIAL","receiving":{"txHash":"0xdef","chainId":8453}}`, model.BridgeStateSuccess, "PARTIAL"},
		{`{"status":"DONE","substatus":"COMPLETED","receiving":{"txHash":"0xdef","chainId":8453}}`, model.BridgeStateSuccess, "COMPLETED"},
	}
	for _, tc := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(tc.body))
		}))
		c := New(httpx.New(2*time.Second, 0), "", "").WithStatusURL(srv.URL)
		got, err := c.BridgeStatus(context.Background(), providers.StatusRequest{SourceTxHash: "0xabc", SourceChainID: 10})
		srv.Close()
		if err != nil {
			t.Fatalf("BridgeStatus failed: %v", err)
		}
		if got.State != tc.state || !got.Terminal || got.Substatus != tc.substatus {
			t.Fatalf("%s: unexpected status %+v", tc.substatus, got)
		}
		if got.DestinationTxStatus != "" {
			t.Fatalf("%s: expected no destination status, got %q", tc.substatus, got.DestinationTxStatus)
		}
		if got.DestinationChainID != 8453 {
			t.Fatalf("%s: expected destination chain from response, got %d", tc.substatus, got.DestinationChainID)
		}
	}
}
