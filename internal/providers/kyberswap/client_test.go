package kyberswap

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/httpx"
	"github.com/ggonzalez94/swapper/internal/providers"
)

const routeSummary = `{"tokenIn":"0x21be370d5312f44cb42ce377bc9b8a0cef1a4c83","amountIn":"1000","amountOut":"777", "route":[[{"pool":"0xpool","swapAmount":"1000"}]],"extra":{"chunksInfo":null}}`

func baseRequest() providers.SwapRequest {
	return providers.SwapRequest{
		InputToken:   "0x21be370d5312f44cb42ce377bc9b8a0cef1a4c83",
		OutputToken:  "0x04068da6c83afcfa0e13ba15a6696662335d5b75",
		InputChainID: 250,
		AmountWei:    big.NewInt(1000),
		Payer:        "0x00000000000000000000000000000000000000aa",
	}
}

func TestCallDataTwoPhase(t *testing.T) {
	var buildBody []byte
	var routeQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-client-id") != "my-client" {
			t.Errorf("missing client id header")
		}
		switch r.URL.Path {
		case "/fantom/api/v1/routes":
			routeQuery = r.URL.Query()
			_, _ = w.Write([]byte(`{"code":0,"message":"successfully","data":{"routeSummary":` + routeSummary + `,"routerAddress":"0x6131B5fae19EA4f9D964eAc0408E4408b66337b5"}}`))
		case "/fantom/api/v1/route/build":
			buildBody, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"code":0,"message":"successfully","data":{"amountOut":"777","data":"0xe21fd0e9aa"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "my-client", "")
	c.baseURL = srv.URL
	c.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	data, err := c.CallData(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("CallData failed: %v", err)
	}
	if len(data) != 5 {
		t.Fatalf("unexpected call data: %x", data)
	}
	q := routeQuery
	if q["saveGas"][0] != "false" || q["gasInclude"][0] != "true" || q["source"][0] != "my-client" || q["amountIn"][0] != "1000" {
		t.Fatalf("unexpected route query: %v", q)
	}
	if !strings.Contains(string(buildBody), `"routeSummary":`+routeSummary) {
		t.Fatalf("routeSummary not passed verbatim: %s", buildBody)
	}
	var body map[string]any
	if err := json.Unmarshal(buildBody, &body); err != nil {
		t.Fatalf("decode build body: %v", err)
	}
	if body["slippageTolerance"] != float64(100) || body["skipSimulateTx"] != true || body["deadline"] != float64(1_700_000_300) {
		t.Fatalf("unexpected build body: %v", body)
	}
	if body["recipient"] != baseRequest().Payer || body["sender"] != baseRequest().Payer {
		t.Fatalf("unexpected addresses: %v", body)
	}
}

func TestUnknownChainRejectedBeforeRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	defer srv.Close()

	c := New(httpx.New(time.Second, 0), "my-client", "")
	c.baseURL = srv.URL
	req := baseRequest()
	req.InputChainID = 100
	if _, err := c.CallData(context.Background(), req); !clierr.Is(err, clierr.CodeUnsupportedRoute) {
		t.Fatalf("expected unsupported route, got %v", err)
	}
	c = New(httpx.New(time.Second, 0), "", "")
	c.baseURL = srv.URL
	if _, err := c.CallData(context.Background(), baseRequest()); !clierr.Is(err, clierr.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected zero outbound requests, got %d", calls.Load())
	}
}

func TestRouteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":4008,"message":"route not found"}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "my-client", "")
	c.baseURL = srv.URL
	if _, err := c.CallData(context.Background(), baseRequest()); !clierr.Is(err, clierr.CodeUnsupportedRoute) {
		t.Fatalf("expected unsupported route, got %v", err)
	}
}

func TestNonZeroCodeOnSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":4000,"message":"bad request"}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "my-client", "")
	c.baseURL = srv.URL
	_, err := c.Quote(context.Background(), baseRequest())
	if !clierr.Is(err, clierr.CodeUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestCancelledRequestSkipsBuild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var builds atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/route/build") {
			builds.Add(1)
			return
		}
		cancel()
		_, _ = w.Write([]byte(`{"code":0,"data":{"routeSummary":` + routeSummary + `}}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "my-client", "")
	c.baseURL = srv.URL
	_, err := c.CallData(ctx, baseRequest())
	if !clierr.Is(err, clierr.CodeCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if builds.Load() != 0 {
		t.Fatal("build step must not run after cancellation")
	}
}
