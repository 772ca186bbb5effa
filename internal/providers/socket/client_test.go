package socket

import (
	"context"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/httpx"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/providers"
)

const route = `{"routeId":"r-1","toAmount":"1990000", "userTxs":[{"userTxType":"fund-movr","steps":[{"type":"bridge","protocol":{"name":"hop"}}]}],"usedBridgeNames":["hop"]}`

func sameChainRequest() providers.SwapRequest {
	return providers.SwapRequest{
		InputToken:   "0x2791bca1f2de4661ed88a30c99a7a9449aa84174",
		OutputToken:  "0xc2132d05d31c914a87c6611c10748aeb04b58e8f",
		InputChainID: 137,
		AmountWei:    big.NewInt(2_000_000),
		Payer:        "0x00000000000000000000000000000000000000aa",
	}
}

func newServer(t *testing.T, quote *url.Values, build *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("API-KEY") != "socket-key" {
			t.Errorf("missing API-KEY header")
		}
		switch r.URL.Path {
		case "/quote":
			*quote = r.URL.Query()
			_, _ = w.Write([]byte(`{"success":true,"result":{"routes":[` + route + `,{"routeId":"r-2"}]}}`))
		case "/build-tx":
			*build, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"success":true,"result":{"txData":"0x0000019fcafe","txTarget":"0x3a23F943181408EAC424116Af7b7790c94Cb97a5","chainId":137}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
}

func TestCallDataDefaultsOutputChainAndSlippage(t *testing.T) {
	var quote url.Values
	var build []byte
	srv := newServer(t, &quote, &build)
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "socket-key")
	c.baseURL = srv.URL
	data, err := c.CallData(context.Background(), sameChainRequest())
	if err != nil {
		t.Fatalf("CallData failed: %v", err)
	}
	if len(data) != 6 {
		t.Fatalf("unexpected call data: %x", data)
	}
	if quote.Get("fromChainId") != "137" || quote.Get("toChainId") != "137" {
		t.Fatalf("expected toChainId to default to the input chain: %v", quote)
	}
	if quote.Get("defaultBridgeSlippage") != "1" || quote.Get("defaultSwapSlippage") != "1" {
		t.Fatalf("expected default slippage 1 percent: %v", quote)
	}
	if quote.Get("recipient") != sameChainRequest().Payer || quote.Get("maxUserTxs") != "14" || quote.Get("sort") != "output" {
		t.Fatalf("unexpected quote params: %v", quote)
	}
	if string(build) != `{"route":`+route+`}` {
		t.Fatalf("route not posted verbatim: %s", build)
	}
}

func TestCallDataCrossChain(t *testing.T) {
	var quote url.Values
	var build []byte
	srv := newServer(t, &quote, &build)
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "socket-key")
	c.baseURL = srv.URL
	req := sameChainRequest()
	dst := int64(42161)
	req.OutputChainID = &dst
	req.MaxSlippage = 0.005
	if _, err := c.CallData(context.Background(), req); err != nil {
		t.Fatalf("CallData failed: %v", err)
	}
	if quote.Get("toChainId") != "42161" || quote.Get("defaultSwapSlippage") != "0.5" {
		t.Fatalf("unexpected quote params: %v", quote)
	}
}

func TestEmptyRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"result":{"routes":[]}}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), "socket-key")
	c.baseURL = srv.URL
	if _, err := c.Quote(context.Background(), sameChainRequest()); !clierr.Is(err, clierr.CodeUnsupportedRoute) {
		t.Fatalf("expected unsupported route, got %v", err)
	}
}

func TestMissingKeySendsNothing(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	defer srv.Close()

	c := New(httpx.New(time.Second, 0), "").WithStatusURL(srv.URL)
	c.baseURL = srv.URL
	if _, err := c.CallData(context.Background(), sameChainRequest()); !clierr.Is(err, clierr.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := c.BridgeStatus(context.Background(), providers.StatusRequest{SourceTxHash: "0x1", SourceChainID: 137, DestinationChainID: 10}); !clierr.Is(err, clierr.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected zero outbound requests, got %d", calls.Load())
	}
}

func TestBridgeStatus(t *testing.T) {
	cases := []struct {
		body     string
		state    string
		terminal bool
	}{
		{`{"success":true,"result":{"sourceTxStatus":"COMPLETED","destinationTransactionHash":"0xdef","destinationTxStatus":"COMPLETED"}}`, model.BridgeStateSuccess, true},
		{`{"success":true,"result":{"sourceTxStatus":"COMPLETED","destinationTxStatus":"PENDING"}}`, model.BridgeStatePending, false},
		{`{"success":true,"result":{"sourceTxStatus":"FAILED","destinationTxStatus":"PENDING"}}`, model.BridgeStateFailed, true},
	}
	for _, tc := range cases {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			q := r.URL.Query()
			if q.Get("transactionHash") != "0xabc" || q.Get("fromChainId") != "137" || q.Get("toChainId") != "42161" || q.Get("bridgeName") != "hop" {
				t.Errorf("unexpected status query: %v", q)
			}
			_, _ = w.Write([]byte(tc.body))
		}))

		c := New(httpx.New(2*time.Second, 0), "socket-key").WithStatusURL(srv.URL + "/status")
		req := providers.StatusRequest{SourceTxHash: "0xabc", SourceChainID: 137, DestinationChainID: 42161, BridgeName: "hop"}
		first, err := c.BridgeStatus(context.Background(), req)
		if err != nil {
			srv.Close()
			t.Fatalf("BridgeStatus failed: %v", err)
		}
		second, err := c.BridgeStatus(context.Background(), req)
		srv.Close()
		if err != nil {
			t.Fatalf("BridgeStatus failed: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("expected identical results: %+v vs %+v", first, second)
		}
		if first.State != tc.state || first.Terminal != tc.terminal {
			t.Fatalf("body %s: got state=%s terminal=%v", tc.body, first.State, first.Terminal)
		}
		if calls.Load() != 2 {
			t.Fatalf("expected one request per call, got %d", calls.Load())
		}
	}
}
