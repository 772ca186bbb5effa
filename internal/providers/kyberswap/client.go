package kyberswap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/httpx"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/providers"
	"github.com/ggonzalez94/swapper/internal/registry"
)

const (
	keyEnvVar          = "SWAPPER_KYBERSWAP_CLIENT_ID"
	defaultSlippageBps = 100
	codeRouteNotFound  = 4008
)

var noRouteMarkers = []string{"route not found", `"code":4008`, "insufficient liquidity"}

type Client struct {
	http        *httpx.Client
	baseURL     string
	clientID    string
	attribution string
	now         func() time.Time
}

func New(httpClient *httpx.Client, clientID, attribution string) *Client {
	return &Client{
		http:        httpClient,
		baseURL:     registry.KyberSwapBaseURL,
		clientID:    strings.TrimSpace(clientID),
		attribution: attribution,
		now:         time.Now,
	}
}

func (c *Client) ID() providers.ID { return providers.KyberSwap }

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:          string(providers.KyberSwap),
		Type:          "swap",
		Shape:         "two-phase",
		RequiresKey:   true,
		KeyEnvVarName: keyEnvVar,
		Capabilities:  []string{"swap.quote", "swap.calldata"},
		CapabilityAuth: []model.ProviderCapabilityAuth{
			{Capability: "swap.calldata", KeyEnvVar: keyEnvVar, Description: "sent as x-client-id"},
		},
		Chains: registry.ChainIDs(string(providers.KyberSwap)),
	}
}

func (c *Client) RouterByChainID() map[int64]string {
	return registry.RoutersByChainID(string(providers.KyberSwap))
}

type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type routesData struct {
	RouteSummary  json.RawMessage `json:"routeSummary"`
	RouterAddress string          `json:"routerAddress"`
}

type buildData struct {
	AmountIn      string `json:"amountIn"`
	AmountOut     string `json:"amountOut"`
	Data          string `json:"data"`
	RouterAddress string `json:"routerAddress"`
}

type buildBody struct {
	Recipient         string `json:"recipient"`
	Sender            string `json:"sender"`
	Source            string `json:"source"`
	SkipSimulateTx    bool   `json:"skipSimulateTx"`
	SlippageTolerance int64  `json:"slippageTolerance"`
	Deadline          int64  `json:"deadline"`
}

func (c *Client) Quote(ctx context.Context, req providers.SwapRequest) (providers.Quote, error) {
	slug, err := c.preflight(req)
	if err != nil {
		return providers.Quote{}, err
	}
	summary, err := c.routes(ctx, slug, req)
	if err != nil {
		return providers.Quote{}, err
	}
	var amounts struct {
		AmountOut string `json:"amountOut"`
	}
	_ = json.Unmarshal(summary, &amounts)
	return providers.Quote{
		Provider:      providers.KyberSwap,
		InputChainID:  req.InputChainID,
		OutputChainID: req.InputChainID,
		AmountIn:      req.AmountString(),
		AmountOut:     amounts.AmountOut,
		Route:         summary,
		FetchedAt:     c.now().UTC(),
	}, nil
}

func (c *Client) CallData(ctx context.Context, req providers.SwapRequest) ([]byte, error) {
	slug, err := c.preflight(req)
	if err != nil {
		return nil, err
	}
	summary, err := c.routes(ctx, slug, req)
	if err != nil {
		return nil, err
	}
	if err := providers.BetweenPhases(ctx, providers.KyberSwap); err != nil {
		return nil, err
	}

	body, err := providers.EmbedRaw("routeSummary", summary, buildBody{
		Recipient:         req.EffectiveReceiver(),
		Sender:            req.Payer,
		Source:            c.source(req),
		SkipSimulateTx:    true,
		SlippageTolerance: providers.SlippageBps(req, defaultSlippageBps),
		Deadline:          providers.Deadline(req, c.now()),
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/%s/api/v1/route/build", c.baseURL, slug)
	var resp envelope[buildData]
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, endpoint, body, c.headers(), &resp); err != nil {
		return nil, providers.NoRoute(err, providers.KyberSwap, noRouteMarkers...)
	}
	if resp.Code != 0 {
		return nil, c.codeError(resp.Code, resp.Message)
	}
	return providers.DecodeCallData(providers.KyberSwap, resp.Data.Data)
}

func (c *Client) preflight(req providers.SwapRequest) (string, error) {
	if err := providers.Preflight(providers.KyberSwap, req, providers.Credential{Required: true, Value: c.clientID, EnvVar: keyEnvVar}); err != nil {
		return "", err
	}
	if req.IsCrossChain() {
		return "", clierr.New(clierr.CodeUnsupportedRoute, "kyberswap only supports same-chain swaps")
	}
	slug, ok := registry.KyberSwapChainSlug(req.InputChainID)
	if !ok {
		return "", providers.ErrUnsupportedChain(providers.KyberSwap, req.InputChainID)
	}
	return slug, nil
}

func (c *Client) routes(ctx context.Context, slug string, req providers.SwapRequest) (json.RawMessage, error) {
	vals := url.Values{}
	vals.Set("tokenIn", req.InputToken)
	vals.Set("tokenOut", req.OutputToken)
	vals.Set("amountIn", req.AmountString())
	vals.Set("saveGas", "false")
	vals.Set("gasInclude", "true")
	vals.Set("source", c.source(req))
	endpoint := fmt.Sprintf("%s/%s/api/v1/routes?%s", c.baseURL, slug, vals.Encode())
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build kyberswap routes request", err)
	}
	for k, v := range c.headers() {
		hReq.Header.Set(k, v)
	}
	var resp envelope[routesData]
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return nil, providers.NoRoute(err, providers.KyberSwap, noRouteMarkers...)
	}
	if resp.Code != 0 {
		return nil, c.codeError(resp.Code, resp.Message)
	}
	if len(resp.Data.RouteSummary) == 0 || string(resp.Data.RouteSummary) == "null" {
		return nil, providers.ErrNoRoute(providers.KyberSwap, "response has no routeSummary")
	}
	return resp.Data.RouteSummary, nil
}

func (c *Client) source(req providers.SwapRequest) string {
	if c.clientID != "" {
		return c.clientID
	}
	return providers.Attribution(req, c.attribution)
}

func (c *Client) headers() map[string]string {
	return map[string]string{"x-client-id": c.clientID}
}

func (c *Client) codeError(code int, message string) error {
	if code == codeRouteNotFound || strings.Contains(strings.ToLower(message), "route not found") {
		return providers.ErrNoRoute(providers.KyberSwap, message)
	}
	return clierr.Wrap(clierr.CodeUpstream, fmt.Sprintf("kyberswap returned code %d", code),
		&clierr.UpstreamError{Status: http.StatusOK, Body: fmt.Sprintf(`{"code":%d,"message":%q}`, code, message)})
}
