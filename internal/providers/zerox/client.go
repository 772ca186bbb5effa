package zerox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/httpx"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/providers"
	"github.com/ggonzalez94/swapper/internal/registry"
)

const (
	keyEnvVar          = "SWAPPER_ZERO_X_API_KEY"
	apiVersion         = "v2"
	defaultSlippageBps = 100
)

var noRouteMarkers = []string{"insufficient_liquidity", "no liquidity", "token_not_supported"}

type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

func New(httpClient *httpx.Client, apiKey string) *Client {
	return &Client{http: httpClient, baseURL: registry.ZeroXBaseURL, apiKey: strings.TrimSpace(apiKey), now: time.Now}
}

func (c *Client) ID() providers.ID { return providers.ZeroX }

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:          string(providers.ZeroX),
		Type:          "swap",
		Shape:         "single-phase",
		RequiresKey:   true,
		KeyEnvVarName: keyEnvVar,
		Capabilities:  []string{"swap.quote", "swap.calldata"},
		CapabilityAuth: []model.ProviderCapabilityAuth{
			{Capability: "swap.calldata", KeyEnvVar: keyEnvVar},
			{Capability: "swap.quote", KeyEnvVar: keyEnvVar},
		},
		Chains: registry.ChainIDs(string(providers.ZeroX)),
	}
}

func (c *Client) RouterByChainID() map[int64]string {
	return registry.RoutersByChainID(string(providers.ZeroX))
}

type swapResponse struct {
	LiquidityAvailable *bool  `json:"liquidityAvailable"`
	BuyAmount          string `json:"buyAmount"`
	Transaction        struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	} `json:"transaction"`
}

func (r swapResponse) noLiquidity() bool {
	return r.LiquidityAvailable != nil && !*r.LiquidityAvailable
}

func (c *Client) CallData(ctx context.Context, req providers.SwapRequest) ([]byte, error) {
	if err := c.preflight(req); err != nil {
		return nil, err
	}
	var resp swapResponse
	if _, err := c.get(ctx, "quote", c.params(req), &resp); err != nil {
		return nil, err
	}
	if resp.noLiquidity() {
		return nil, providers.ErrNoRoute(providers.ZeroX, "no liquidity available")
	}
	return providers.DecodeCallData(providers.ZeroX, resp.Transaction.Data)
}

func (c *Client) Quote(ctx context.Context, req providers.SwapRequest) (providers.Quote, error) {
	if err := c.preflight(req); err != nil {
		return providers.Quote{}, err
	}
	raw, err := c.get(ctx, "price", c.params(req), nil)
	if err != nil {
		return providers.Quote{}, err
	}
	var resp swapResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return providers.Quote{}, clierr.Wrap(clierr.CodeUpstream, "decode 0x price", &clierr.UpstreamError{Status: http.StatusOK, Body: string(raw)})
	}
	if resp.noLiquidity() {
		return providers.Quote{}, providers.ErrNoRoute(providers.ZeroX, "no liquidity available")
	}
	return providers.Quote{
		Provider:      providers.ZeroX,
		InputChainID:  req.InputChainID,
		OutputChainID: req.InputChainID,
		AmountIn:      req.AmountString(),
		AmountOut:     resp.BuyAmount,
		Route:         raw,
		FetchedAt:     c.now().UTC(),
	}, nil
}

func (c *Client) preflight(req providers.SwapRequest) error {
	if err := providers.Preflight(providers.ZeroX, req, providers.Credential{Required: true, Value: c.apiKey, EnvVar: keyEnvVar}); err != nil {
		return err
	}
	if req.IsCrossChain() {
		return clierr.New(clierr.CodeUnsupportedRoute, "0x only supports same-chain swaps")
	}
	return nil
}

func (c *Client) params(req providers.SwapRequest) url.Values {
	vals := url.Values{}
	vals.Set("chainId", strconv.FormatInt(req.InputChainID, 10))
	vals.Set("sellToken", req.InputToken)
	vals.Set("buyToken", req.OutputToken)
	vals.Set("sellAmount", req.AmountString())
	vals.Set("taker", req.Payer)
	vals.Set("slippageBps", strconv.FormatInt(providers.SlippageBps(req, defaultSlippageBps), 10))
	if receiver := req.EffectiveReceiver(); !strings.EqualFold(receiver, req.Payer) {
		vals.Set("recipient", receiver)
	}
	if providers.IsAddress(req.Referrer) {
		vals.Set("tradeSurplusRecipient", req.Referrer)
	}
	return vals
}

// get issues an allowance-holder request and returns the raw body. When out is
// non-nil the body is also decoded into it.
func (c *Client) get(ctx context.Context, op string, vals url.Values, out any) (json.RawMessage, error) {
	endpoint := c.baseURL + "/swap/allowance-holder/" + op + "?" + vals.Encode()
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build 0x "+op+" request", err)
	}
	hReq.Header.Set("0x-api-key", c.apiKey)
	hReq.Header.Set("0x-version", apiVersion)
	var raw json.RawMessage
	if _, err := c.http.DoJSON(ctx, hReq, &raw); err != nil {
		return nil, providers.NoRoute(err, providers.ZeroX, noRouteMarkers...)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, clierr.Wrap(clierr.CodeUpstream, "decode 0x "+op, &clierr.UpstreamError{Status: http.StatusOK, Body: string(raw)})
		}
	}
	return raw, nil
}
