package oneinch

import (
	"context"
	"encoding/json"
	"fmt"
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
	keyEnvVar = "SWAPPER_ONE_INCH_API_KEY"
	// 1inch takes slippage in percent.
	defaultSlippagePercent = 0.1
)

var noRouteMarkers = []string{"insufficient liquidity", "no route", "cannot estimate"}

type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

func New(httpClient *httpx.Client, apiKey string) *Client {
	return &Client{http: httpClient, baseURL: registry.OneInchBaseURL, apiKey: strings.TrimSpace(apiKey), now: time.Now}
}

func (c *Client) ID() providers.ID { return providers.OneInch }

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:          string(providers.OneInch),
		Type:          "swap",
		Shape:         "single-phase",
		RequiresKey:   true,
		KeyEnvVarName: keyEnvVar,
		Capabilities:  []string{"swap.quote", "swap.calldata"},
		CapabilityAuth: []model.ProviderCapabilityAuth{
			{Capability: "swap.calldata", KeyEnvVar: keyEnvVar},
			{Capability: "swap.quote", KeyEnvVar: keyEnvVar},
		},
		Chains: registry.ChainIDs(string(providers.OneInch)),
	}
}

func (c *Client) RouterByChainID() map[int64]string {
	return registry.RoutersByChainID(string(providers.OneInch))
}

type swapResponse struct {
	ToAmount string `json:"toAmount"`
	Tx       struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	} `json:"tx"`
}

type quoteResponse struct {
	ToAmount string `json:"toAmount"`
}

func (c *Client) CallData(ctx context.Context, req providers.SwapRequest) ([]byte, error) {
	if err := c.preflight(req); err != nil {
		return nil, err
	}
	var resp swapResponse
	if err := c.get(ctx, req.InputChainID, "swap", c.params(req), &resp); err != nil {
		return nil, err
	}
	return providers.DecodeCallData(providers.OneInch, resp.Tx.Data)
}

func (c *Client) Quote(ctx context.Context, req providers.SwapRequest) (providers.Quote, error) {
	if err := c.preflight(req); err != nil {
		return providers.Quote{}, err
	}
	var raw json.RawMessage
	if err := c.get(ctx, req.InputChainID, "quote", c.params(req), &raw); err != nil {
		return providers.Quote{}, err
	}
	var resp quoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.ToAmount == "" {
		return providers.Quote{}, clierr.Wrap(clierr.CodeUpstream, "1inch quote missing destination amount", &clierr.UpstreamError{Status: http.StatusOK, Body: string(raw)})
	}
	return providers.Quote{
		Provider:      providers.OneInch,
		InputChainID:  req.InputChainID,
		OutputChainID: req.InputChainID,
		AmountIn:      req.AmountString(),
		AmountOut:     resp.ToAmount,
		Route:         raw,
		FetchedAt:     c.now().UTC(),
	}, nil
}

func (c *Client) preflight(req providers.SwapRequest) error {
	if err := providers.Preflight(providers.OneInch, req, providers.Credential{Required: true, Value: c.apiKey, EnvVar: keyEnvVar}); err != nil {
		return err
	}
	if req.IsCrossChain() {
		return clierr.New(clierr.CodeUnsupportedRoute, "1inch only supports same-chain swaps")
	}
	return nil
}

// params is the query shared by the quote and swap endpoints.
func (c *Client) params(req providers.SwapRequest) url.Values {
	vals := url.Values{}
	vals.Set("src", req.InputToken)
	vals.Set("dst", req.OutputToken)
	vals.Set("amount", req.AmountString())
	vals.Set("from", req.Payer)
	vals.Set("slippage", providers.FormatFloat(providers.SlippagePercent(req, defaultSlippagePercent)))
	vals.Set("disableEstimate", "true")
	vals.Set("includeGas", "true")
	vals.Set("compatibility", "false")
	if receiver := req.EffectiveReceiver(); !strings.EqualFold(receiver, req.Payer) {
		vals.Set("receiver", receiver)
	}
	if providers.IsAddress(req.Referrer) {
		vals.Set("referrer", req.Referrer)
	}
	return vals
}

func (c *Client) get(ctx context.Context, chainID int64, op string, vals url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/swap/v5.2/%s/%s?%s", c.baseURL, strconv.FormatInt(chainID, 10), op, vals.Encode())
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "build 1inch "+op+" request", err)
	}
	hReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	_, err = c.http.DoJSON(ctx, hReq, out)
	return providers.NoRoute(err, providers.OneInch, noRouteMarkers...)
}
