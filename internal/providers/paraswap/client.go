package paraswap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/httpx"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/providers"
	"github.com/ggonzalez94/swapper/internal/registry"
)

const defaultSlippageBps = 10

var noRouteMarkers = []string{"no routes found", "insufficient liquidity", "estimated_loss_greater_than_max_impact"}

type Client struct {
	http        *httpx.Client
	baseURL     string
	attribution string
	now         func() time.Time
}

// New builds a keyless ParaSwap client. attribution is sent as the partner
// name when a request carries no project.
func New(httpClient *httpx.Client, attribution string) *Client {
	return &Client{http: httpClient, baseURL: registry.ParaSwapBaseURL, attribution: attribution, now: time.Now}
}

func (c *Client) ID() providers.ID { return providers.ParaSwap }

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:         string(providers.ParaSwap),
		Type:         "swap",
		Shape:        "two-phase",
		RequiresKey:  false,
		Capabilities: []string{"swap.quote", "swap.calldata"},
		Chains:       registry.ChainIDs(string(providers.ParaSwap)),
	}
}

func (c *Client) RouterByChainID() map[int64]string {
	return registry.RoutersByChainID(string(providers.ParaSwap))
}

type pricesResponse struct {
	PriceRoute json.RawMessage `json:"priceRoute"`
}

type buildBody struct {
	SrcToken    string `json:"srcToken"`
	DestToken   string `json:"destToken"`
	SrcAmount   string `json:"srcAmount"`
	UserAddress string `json:"userAddress"`
	Receiver    string `json:"receiver"`
	Slippage    int64  `json:"slippage"`
	Deadline    int64  `json:"deadline"`
	Partner     string `json:"partner"`
}

type buildResponse struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data"`
}

func (c *Client) Quote(ctx context.Context, req providers.SwapRequest) (providers.Quote, error) {
	if err := c.preflight(req); err != nil {
		return providers.Quote{}, err
	}
	route, err := c.prices(ctx, req)
	if err != nil {
		return providers.Quote{}, err
	}
	var summary struct {
		DestAmount string `json:"destAmount"`
	}
	_ = json.Unmarshal(route, &summary)
	return providers.Quote{
		Provider:      providers.ParaSwap,
		InputChainID:  req.InputChainID,
		OutputChainID: req.InputChainID,
		AmountIn:      req.AmountString(),
		AmountOut:     summary.DestAmount,
		Route:         route,
		FetchedAt:     c.now().UTC(),
	}, nil
}

func (c *Client) CallData(ctx context.Context, req providers.SwapRequest) ([]byte, error) {
	if err := c.preflight(req); err != nil {
		return nil, err
	}
	route, err := c.prices(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := providers.BetweenPhases(ctx, providers.ParaSwap); err != nil {
		return nil, err
	}

	body, err := providers.EmbedRaw("priceRoute", route, buildBody{
		SrcToken:    req.InputToken,
		DestToken:   req.OutputToken,
		SrcAmount:   req.AmountString(),
		UserAddress: req.Payer,
		Receiver:    req.EffectiveReceiver(),
		Slippage:    providers.SlippageBps(req, defaultSlippageBps),
		Deadline:    providers.Deadline(req, c.now()),
		Partner:     providers.Attribution(req, c.attribution),
	})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/transactions/%d?ignoreGasEstimate=true", c.baseURL, req.InputChainID)
	var resp buildResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, endpoint, body, nil, &resp); err != nil {
		return nil, providers.NoRoute(err, providers.ParaSwap, noRouteMarkers...)
	}
	return providers.DecodeCallData(providers.ParaSwap, resp.Data)
}

func (c *Client) preflight(req providers.SwapRequest) error {
	if err := providers.Preflight(providers.ParaSwap, req, providers.Credential{}); err != nil {
		return err
	}
	if req.IsCrossChain() {
		return clierr.New(clierr.CodeUnsupportedRoute, "paraswap only supports same-chain swaps")
	}
	return nil
}

func (c *Client) prices(ctx context.Context, req providers.SwapRequest) (json.RawMessage, error) {
	vals := url.Values{}
	vals.Set("srcToken", req.InputToken)
	vals.Set("destToken", req.OutputToken)
	vals.Set("amount", req.AmountString())
	endpoint := fmt.Sprintf("%s/prices/%d?%s", c.baseURL, req.InputChainID, vals.Encode())
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build paraswap prices request", err)
	}
	var resp pricesResponse
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return nil, providers.NoRoute(err, providers.ParaSwap, noRouteMarkers...)
	}
	if len(resp.PriceRoute) == 0 || string(resp.PriceRoute) == "null" {
		return nil, providers.ErrNoRoute(providers.ParaSwap, "response has no priceRoute")
	}
	return resp.PriceRoute, nil
}
