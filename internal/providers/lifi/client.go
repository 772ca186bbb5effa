package lifi

import (
	"bytes"
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
	keyEnvVar = "SWAPPER_LIFI_API_KEY"
	// LI.FI takes slippage as a fraction.
	defaultSlippage = 0.005
)

var noRouteMarkers = []string{"no available quotes", "no routes", "no possible route"}

type Client struct {
	http        *httpx.Client
	baseURL     string
	statusURL   string
	apiKey      string
	attribution string
	now         func() time.Time
}

// New builds a LI.FI client. The API key is optional and only raises rate
// limits.
func New(httpClient *httpx.Client, apiKey, attribution string) *Client {
	return &Client{
		http:        httpClient,
		baseURL:     registry.LiFiBaseURL,
		statusURL:   registry.LiFiStatusURL,
		apiKey:      strings.TrimSpace(apiKey),
		attribution: attribution,
		now:         time.Now,
	}
}

// WithStatusURL overrides the status endpoint. Callers are expected to check
// it with registry.IsAllowedStatusURL first.
func (c *Client) WithStatusURL(endpoint string) *Client {
	if strings.TrimSpace(endpoint) != "" {
		c.statusURL = strings.TrimSpace(endpoint)
	}
	return c
}

func (c *Client) ID() providers.ID { return providers.LiFi }

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:          string(providers.LiFi),
		Type:          "bridge",
		Shape:         "two-phase",
		RequiresKey:   false,
		KeyEnvVarName: keyEnvVar,
		Capabilities:  []string{"swap.quote", "swap.calldata", "bridge.quote", "bridge.calldata", "bridge.status"},
		CapabilityAuth: []model.ProviderCapabilityAuth{
			{Capability: "bridge.calldata", KeyEnvVar: keyEnvVar, Description: "optional, raises rate limits"},
		},
		Chains: registry.ChainIDs(string(providers.LiFi)),
	}
}

func (c *Client) RouterByChainID() map[int64]string {
	return registry.RoutersByChainID(string(providers.LiFi))
}

type routesRequest struct {
	FromChainID      int64         `json:"fromChainId"`
	ToChainID        int64         `json:"toChainId"`
	FromTokenAddress string        `json:"fromTokenAddress"`
	ToTokenAddress   string        `json:"toTokenAddress"`
	FromAmount       string        `json:"fromAmount"`
	FromAddress      string        `json:"fromAddress"`
	ToAddress        string        `json:"toAddress"`
	Options          routesOptions `json:"options"`
}

type routesOptions struct {
	Slippage         float64 `json:"slippage"`
	Integrator       string  `json:"integrator"`
	Referrer         string  `json:"referrer,omitempty"`
	Order            string  `json:"order"`
	AllowSwitchChain bool    `json:"allowSwitchChain"`
}

type routesResponse struct {
	Routes []struct {
		ID       string            `json:"id"`
		ToAmount string            `json:"toAmount"`
		Steps    []json.RawMessage `json:"steps"`
	} `json:"routes"`
}

type stepTransactionResponse struct {
	TransactionRequest struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	} `json:"transactionRequest"`
}

type statusResponse struct {
	Status    string `json:"status"`
	Substatus string `json:"substatus"`
	Sending   struct {
		TxHash  string `json:"txHash"`
		ChainID int64  `json:"chainId"`
	} `json:"sending"`
	Receiving struct {
		TxHash  string `json:"txHash"`
		ChainID int64  `json:"chainId"`
	} `json:"receiving"`
}

func (c *Client) Quote(ctx context.Context, req providers.SwapRequest) (providers.Quote, error) {
	if err := c.preflight(req); err != nil {
		return providers.Quote{}, err
	}
	step, toAmount, err := c.route(ctx, req)
	if err != nil {
		return providers.Quote{}, err
	}
	return providers.Quote{
		Provider:      providers.LiFi,
		InputChainID:  req.InputChainID,
		OutputChainID: req.EffectiveOutputChainID(),
		AmountIn:      req.AmountString(),
		AmountOut:     toAmount,
		Route:         step,
		FetchedAt:     c.now().UTC(),
	}, nil
}

func (c *Client) CallData(ctx context.Context, req providers.SwapRequest) ([]byte, error) {
	if err := c.preflight(req); err != nil {
		return nil, err
	}
	step, _, err := c.route(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := providers.BetweenPhases(ctx, providers.LiFi); err != nil {
		return nil, err
	}

	var resp stepTransactionResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+"/advanced/stepTransaction", step, c.headers(), &resp); err != nil {
		return nil, providers.NoRoute(err, providers.LiFi, noRouteMarkers...)
	}
	return providers.DecodeCallData(providers.LiFi, resp.TransactionRequest.Data)
}

// BridgeStatus looks up a transfer once. NOT_FOUND is reported as pending since
// LI.FI indexes source transactions with a delay.
func (c *Client) BridgeStatus(ctx context.Context, req providers.StatusRequest) (model.BridgeStatus, error) {
	if strings.TrimSpace(req.SourceTxHash) == "" {
		return model.BridgeStatus{}, clierr.New(clierr.CodeValidation, "status lookup requires a source transaction hash")
	}
	vals := url.Values{}
	vals.Set("txHash", req.SourceTxHash)
	if req.SourceChainID > 0 {
		vals.Set("fromChain", strconv.FormatInt(req.SourceChainID, 10))
	}
	if req.DestinationChainID > 0 {
		vals.Set("toChain", strconv.FormatInt(req.DestinationChainID, 10))
	}
	if req.BridgeName != "" {
		vals.Set("bridge", req.BridgeName)
	}
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL+"?"+vals.Encode(), nil)
	if err != nil {
		return model.BridgeStatus{}, clierr.Wrap(clierr.CodeInternal, "build lifi status request", err)
	}
	for k, v := range c.headers() {
		hReq.Header.Set(k, v)
	}
	var resp statusResponse
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return model.BridgeStatus{}, err
	}

	out := model.BridgeStatus{
		Provider:           string(providers.LiFi),
		SourceTxHash:       req.SourceTxHash,
		SourceChainID:      req.SourceChainID,
		DestinationChainID: req.DestinationChainID,
		SourceTxStatus:     resp.Status,
		DestinationTxHash:  resp.Receiving.TxHash,
		Substatus:          resp.Substatus,
		State:              model.BridgeStatePending,
	}
	if out.DestinationChainID == 0 {
		out.DestinationChainID = resp.Receiving.ChainID
	}
	switch strings.ToUpper(resp.Status) {
	case "DONE":
		// A refunded transfer is DONE on the source side but never delivered.
		if strings.EqualFold(resp.Substatus, "REFUNDED") {
			out.State, out.Terminal = model.BridgeStateFailed, true
		} else {
			out.State, out.Terminal = model.BridgeStateSuccess, true
		}
	case "FAILED", "INVALID":
		out.State, out.Terminal = model.BridgeStateFailed, true
	}
	return out, nil
}

func (c *Client) preflight(req providers.SwapRequest) error {
	return providers.Preflight(providers.LiFi, req, providers.Credential{Value: c.apiKey, EnvVar: keyEnvVar})
}

// route asks for advanced routes and returns the only step of the first
// single-step route, exactly as received.
func (c *Client) route(ctx context.Context, req providers.SwapRequest) (json.RawMessage, string, error) {
	body, err := json.Marshal(routesRequest{
		FromChainID:      req.InputChainID,
		ToChainID:        req.EffectiveOutputChainID(),
		FromTokenAddress: req.InputToken,
		ToTokenAddress:   req.OutputToken,
		FromAmount:       req.AmountString(),
		FromAddress:      req.Payer,
		ToAddress:        req.EffectiveReceiver(),
		Options: routesOptions{
			Slippage:         providers.SlippageFraction(req, defaultSlippage),
			Integrator:       providers.Attribution(req, c.attribution),
			Referrer:         strings.TrimSpace(req.Referrer),
			Order:            "RECOMMENDED",
			AllowSwitchChain: false,
		},
	})
	if err != nil {
		return nil, "", clierr.Wrap(clierr.CodeInternal, "encode lifi routes request", err)
	}
	var resp routesResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+"/advanced/routes", body, c.headers(), &resp); err != nil {
		return nil, "", providers.NoRoute(err, providers.LiFi, noRouteMarkers...)
	}
	for _, r := range resp.Routes {
		if len(r.Steps) == 1 && len(bytes.TrimSpace(r.Steps[0])) > 0 {
			return r.Steps[0], r.ToAmount, nil
		}
	}
	if len(resp.Routes) == 0 {
		return nil, "", providers.ErrNoRoute(providers.LiFi, "")
	}
	return nil, "", providers.ErrNoRoute(providers.LiFi, "only multi-step routes available")
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-lifi-api-key": c.apiKey}
}
