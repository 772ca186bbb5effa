package socket

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
	keyEnvVar = "SWAPPER_SOCKET_API_KEY"
	// Socket takes slippage in percent.
	defaultSlippagePercent = 1.0
	maxUserTxs             = 14
)

var noRouteMarkers = []string{"no routes", "no route found", "route not found"}

type Client struct {
	http      *httpx.Client
	baseURL   string
	statusURL string
	apiKey    string
	now       func() time.Time
}

func New(httpClient *httpx.Client, apiKey string) *Client {
	return &Client{
		http:      httpClient,
		baseURL:   registry.SocketBaseURL,
		statusURL: registry.SocketStatusURL,
		apiKey:    strings.TrimSpace(apiKey),
		now:       time.Now,
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

func (c *Client) ID() providers.ID { return providers.Socket }

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:          string(providers.Socket),
		Type:          "bridge",
		Shape:         "two-phase",
		RequiresKey:   true,
		KeyEnvVarName: keyEnvVar,
		Capabilities:  []string{"swap.quote", "swap.calldata", "bridge.quote", "bridge.calldata", "bridge.status"},
		CapabilityAuth: []model.ProviderCapabilityAuth{
			{Capability: "bridge.calldata", KeyEnvVar: keyEnvVar},
			{Capability: "bridge.status", KeyEnvVar: keyEnvVar},
		},
		Chains: registry.ChainIDs(string(providers.Socket)),
	}
}

func (c *Client) RouterByChainID() map[int64]string {
	return registry.RoutersByChainID(string(providers.Socket))
}

type response[T any] struct {
	Success bool `json:"success"`
	Result  T    `json:"result"`
}

type quoteResult struct {
	Routes []json.RawMessage `json:"routes"`
}

type buildResult struct {
	TxData   string `json:"txData"`
	TxTarget string `json:"txTarget"`
	ChainID  int64  `json:"chainId"`
	Value    string `json:"value"`
}

type statusResult struct {
	SourceTxStatus             string `json:"sourceTxStatus"`
	DestinationTransactionHash string `json:"destinationTransactionHash"`
	DestinationTxStatus        string `json:"destinationTxStatus"`
}

func (c *Client) Quote(ctx context.Context, req providers.SwapRequest) (providers.Quote, error) {
	if err := c.preflight(req); err != nil {
		return providers.Quote{}, err
	}
	route, err := c.route(ctx, req)
	if err != nil {
		return providers.Quote{}, err
	}
	var amounts struct {
		ToAmount string `json:"toAmount"`
	}
	_ = json.Unmarshal(route, &amounts)
	return providers.Quote{
		Provider:      providers.Socket,
		InputChainID:  req.InputChainID,
		OutputChainID: req.EffectiveOutputChainID(),
		AmountIn:      req.AmountString(),
		AmountOut:     amounts.ToAmount,
		Route:         route,
		FetchedAt:     c.now().UTC(),
	}, nil
}

func (c *Client) CallData(ctx context.Context, req providers.SwapRequest) ([]byte, error) {
	if err := c.preflight(req); err != nil {
		return nil, err
	}
	route, err := c.route(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := providers.BetweenPhases(ctx, providers.Socket); err != nil {
		return nil, err
	}

	body, err := providers.EmbedRaw("route", route, nil)
	if err != nil {
		return nil, err
	}
	var resp response[buildResult]
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+"/build-tx", body, c.headers(), &resp); err != nil {
		return nil, providers.NoRoute(err, providers.Socket, noRouteMarkers...)
	}
	return providers.DecodeCallData(providers.Socket, resp.Result.TxData)
}

// BridgeStatus looks up a transfer once. The transfer is terminal when the
// destination leg settles or either leg fails.
func (c *Client) BridgeStatus(ctx context.Context, req providers.StatusRequest) (model.BridgeStatus, error) {
	if err := providers.RequireCredential(providers.Socket, c.credential()); err != nil {
		return model.BridgeStatus{}, err
	}
	if strings.TrimSpace(req.SourceTxHash) == "" {
		return model.BridgeStatus{}, clierr.New(clierr.CodeValidation, "status lookup requires a source transaction hash")
	}
	vals := url.Values{}
	vals.Set("transactionHash", req.SourceTxHash)
	vals.Set("fromChainId", strconv.FormatInt(req.SourceChainID, 10))
	vals.Set("toChainId", strconv.FormatInt(req.DestinationChainID, 10))
	if req.BridgeName != "" {
		vals.Set("bridgeName", req.BridgeName)
	}
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL+"?"+vals.Encode(), nil)
	if err != nil {
		return model.BridgeStatus{}, clierr.Wrap(clierr.CodeInternal, "build socket status request", err)
	}
	for k, v := range c.headers() {
		hReq.Header.Set(k, v)
	}
	var resp response[statusResult]
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return model.BridgeStatus{}, err
	}

	out := model.BridgeStatus{
		Provider:            string(providers.Socket),
		SourceTxHash:        req.SourceTxHash,
		SourceChainID:       req.SourceChainID,
		DestinationChainID:  req.DestinationChainID,
		SourceTxStatus:      resp.Result.SourceTxStatus,
		DestinationTxHash:   resp.Result.DestinationTransactionHash,
		DestinationTxStatus: resp.Result.DestinationTxStatus,
		State:               model.BridgeStatePending,
	}
	src := strings.ToUpper(resp.Result.SourceTxStatus)
	dst := strings.ToUpper(resp.Result.DestinationTxStatus)
	switch {
	case src == "FAILED" || dst == "FAILED":
		out.State, out.Terminal = model.BridgeStateFailed, true
	case dst == "COMPLETED":
		out.State, out.Terminal = model.BridgeStateSuccess, true
	}
	return out, nil
}

func (c *Client) credential() providers.Credential {
	return providers.Credential{Required: true, Value: c.apiKey, EnvVar: keyEnvVar}
}

func (c *Client) preflight(req providers.SwapRequest) error {
	return providers.Preflight(providers.Socket, req, c.credential())
}

func (c *Client) route(ctx context.Context, req providers.SwapRequest) (json.RawMessage, error) {
	slippage := providers.FormatFloat(providers.SlippagePercent(req, defaultSlippagePercent))
	vals := url.Values{}
	vals.Set("fromChainId", strconv.FormatInt(req.InputChainID, 10))
	vals.Set("toChainId", strconv.FormatInt(req.EffectiveOutputChainID(), 10))
	vals.Set("fromTokenAddress", req.InputToken)
	vals.Set("toTokenAddress", req.OutputToken)
	vals.Set("fromAmount", req.AmountString())
	vals.Set("userAddress", req.Payer)
	vals.Set("recipient", req.EffectiveReceiver())
	vals.Set("singleTxOnly", "true")
	vals.Set("uniqueRoutesPerBridge", "true")
	vals.Set("disableSwapping", "false")
	vals.Set("sort", "output")
	vals.Set("maxUserTxs", strconv.Itoa(maxUserTxs))
	vals.Set("bridgeWithGas", "false")
	vals.Set("bridgeWithInsurance", "false")
	vals.Set("isContractCall", "true")
	vals.Set("defaultBridgeSlippage", slippage)
	vals.Set("defaultSwapSlippage", slippage)

	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+vals.Encode(), nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build socket quote request", err)
	}
	for k, v := range c.headers() {
		hReq.Header.Set(k, v)
	}
	var resp response[quoteResult]
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return nil, providers.NoRoute(err, providers.Socket, noRouteMarkers...)
	}
	if len(resp.Result.Routes) == 0 {
		return nil, providers.ErrNoRoute(providers.Socket, "")
	}
	return resp.Result.Routes[0], nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{"API-KEY": c.apiKey}
}
