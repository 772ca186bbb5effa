package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/id"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/providers"
)

// RequestInput is the user-facing form of a swap request shared by the CLI
// flags and the HTTP API body. Chains and tokens accept anything id.ParseChain
// and id.ParseAsset understand.
type RequestInput struct {
	Provider      string  `json:"provider,omitempty"`
	InputChain    string  `json:"input_chain"`
	OutputChain   string  `json:"output_chain,omitempty"`
	InputToken    string  `json:"input_token"`
	OutputToken   string  `json:"output_token"`
	Amount        string  `json:"amount,omitempty"`
	AmountDecimal string  `json:"amount_decimal,omitempty"`
	Payer         string  `json:"payer"`
	Receiver      string  `json:"receiver,omitempty"`
	Referrer      string  `json:"referrer,omitempty"`
	Project       string  `json:"project,omitempty"`
	MaxSlippage   float64 `json:"max_slippage,omitempty"`
	Deadline      int64   `json:"deadline,omitempty"`
}

// BuildRequest resolves in into a SwapRequest. An empty provider is left
// empty so the dispatcher picks its default.
func BuildRequest(in RequestInput, defaultProject string) (providers.SwapRequest, error) {
	var req providers.SwapRequest

	if strings.TrimSpace(in.Provider) != "" {
		pid, ok := providers.ParseID(in.Provider)
		if !ok {
			return req, clierr.New(clierr.CodeUnknownProvider, fmt.Sprintf("unknown provider %q", in.Provider))
		}
		req.Provider = pid
	}

	inChain, err := id.ParseChain(in.InputChain)
	if err != nil {
		return req, err
	}
	outChain := inChain
	if strings.TrimSpace(in.OutputChain) != "" {
		outChain, err = id.ParseChain(in.OutputChain)
		if err != nil {
			return req, err
		}
		outID := outChain.ChainID
		req.OutputChainID = &outID
	}

	inAsset, err := id.ParseAsset(in.InputToken, inChain)
	if err != nil {
		return req, err
	}
	outAsset, err := id.ParseAsset(in.OutputToken, outChain)
	if err != nil {
		return req, err
	}

	if strings.TrimSpace(in.AmountDecimal) != "" && inAsset.Symbol == "" {
		return req, clierr.New(clierr.CodeValidation, "input token decimals unknown; pass the amount in base units")
	}
	amount, err := id.ParseAmount(in.Amount, in.AmountDecimal, inAsset.Decimals)
	if err != nil {
		return req, err
	}

	project := strings.TrimSpace(in.Project)
	if project == "" {
		project = defaultProject
	}

	req.InputChainID = inChain.ChainID
	req.InputToken = inAsset.Address
	req.OutputToken = outAsset.Address
	req.AmountWei = amount
	req.Payer = strings.TrimSpace(in.Payer)
	req.Receiver = strings.TrimSpace(in.Receiver)
	req.Referrer = strings.TrimSpace(in.Referrer)
	req.Project = project
	req.MaxSlippage = in.MaxSlippage
	req.Deadline = in.Deadline
	return req, nil
}

// BuildStatusRequest resolves the arguments of a bridge status lookup.
func BuildStatusRequest(provider, txHash, fromChain, toChain, bridge string) (providers.ID, providers.StatusRequest, error) {
	var pid providers.ID
	if strings.TrimSpace(provider) != "" {
		parsed, ok := providers.ParseID(provider)
		if !ok {
			return "", providers.StatusRequest{}, clierr.New(clierr.CodeUnknownProvider, fmt.Sprintf("unknown provider %q", provider))
		}
		pid = parsed
	}
	hash := strings.TrimSpace(txHash)
	if b, err := hexutil.Decode(hash); err != nil || len(b) != 32 {
		return "", providers.StatusRequest{}, clierr.New(clierr.CodeValidation, "transaction hash must be 0x-prefixed 32-byte hex")
	}
	from, err := id.ParseChain(fromChain)
	if err != nil {
		return "", providers.StatusRequest{}, err
	}
	to, err := id.ParseChain(toChain)
	if err != nil {
		return "", providers.StatusRequest{}, err
	}
	return pid, providers.StatusRequest{
		SourceTxHash:       hash,
		SourceChainID:      from.ChainID,
		DestinationChainID: to.ChainID,
		BridgeName:         strings.TrimSpace(bridge),
	}, nil
}

// Prepare checks that the provider has a router on the input chain, then
// fetches the call data for req.
func (d *Dispatcher) Prepare(ctx context.Context, req providers.SwapRequest) (model.CallData, error) {
	a, err := d.Resolve(req.Provider)
	if err != nil {
		return model.CallData{}, err
	}
	req.Provider = a.ID()
	router, ok := a.RouterByChainID()[req.InputChainID]
	if !ok {
		return model.CallData{}, clierr.New(clierr.CodeUnsupportedRoute, fmt.Sprintf("%s has no router on chain %d", a.ID(), req.InputChainID))
	}
	data, err := d.CallData(ctx, req)
	if err != nil {
		return model.CallData{}, err
	}
	return model.CallData{
		Provider:      string(a.ID()),
		ChainID:       req.InputChainID,
		OutputChainID: req.EffectiveOutputChainID(),
		Router:        router,
		CallData:      hexutil.Encode(data),
		Bytes:         len(data),
		Summary:       req.String(),
	}, nil
}

// QuoteView converts an adapter quote into its output shape. The route is
// passed through untouched.
func QuoteView(q providers.Quote) model.Quote {
	return model.Quote{
		Provider:      string(q.Provider),
		ChainID:       q.InputChainID,
		OutputChainID: q.OutputChainID,
		AmountIn:      q.AmountIn,
		AmountOut:     q.AmountOut,
		Route:         q.Route,
		FetchedAt:     q.FetchedAt.UTC().Format(time.RFC3339),
	}
}

// Routers lists router entries for one provider, or for every registered
// provider when id is empty.
func (d *Dispatcher) Routers(pid providers.ID) ([]model.RouterEntry, error) {
	var adapters []providers.Aggregator
	if pid == "" {
		for _, a := range d.adapters {
			adapters = append(adapters, a)
		}
	} else {
		a, err := d.Resolve(pid)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}

	var out []model.RouterEntry
	for _, a := range adapters {
		for chainID, router := range a.RouterByChainID() {
			entry := model.RouterEntry{Provider: string(a.ID()), ChainID: chainID, Router: router}
			if chain, ok := id.ChainByID(chainID); ok {
				entry.Chain = chain.Slug
			}
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ChainID < out[j].ChainID
	})
	return out, nil
}
