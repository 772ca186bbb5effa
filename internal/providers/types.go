package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ggonzalez94/swapper/internal/model"
)

// ID names a supported aggregator backend.
type ID string

const (
	OneInch   ID = "ONE_INCH"
	ZeroX     ID = "ZERO_X"
	ParaSwap  ID = "PARASWAP"
	KyberSwap ID = "KYBERSWAP"
	LiFi      ID = "LIFI"
	Socket    ID = "SOCKET"
)

var allIDs = []ID{OneInch, ZeroX, ParaSwap, KyberSwap, LiFi, Socket}

var idAliases = map[string]ID{
	"1inch":     OneInch,
	"oneinch":   OneInch,
	"one_inch":  OneInch,
	"0x":        ZeroX,
	"zerox":     ZeroX,
	"zero_x":    ZeroX,
	"paraswap":  ParaSwap,
	"velora":    ParaSwap,
	"kyberswap": KyberSwap,
	"kyber":     KyberSwap,
	"lifi":      LiFi,
	"li.fi":     LiFi,
	"socket":    Socket,
	"bungee":    Socket,
}

// IDs lists every provider identifier in a stable order.
func IDs() []ID {
	return append([]ID(nil), allIDs...)
}

// ParseID accepts the canonical identifier or a common alias.
func ParseID(input string) (ID, bool) {
	norm := strings.ToLower(strings.TrimSpace(input))
	if norm == "" {
		return "", false
	}
	if id, ok := idAliases[norm]; ok {
		return id, true
	}
	for _, id := range allIDs {
		if strings.EqualFold(string(id), norm) {
			return id, true
		}
	}
	return "", false
}

// SwapRequest is the canonical, provider-agnostic swap or bridge request.
type SwapRequest struct {
	Provider      ID
	InputToken    string
	OutputToken   string
	InputChainID  int64
	OutputChainID *int64
	AmountWei     *big.Int
	Payer         string
	Receiver      string
	Referrer      string
	Project       string
	// MaxSlippage is a fraction, 0.01 = 1%. Zero selects the provider default.
	MaxSlippage float64
	// Deadline is a unix timestamp in seconds. Zero means unset.
	Deadline int64
}

// EffectiveOutputChainID is the destination chain, the input chain for
// same-chain swaps.
func (r SwapRequest) EffectiveOutputChainID() int64 {
	if r.OutputChainID != nil {
		return *r.OutputChainID
	}
	return r.InputChainID
}

func (r SwapRequest) EffectiveReceiver() string {
	if strings.TrimSpace(r.Receiver) != "" {
		return r.Receiver
	}
	return r.Payer
}

func (r SwapRequest) IsCrossChain() bool {
	return r.EffectiveOutputChainID() != r.InputChainID
}

// AmountString is the wire form of AmountWei: a plain decimal integer.
func (r SwapRequest) AmountString() string {
	if r.AmountWei == nil {
		return "0"
	}
	return r.AmountWei.String()
}

func (r SwapRequest) String() string {
	provider := string(r.Provider)
	if provider == "" {
		provider = "default"
	}
	return fmt.Sprintf("swap: %d:%s (%s wei) -> %d:%s via %s",
		r.InputChainID, ShortAddress(r.InputToken), CompactAmount(r.AmountWei),
		r.EffectiveOutputChainID(), ShortAddress(r.OutputToken), provider)
}

// Quote is a provider-shaped intermediate result. Route holds the provider's
// route object exactly as received and is only meaningful to the adapter that
// produced it.
type Quote struct {
	Provider      ID
	InputChainID  int64
	OutputChainID int64
	AmountIn      string
	AmountOut     string
	Route         json.RawMessage
	FetchedAt     time.Time
}

type StatusRequest struct {
	SourceTxHash       string
	SourceChainID      int64
	DestinationChainID int64
	BridgeName         string
}

// Aggregator is the contract every provider adapter implements. Adapters hold
// only immutable configuration and are safe for concurrent use.
type Aggregator interface {
	ID() ID
	Info() model.ProviderInfo
	RouterByChainID() map[int64]string
	Quote(ctx context.Context, req SwapRequest) (Quote, error)
	CallData(ctx context.Context, req SwapRequest) ([]byte, error)
}

// StatusProvider is implemented by bridge adapters that expose a transfer
// status endpoint. Each call is a single idempotent lookup.
type StatusProvider interface {
	BridgeStatus(ctx context.Context, req StatusRequest) (model.BridgeStatus, error)
}
