// Package approve builds ERC-20 approvals that let a provider router pull the
// input token, and optionally reads the current allowance over RPC.
package approve

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
	"github.com/ggonzalez94/swapper/internal/model"
	"github.com/ggonzalez94/swapper/internal/providers"
	"github.com/ggonzalez94/swapper/internal/registry"
)

// MaxUint256 is the conventional "unlimited" approval amount.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

var erc20ABI = mustABI(registry.ERC20MinimalABI)

type Request struct {
	Provider providers.ID
	ChainID  int64
	Token    string
	Owner    string
	Spender  string
	Amount   *big.Int
}

// Caller is the read-only slice of ethclient used for allowance lookups.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Build packs approve(spender, amount) for the token. It performs no I/O.
func Build(req Request) (model.Approval, error) {
	if !providers.IsAddress(req.Token) {
		return model.Approval{}, clierr.New(clierr.CodeValidation, "approval token must be a valid address")
	}
	if !providers.IsAddress(req.Spender) {
		return model.Approval{}, clierr.New(clierr.CodeValidation, "approval spender must be a valid address")
	}
	if req.Owner != "" && !providers.IsAddress(req.Owner) {
		return model.Approval{}, clierr.New(clierr.CodeValidation, "approval owner must be a valid address")
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 || req.Amount.Cmp(MaxUint256) > 0 {
		return model.Approval{}, clierr.New(clierr.CodeValidation, "approval amount must be a positive uint256")
	}
	data, err := erc20ABI.Pack("approve", common.HexToAddress(req.Spender), req.Amount)
	if err != nil {
		return model.Approval{}, clierr.Wrap(clierr.CodeInternal, "pack approval calldata", err)
	}
	out := model.Approval{
		Provider: string(req.Provider),
		ChainID:  req.ChainID,
		Token:    common.HexToAddress(req.Token).Hex(),
		Spender:  common.HexToAddress(req.Spender).Hex(),
		Amount:   req.Amount.String(),
		CallData: hexutil.Encode(data),
	}
	if req.Owner != "" {
		out.Owner = common.HexToAddress(req.Owner).Hex()
	}
	return out, nil
}

// Allowance reads allowance(owner, spender) on token.
func Allowance(ctx context.Context, caller Caller, token, owner, spender string) (*big.Int, error) {
	data, err := erc20ABI.Pack("allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack allowance calldata", err)
	}
	tokenAddr := common.HexToAddress(token)
	raw, err := caller.CallContract(ctx, ethereum.CallMsg{From: common.HexToAddress(owner), To: &tokenAddr, Data: data}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, clierr.Wrap(clierr.CodeCancelled, "allowance lookup cancelled", ctx.Err())
		}
		return nil, clierr.Wrap(clierr.CodeUpstream, "read token allowance", &clierr.UpstreamError{Body: err.Error()})
	}
	decoded, err := erc20ABI.Unpack("allowance", raw)
	if err != nil || len(decoded) == 0 {
		return nil, clierr.Wrap(clierr.CodeUpstream, "decode token allowance", &clierr.UpstreamError{Body: hexutil.Encode(raw)})
	}
	value, ok := decoded[0].(*big.Int)
	if !ok || value == nil {
		return nil, clierr.New(clierr.CodeUpstream, "unexpected allowance response type")
	}
	return value, nil
}

// WithAllowance fills CurrentAllowance and Required on approval using caller.
func WithAllowance(ctx context.Context, caller Caller, approval model.Approval) (model.Approval, error) {
	if approval.Owner == "" {
		return approval, clierr.New(clierr.CodeValidation, "allowance check requires an owner address")
	}
	current, err := Allowance(ctx, caller, approval.Token, approval.Owner, approval.Spender)
	if err != nil {
		return approval, err
	}
	amount, ok := new(big.Int).SetString(approval.Amount, 10)
	if !ok {
		return approval, clierr.New(clierr.CodeInternal, fmt.Sprintf("invalid approval amount %q", approval.Amount))
	}
	required := current.Cmp(amount) < 0
	approval.CurrentAllowance = current.String()
	approval.Required = &required
	return approval, nil
}

// Dial connects to rpcURL, falling back to the chain's public endpoint.
func Dial(ctx context.Context, rpcURL string, chainID int64) (*ethclient.Client, error) {
	resolved, err := registry.ResolveRPCURL(rpcURL, chainID)
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, resolved)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUpstream, "connect rpc", &clierr.UpstreamError{Body: err.Error()})
	}
	return client, nil
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
