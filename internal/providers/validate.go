package providers

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
)

// Validate reports whether req may be sent to a provider. It never touches the
// network and never panics.
func Validate(req SwapRequest) bool {
	return ValidateDetail(req) == nil
}

// ValidateDetail returns a CodeValidation error naming the first violated rule:
// input token, output token and payer must be addresses, the input chain id
// non-negative and the amount positive.
func ValidateDetail(req SwapRequest) error {
	if !IsAddress(req.InputToken) {
		return invalid("input token is not a valid address")
	}
	if !IsAddress(req.OutputToken) {
		return invalid("output token is not a valid address")
	}
	if !IsAddress(req.Payer) {
		return invalid("payer is not a valid address")
	}
	if req.InputChainID < 0 {
		return invalid("input chain id must be >= 0")
	}
	if req.AmountWei == nil || req.AmountWei.Sign() <= 0 {
		return invalid("amount must be a positive integer")
	}
	return nil
}

// checkOptions rejects malformed optional fields. Unset fields always pass.
func checkOptions(req SwapRequest) error {
	if strings.TrimSpace(req.Receiver) != "" && !IsAddress(req.Receiver) {
		return invalid("receiver is not a valid address")
	}
	if req.OutputChainID != nil && *req.OutputChainID < 0 {
		return invalid("output chain id must be >= 0")
	}
	if req.MaxSlippage < 0 || req.MaxSlippage >= 1 {
		return invalid("max slippage must be a fraction in [0, 1)")
	}
	if req.Deadline < 0 {
		return invalid("deadline must be a unix timestamp")
	}
	return nil
}

// IsAddress accepts 0x-prefixed 20-byte hex in all-lower, all-upper, or valid
// EIP-55 mixed case.
func IsAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return false
	}
	body := s[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(s).Hex() == s
}

func invalid(msg string) error {
	return clierr.New(clierr.CodeValidation, msg)
}

// Preflight runs the checks every adapter performs before any network call:
// the credential first, then request validation, then the optional fields.
func Preflight(id ID, req SwapRequest, cred Credential) error {
	if err := cred.require(id); err != nil {
		return err
	}
	err := ValidateDetail(req)
	if err == nil {
		err = checkOptions(req)
	}
	if err != nil {
		cErr, _ := clierr.As(err)
		return clierr.New(clierr.CodeValidation, fmt.Sprintf("%s request rejected: %s", id, cErr.Message))
	}
	return nil
}

// Credential describes the key an adapter needs. A zero Credential means the
// provider needs none.
type Credential struct {
	Required bool
	Value    string
	EnvVar   string
}

func (c Credential) require(id ID) error {
	if !c.Required || strings.TrimSpace(c.Value) != "" {
		return nil
	}
	return clierr.New(clierr.CodeConfiguration, fmt.Sprintf("missing required API key for %s (%s)", id, c.EnvVar))
}

// RequireCredential is the credential half of Preflight for calls that carry
// no swap request, such as status lookups.
func RequireCredential(id ID, cred Credential) error {
	return cred.require(id)
}
