package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code           int    `json:"code"`
	Type           string `json:"type"`
	Message        string `json:"message"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamBody   string `json:"upstream_body,omitempty"`
}

type EnvelopeMeta struct {
	RequestID string           `json:"request_id"`
	Timestamp time.Time        `json:"timestamp"`
	Command   string           `json:"command"`
	Providers []ProviderStatus `json:"providers,omitempty"`
}

type ProviderStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

type ProviderInfo struct {
	Name           string                   `json:"name"`
	Type           string                   `json:"type"`
	Shape          string                   `json:"shape"`
	Default        bool                     `json:"default"`
	RequiresKey    bool                     `json:"requires_key"`
	Capabilities   []string                 `json:"capabilities"`
	KeyEnvVarName  string                   `json:"key_env_var,omitempty"`
	CapabilityAuth []ProviderCapabilityAuth `json:"capability_auth,omitempty"`
	Chains         []int64                  `json:"chains,omitempty"`
}

type ProviderCapabilityAuth struct {
	Capability  string `json:"capability"`
	KeyEnvVar   string `json:"key_env_var"`
	Description string `json:"description,omitempty"`
}

// CallData is the uniform result of a calldata request: the payload and the
// contract it must be sent to.
type CallData struct {
	Provider      string `json:"provider"`
	ChainID       int64  `json:"chain_id"`
	OutputChainID int64  `json:"output_chain_id"`
	Router        string `json:"router"`
	CallData      string `json:"call_data"`
	Bytes         int    `json:"bytes"`
	Summary       string `json:"summary"`
}

type Quote struct {
	Provider      string `json:"provider"`
	ChainID       int64  `json:"chain_id"`
	OutputChainID int64  `json:"output_chain_id"`
	AmountIn      string `json:"amount_in"`
	AmountOut     string `json:"amount_out,omitempty"`
	Route         any    `json:"route"`
	FetchedAt     string `json:"fetched_at"`
}

type RouterEntry struct {
	Provider string `json:"provider"`
	ChainID  int64  `json:"chain_id"`
	Chain    string `json:"chain,omitempty"`
	Router   string `json:"router"`
}

// BridgeStatus reports a cross-chain transfer. State is pending until the
// provider reports a terminal outcome, after which the value never changes.
// Substatus carries the provider's qualifier on the overall status, such as
// LI.FI PARTIAL or REFUNDED.
type BridgeStatus struct {
	Provider            string `json:"provider"`
	SourceTxHash        string `json:"source_tx_hash"`
	SourceChainID       int64  `json:"source_chain_id"`
	DestinationChainID  int64  `json:"destination_chain_id"`
	SourceTxStatus      string `json:"source_tx_status"`
	DestinationTxHash   string `json:"destination_tx_hash,omitempty"`
	DestinationTxStatus string `json:"destination_tx_status,omitempty"`
	Substatus           string `json:"substatus,omitempty"`
	State               string `json:"state"`
	Terminal            bool   `json:"terminal"`
}

const (
	BridgeStatePending = "pending"
	BridgeStateSuccess = "success"
	BridgeStateFailed  = "failed"
)

type Approval struct {
	Provider         string `json:"provider"`
	ChainID          int64  `json:"chain_id"`
	Token            string `json:"token"`
	Owner            string `json:"owner,omitempty"`
	Spender          string `json:"spender"`
	Amount           string `json:"amount"`
	CallData         string `json:"call_data"`
	CurrentAllowance string `json:"current_allowance,omitempty"`
	Required         *bool  `json:"required,omitempty"`
}
