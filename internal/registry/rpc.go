package registry

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
)

// Public RPC endpoints for read-only allowance lookups when --rpc-url is not
// given.
var defaultRPCByChainID = map[int64]string{
	1:          "https://eth.llamarpc.com",
	10:         "https://mainnet.optimism.io",
	25:         "https://evm.cronos.org",
	56:         "https://bsc-dataseed.binance.org",
	100:        "https://rpc.gnosischain.com",
	122:        "https://rpc.fuse.io",
	137:        "https://polygon-rpc.com",
	250:        "https://rpc.ftm.tools",
	324:        "https://mainnet.era.zksync.io",
	1101:       "https://zkevm-rpc.com",
	8217:       "https://public-en.node.kaia.io",
	8453:       "https://mainnet.base.org",
	42161:      "https://arb1.arbitrum.io/rpc",
	42220:      "https://forno.celo.org",
	43114:      "https://api.avax.network/ext/bc/C/rpc",
	59144:      "https://rpc.linea.build",
	534352:     "https://rpc.scroll.io",
	1313161554: "https://mainnet.aurora.dev",
}

func DefaultRPCURL(chainID int64) (string, bool) {
	value, ok := defaultRPCByChainID[chainID]
	return value, ok
}

func ResolveRPCURL(override string, chainID int64) (string, error) {
	if v := strings.TrimSpace(override); v != "" {
		return v, nil
	}
	if value, ok := DefaultRPCURL(chainID); ok {
		return value, nil
	}
	return "", clierr.New(clierr.CodeConfiguration, fmt.Sprintf("no default rpc configured for chain id %d; provide --rpc-url", chainID))
}
