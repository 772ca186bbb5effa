package registry

import (
	"maps"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Deployed router/aggregator contracts per provider and chain. Call data from a
// provider targets the router listed here for the input chain.
var routersByProvider = map[string]map[int64]string{
	"ONE_INCH": withOverrides(
		fanOut("0x1111111254eeb25477b68fb85ed929f73a960582", 1, 10, 56, 100, 137, 250, 8217, 8453, 42161, 43114, 1313161554),
		map[int64]string{324: "0x6e2b76966cbd9cf4cc2fa0d76d24d5241e0abc2f"},
	),
	"ZERO_X": fanOut("0x0000000000001fF3684f28c67538d4D072C22734", 1, 10, 56, 137, 8453, 42161, 43114, 59144, 534352),
	"PARASWAP": fanOut("0xDEF171Fe48CF0115B1d80b88dc8eAB59176FEe57",
		1, 10, 56, 100, 137, 250, 324, 1101, 8217, 8453, 42161, 43114),
	"KYBERSWAP": withOverrides(
		fanOut("0x6131B5fae19EA4f9D964eAc0408E4408b66337b5",
			1, 10, 25, 56, 137, 250, 1101, 8217, 8453, 42161, 42220, 43114, 59144, 534352, 1313161554),
		map[int64]string{324: "0x3F95eF3f2eAca871858dbE20A93c01daF6C2e923"},
	),
	"LIFI": withOverrides(
		fanOut("0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE",
			1, 10, 25, 56, 100, 122, 137, 250, 1101, 8453, 42161, 42220, 43114, 59144, 534352, 1313161554),
		map[int64]string{324: "0x341e94069f53234fE6DabeF707aD424830525715"},
	),
	"SOCKET": withOverrides(
		fanOut("0x3a23F943181408EAC424116Af7b7790c94Cb97a5",
			1, 10, 56, 100, 122, 137, 250, 1101, 8453, 59144, 42161, 42220, 43114, 1313161554),
		map[int64]string{324: "0xaDdE7028e7ec226777e5dea5D53F6457C21ec7D6"},
	),
}

// KyberSwap addresses chains by slug in its URL path.
var kyberSwapChainSlugs = map[int64]string{
	1:          "ethereum",
	10:         "optimism",
	56:         "bsc",
	137:        "polygon",
	250:        "fantom",
	324:        "zksync",
	1101:       "polygon-zkevm",
	8453:       "base",
	42161:      "arbitrum",
	43114:      "avalanche",
	59144:      "linea",
	534352:     "scroll",
	1313161554: "aurora",
}

// Router returns the provider's router on chainID in EIP-55 form.
func Router(provider string, chainID int64) (string, bool) {
	table, ok := routersByProvider[normalizeProvider(provider)]
	if !ok {
		return "", false
	}
	addr, ok := table[chainID]
	return addr, ok
}

// RoutersByChainID returns a copy of the provider's router table.
func RoutersByChainID(provider string) map[int64]string {
	return maps.Clone(routersByProvider[normalizeProvider(provider)])
}

// ChainIDs lists the chains the provider has a router on, ascending.
func ChainIDs(provider string) []int64 {
	return slices.Sorted(maps.Keys(routersByProvider[normalizeProvider(provider)]))
}

func KyberSwapChainSlug(chainID int64) (string, bool) {
	slug, ok := kyberSwapChainSlugs[chainID]
	return slug, ok
}

func fanOut(address string, chainIDs ...int64) map[int64]string {
	addr := common.HexToAddress(address).Hex()
	out := make(map[int64]string, len(chainIDs))
	for _, chainID := range chainIDs {
		out[chainID] = addr
	}
	return out
}

func withOverrides(base, overrides map[int64]string) map[int64]string {
	for chainID, addr := range overrides {
		base[chainID] = common.HexToAddress(addr).Hex()
	}
	return base
}

func normalizeProvider(provider string) string {
	return strings.ToUpper(strings.TrimSpace(provider))
}
