package id

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
)

var (
	eip155ChainPattern = regexp.MustCompile(`^eip155:[0-9]+$`)
	evmAddressPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	eip155AssetPattern = regexp.MustCompile(`^eip155:([0-9]+)/erc20:(0x[0-9a-fA-F]{40})$`)
)

type Chain struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	ChainID int64  `json:"chain_id"`
}

func (c Chain) CAIP2() string {
	return fmt.Sprintf("eip155:%d", c.ChainID)
}

type Asset struct {
	ChainID  int64  `json:"chain_id"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals int    `json:"decimals,omitempty"`
}

type Token struct {
	Symbol   string
	Address  string
	Decimals int
}

// Static network table keyed by EVM chain id. Loaded once, never mutated.
var chains = []Chain{
	{Name: "Ethereum", Slug: "ethereum", ChainID: 1},
	{Name: "Optimism", Slug: "optimism", ChainID: 10},
	{Name: "Cronos", Slug: "cronos", ChainID: 25},
	{Name: "BNB Chain", Slug: "bsc", ChainID: 56},
	{Name: "Gnosis", Slug: "gnosis", ChainID: 100},
	{Name: "Fuse", Slug: "fuse", ChainID: 122},
	{Name: "Polygon", Slug: "polygon", ChainID: 137},
	{Name: "Fantom", Slug: "fantom", ChainID: 250},
	{Name: "zkSync Era", Slug: "zksync", ChainID: 324},
	{Name: "Polygon zkEVM", Slug: "polygon-zkevm", ChainID: 1101},
	{Name: "Kaia", Slug: "klaytn", ChainID: 8217},
	{Name: "Base", Slug: "base", ChainID: 8453},
	{Name: "Arbitrum One", Slug: "arbitrum", ChainID: 42161},
	{Name: "Celo", Slug: "celo", ChainID: 42220},
	{Name: "Avalanche C-Chain", Slug: "avalanche", ChainID: 43114},
	{Name: "Linea", Slug: "linea", ChainID: 59144},
	{Name: "Scroll", Slug: "scroll", ChainID: 534352},
	{Name: "Aurora", Slug: "aurora", ChainID: 1313161554},
}

var chainAliases = map[string]string{
	"mainnet": "ethereum",
	"eth":     "ethereum",
	"bnb":     "bsc",
	"ftm":     "fantom",
	"matic":   "polygon",
	"arb":     "arbitrum",
	"op":      "optimism",
	"avax":    "avalanche",
	"xdai":    "gnosis",
}

var (
	chainByID   = map[int64]Chain{}
	chainBySlug = map[string]Chain{}
)

func init() {
	for _, c := range chains {
		chainByID[c.ChainID] = c
		chainBySlug[c.Slug] = c
	}
	for alias, slug := range chainAliases {
		chainBySlug[alias] = chainBySlug[slug]
	}
}

// Small bootstrap registry for symbol resolution. Addresses are checksummed on
// the way out, so entries may use any case.
var tokenRegistry = map[int64][]Token{
	1: {
		{Symbol: "USDC", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6},
		{Symbol: "USDT", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Decimals: 6},
		{Symbol: "DAI", Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Decimals: 18},
		{Symbol: "WETH", Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Decimals: 18},
	},
	10: {
		{Symbol: "USDC", Address: "0x0b2c639c533813f4aa9d7837caf62653d097ff85", Decimals: 6},
		{Symbol: "USDT", Address: "0x94b008aa00579c1307b0ef2c499ad98a8ce58e58", Decimals: 6},
		{Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	},
	56: {
		{Symbol: "USDC", Address: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d", Decimals: 18},
		{Symbol: "USDT", Address: "0x55d398326f99059ff775485246999027b3197955", Decimals: 18},
		{Symbol: "WBNB", Address: "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c", Decimals: 18},
	},
	137: {
		{Symbol: "USDC", Address: "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359", Decimals: 6},
		{Symbol: "USDT", Address: "0xc2132d05d31c914a87c6611c10748aeb04b58e8f", Decimals: 6},
		{Symbol: "WETH", Address: "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619", Decimals: 18},
	},
	250: {
		{Symbol: "USDC", Address: "0x04068da6c83afcfa0e13ba15a6696662335d5b75", Decimals: 6},
		{Symbol: "WFTM", Address: "0x21be370d5312f44cb42ce377bc9b8a0cef1a4c83", Decimals: 18},
		{Symbol: "FRAX", Address: "0xdc301622e621166bd8e82f2ca0a26c13ad0be355", Decimals: 18},
		{Symbol: "WBTC", Address: "0x321162cd933e2be498cd2267a90534a804051b11", Decimals: 8},
		{Symbol: "LZUSDC", Address: "0x28a92dde19d9989f39a49905d7c9c2fac7799bdf", Decimals: 6},
		{Symbol: "AXLUSDC", Address: "0x1b6382dbdea11d97f24495c9a90b7c88469134a4", Decimals: 6},
		{Symbol: "MIM", Address: "0x82f0b8b456c1a451378467398982d4834b6829c1", Decimals: 18},
	},
	8453: {
		{Symbol: "USDC", Address: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", Decimals: 6},
		{Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	},
	42161: {
		{Symbol: "USDC", Address: "0xaf88d065e77c8cc2239327c5edb3a432268e5831", Decimals: 6},
		{Symbol: "USDT", Address: "0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9", Decimals: 6},
		{Symbol: "WETH", Address: "0x82af49447d8a07e3bd95bd0d56f35241523fbab1", Decimals: 18},
	},
	43114: {
		{Symbol: "USDC", Address: "0xb97ef9ef8734c71904d8002f8b6bc66dd9c48a6e", Decimals: 6},
		{Symbol: "USDT", Address: "0x9702230a8ea53601f5cd2dc00fdbc13d4df4a8c7", Decimals: 6},
		{Symbol: "WAVAX", Address: "0xb31f66aa3c1e785363f0875a1b74e27b85fd66c7", Decimals: 18},
	},
}

// Chains returns the static network table ordered by chain id.
func Chains() []Chain {
	out := append([]Chain(nil), chains...)
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

func ChainByID(chainID int64) (Chain, bool) {
	c, ok := chainByID[chainID]
	return c, ok
}

// ParseChain accepts a slug, alias, decimal chain id, or CAIP-2 identifier.
// Unknown numeric ids are accepted as anonymous EVM chains.
func ParseChain(input string) (Chain, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Chain{}, clierr.New(clierr.CodeValidation, "chain is required")
	}
	norm := strings.ToLower(raw)

	if chain, ok := chainBySlug[norm]; ok {
		return chain, nil
	}
	if eip155ChainPattern.MatchString(norm) {
		norm = strings.TrimPrefix(norm, "eip155:")
	}
	if n, err := strconv.ParseInt(norm, 10, 64); err == nil && n >= 0 {
		if chain, ok := chainByID[n]; ok {
			return chain, nil
		}
		return Chain{Name: fmt.Sprintf("EVM-%d", n), Slug: fmt.Sprintf("evm-%d", n), ChainID: n}, nil
	}
	return Chain{}, clierr.New(clierr.CodeValidation, fmt.Sprintf("unsupported chain input: %s", input))
}

// ParseAsset resolves an address, CAIP-19 erc20 identifier, or registry symbol
// on chain. Addresses are returned in EIP-55 form.
func ParseAsset(input string, chain Chain) (Asset, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Asset{}, clierr.New(clierr.CodeValidation, "asset is required")
	}

	if strings.Contains(raw, "/") {
		m := eip155AssetPattern.FindStringSubmatch(strings.ToLower(raw))
		if m == nil {
			return Asset{}, clierr.New(clierr.CodeValidation, fmt.Sprintf("invalid CAIP-19 asset format: %s", input))
		}
		if m[1] != strconv.FormatInt(chain.ChainID, 10) {
			return Asset{}, clierr.New(clierr.CodeValidation, "asset chain does not match chain")
		}
		raw = m[2]
	}

	if evmAddressPattern.MatchString(raw) {
		asset := Asset{ChainID: chain.ChainID, Address: raw}
		if t, ok := LookupByAddress(chain.ChainID, raw); ok {
			asset.Address = t.Address
			asset.Symbol = t.Symbol
			asset.Decimals = t.Decimals
		}
		return asset, nil
	}

	t, ok := KnownToken(chain.ChainID, raw)
	if !ok {
		return Asset{}, clierr.New(clierr.CodeValidation, fmt.Sprintf("symbol %s not found in registry for chain %d", input, chain.ChainID))
	}
	return Asset{ChainID: chain.ChainID, Address: t.Address, Symbol: t.Symbol, Decimals: t.Decimals}, nil
}

func KnownToken(chainID int64, symbol string) (Token, bool) {
	for _, t := range tokenRegistry[chainID] {
		if strings.EqualFold(t.Symbol, strings.TrimSpace(symbol)) {
			return canonicalToken(t), true
		}
	}
	return Token{}, false
}

func LookupByAddress(chainID int64, address string) (Token, bool) {
	for _, t := range tokenRegistry[chainID] {
		if strings.EqualFold(t.Address, strings.TrimSpace(address)) {
			return canonicalToken(t), true
		}
	}
	return Token{}, false
}

func canonicalToken(t Token) Token {
	return Token{
		Symbol:   strings.ToUpper(t.Symbol),
		Address:  common.HexToAddress(t.Address).Hex(),
		Decimals: t.Decimals,
	}
}
