package registry

import (
	"net"
	"net/url"
	"strings"
)

const (
	OneInchBaseURL   = "https://api.1inch.dev"
	ZeroXBaseURL     = "https://api.0x.org"
	ParaSwapBaseURL  = "https://apiv5.paraswap.io"
	KyberSwapBaseURL = "https://aggregator-api.kyberswap.com"
	LiFiBaseURL      = "https://li.quest/v1"
	SocketBaseURL    = "https://api.socket.tech/v2"

	// Bridge status endpoints.
	LiFiStatusURL   = LiFiBaseURL + "/status"
	SocketStatusURL = SocketBaseURL + "/status"
)

func BridgeStatusURL(provider string) (string, bool) {
	switch normalizeProvider(provider) {
	case "LIFI":
		return LiFiStatusURL, true
	case "SOCKET":
		return SocketStatusURL, true
	default:
		return "", false
	}
}

// IsAllowedStatusURL guards status endpoint overrides: only the provider's
// canonical HTTPS endpoint or a loopback address is accepted.
func IsAllowedStatusURL(provider, endpoint string) bool {
	if strings.TrimSpace(endpoint) == "" {
		return true
	}
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return false
	}
	if strings.TrimSpace(parsed.Hostname()) == "" {
		return false
	}
	if isLoopbackHost(parsed.Hostname()) {
		scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
		return scheme == "" || scheme == "http" || scheme == "https"
	}
	if !strings.EqualFold(strings.TrimSpace(parsed.Scheme), "https") {
		return false
	}
	allowedRaw, ok := BridgeStatusURL(provider)
	if !ok {
		return false
	}
	allowed, err := url.Parse(allowedRaw)
	if err != nil {
		return false
	}
	if !strings.EqualFold(parsed.Hostname(), allowed.Hostname()) {
		return false
	}
	if normalizedURLPort(parsed) != normalizedURLPort(allowed) {
		return false
	}
	return normalizedURLPath(parsed.Path) == normalizedURLPath(allowed.Path)
}

func isLoopbackHost(host string) bool {
	h := strings.TrimSpace(strings.ToLower(host))
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

func normalizedURLPort(parsed *url.URL) string {
	if port := strings.TrimSpace(parsed.Port()); port != "" {
		return port
	}
	switch strings.ToLower(strings.TrimSpace(parsed.Scheme)) {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

func normalizedURLPath(path string) string {
	p := strings.TrimSuffix(strings.TrimSpace(path), "/")
	if p == "" {
		return "/"
	}
	return p
}
