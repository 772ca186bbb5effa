package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
)

// DeadlineWindow is added to the current time when a provider needs a
// deadline and the request has none.
const DeadlineWindow = 300 * time.Second

// DefaultAttribution identifies this client when the request carries no
// project.
const DefaultAttribution = "swapper"

// SlippageFraction returns MaxSlippage as a 0-1 fraction, or fallback when
// unset or when it rounds to zero.
func SlippageFraction(req SwapRequest, fallback float64) float64 {
	if req.MaxSlippage > 0 {
		if v := roundTo(req.MaxSlippage, 8); v > 0 {
			return v
		}
	}
	return fallback
}

// SlippagePercent returns MaxSlippage in percent (0.01 -> 1), or fallback
// when unset or when it rounds to zero.
func SlippagePercent(req SwapRequest, fallback float64) float64 {
	if req.MaxSlippage > 0 {
		if v := roundTo(req.MaxSlippage*100, 6); v > 0 {
			return v
		}
	}
	return fallback
}

// SlippageBps returns MaxSlippage in basis points (0.01 -> 100), or fallback
// when unset or when it rounds to zero.
func SlippageBps(req SwapRequest, fallback int64) int64 {
	if req.MaxSlippage > 0 {
		if bps := int64(math.Round(req.MaxSlippage * 10000)); bps > 0 {
			return bps
		}
	}
	return fallback
}

func Deadline(req SwapRequest, now time.Time) int64 {
	if req.Deadline > 0 {
		return req.Deadline
	}
	return now.Add(DeadlineWindow).Unix()
}

// Attribution returns the request's project, else fallback, else
// DefaultAttribution.
func Attribution(req SwapRequest, fallback string) string {
	if v := strings.TrimSpace(req.Project); v != "" {
		return v
	}
	if v := strings.TrimSpace(fallback); v != "" {
		return v
	}
	return DefaultAttribution
}

func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// EmbedRaw encodes fields as a JSON object and places raw under key verbatim,
// so a provider route object reaches the build endpoint byte-for-byte.
func EmbedRaw(key string, raw json.RawMessage, fields any) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("empty %s object", key))
	}
	keyJSON, err := json.Marshal(key)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode field name", err)
	}
	rest := []byte("{}")
	if fields != nil {
		rest, err = json.Marshal(fields)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "encode request body", err)
		}
	}
	rest = bytes.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '{' {
		return nil, clierr.New(clierr.CodeInternal, "request fields must encode as a JSON object")
	}

	var buf bytes.Buffer
	buf.Grow(len(keyJSON) + len(raw) + len(rest) + 3)
	buf.WriteByte('{')
	buf.Write(keyJSON)
	buf.WriteByte(':')
	buf.Write(raw)
	if inner := bytes.TrimSpace(rest[1 : len(rest)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NoRoute rewrites a 4xx upstream failure whose body mentions one of markers
// as CodeUnsupportedRoute. Other errors pass through unchanged.
func NoRoute(err error, id ID, markers ...string) error {
	if err == nil || !clierr.Is(err, clierr.CodeUpstream) {
		return err
	}
	up, ok := clierr.Upstream(err)
	if !ok || up.Status < 400 || up.Status >= 500 {
		return err
	}
	body := strings.ToLower(up.Body)
	for _, m := range markers {
		if strings.Contains(body, strings.ToLower(m)) {
			return clierr.Wrap(clierr.CodeUnsupportedRoute, fmt.Sprintf("%s found no route for this request", id), err)
		}
	}
	return err
}

// ErrNoRoute builds the UnsupportedRoute error for a provider that answered
// successfully without a usable route.
func ErrNoRoute(id ID, detail string) error {
	msg := fmt.Sprintf("%s found no route for this request", id)
	if detail != "" {
		msg += ": " + detail
	}
	return clierr.New(clierr.CodeUnsupportedRoute, msg)
}

// ErrUnsupportedChain reports a chain the provider has no mapping for.
func ErrUnsupportedChain(id ID, chainID int64) error {
	return clierr.New(clierr.CodeUnsupportedRoute, fmt.Sprintf("%s does not support chain %d", id, chainID))
}

// DecodeCallData parses provider hex call data. Missing or malformed data is an
// upstream failure.
func DecodeCallData(id ID, data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" || data == "0x" {
		return nil, clierr.Wrap(clierr.CodeUpstream, fmt.Sprintf("%s response has no call data", id), &clierr.UpstreamError{Status: http.StatusOK})
	}
	out, err := hexutil.Decode(data)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUpstream, fmt.Sprintf("%s returned malformed call data: %v", id, err), &clierr.UpstreamError{Status: http.StatusOK, Body: data})
	}
	return out, nil
}

// BetweenPhases is checked after a two-phase adapter's quote step so a
// cancelled request never reaches the build endpoint.
func BetweenPhases(ctx context.Context, id ID) error {
	if err := ctx.Err(); err != nil {
		return clierr.Wrap(clierr.CodeCancelled, fmt.Sprintf("%s build step skipped", id), err)
	}
	return nil
}

// ShortAddress abbreviates an address as 0x1234…abcd for log lines.
func ShortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

// CompactAmount renders n in short scientific form after rounding to the
// nearest 1e4, e.g. 100000000 -> 1e8 and 123456789 -> 1.2346e8.
func CompactAmount(n *big.Int) string {
	if n == nil {
		return "0"
	}
	v := new(big.Int).Set(n)
	neg := v.Sign() < 0
	v.Abs(v)
	step := big.NewInt(10000)
	if v.Cmp(step) >= 0 {
		q, r := new(big.Int).QuoRem(v, step, new(big.Int))
		if r.Cmp(big.NewInt(5000)) >= 0 {
			q.Add(q, big.NewInt(1))
		}
		v = q.Mul(q, step)
	}
	digits := v.String()
	exp := len(digits) - 1
	mantissa := strings.TrimRight(digits, "0")
	if mantissa == "" {
		mantissa = "0"
		exp = 0
	}
	out := mantissa[:1]
	if len(mantissa) > 1 {
		out += "." + mantissa[1:]
	}
	out += "e" + strconv.Itoa(exp)
	if neg {
		out = "-" + out
	}
	return out
}
