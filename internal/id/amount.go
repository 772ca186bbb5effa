package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
)

var (
	decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	integerPattern = regexp.MustCompile(`^[0-9]+$`)
)

// ParseAmount turns exactly one of a base-unit integer string or a decimal
// string into a base-unit integer. Floats are never involved.
func ParseAmount(baseUnits, decimal string, decimals int) (*big.Int, error) {
	baseUnits = strings.TrimSpace(baseUnits)
	decimal = strings.TrimSpace(decimal)
	if baseUnits != "" && decimal != "" {
		return nil, clierr.New(clierr.CodeValidation, "use either --amount or --amount-decimal, not both")
	}
	if baseUnits == "" && decimal == "" {
		return nil, clierr.New(clierr.CodeValidation, "amount is required")
	}
	if decimals < 0 {
		return nil, clierr.New(clierr.CodeValidation, "decimals must be >= 0")
	}

	if baseUnits != "" {
		if !integerPattern.MatchString(baseUnits) {
			return nil, clierr.New(clierr.CodeValidation, "--amount must be a non-negative integer string")
		}
		n, _ := new(big.Int).SetString(baseUnits, 10)
		return n, nil
	}

	if !decimalPattern.MatchString(decimal) {
		return nil, clierr.New(clierr.CodeValidation, "--amount-decimal must be in decimal form like 1.23")
	}
	intPart, fracPart, _ := strings.Cut(decimal, ".")
	if len(fracPart) > decimals {
		return nil, clierr.New(clierr.CodeValidation, fmt.Sprintf("decimal precision exceeds token decimals (%d)", decimals))
	}
	combined := intPart + fracPart + strings.Repeat("0", decimals-len(fracPart))
	n, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeValidation, "invalid decimal amount")
	}
	return n, nil
}

// FormatDecimal renders base units as a decimal string with trailing zeros
// trimmed.
func FormatDecimal(baseUnits *big.Int, decimals int) string {
	if baseUnits == nil {
		return "0"
	}
	s := baseUnits.String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if decimals > 0 {
		if len(s) <= decimals {
			s = strings.Repeat("0", decimals-len(s)+1) + s
		}
		intPart, fracPart := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
		s = intPart
		if fracPart != "" {
			s += "." + fracPart
		}
	}
	if neg {
		return "-" + s
	}
	return s
}
