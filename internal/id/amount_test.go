package id

import (
	"math/big"
	"testing"
)

func TestParseAmountBaseUnits(t *testing.T) {
	n, err := ParseAmount("100000000", "", 6)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if n.String() != "100000000" {
		t.Fatalf("unexpected amount: %s", n)
	}
}

func TestParseAmountDecimal(t *testing.T) {
	n, err := ParseAmount("", "1.25", 6)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if n.String() != "1250000" {
		t.Fatalf("unexpected amount: %s", n)
	}

	// Larger than float64 can represent exactly.
	n, err = ParseAmount("", "123456789.123456789123456789", 18)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if n.String() != "123456789123456789123456789" {
		t.Fatalf("unexpected amount: %s", n)
	}
}

func TestParseAmountValidation(t *testing.T) {
	if _, err := ParseAmount("10", "1", 6); err == nil {
		t.Fatal("expected mutual exclusivity error")
	}
	if _, err := ParseAmount("", "1.1234567", 6); err == nil {
		t.Fatal("expected precision error")
	}
	if _, err := ParseAmount("1e6", "", 6); err == nil {
		t.Fatal("expected scientific notation to be rejected")
	}
	if _, err := ParseAmount("-5", "", 6); err == nil {
		t.Fatal("expected negative amount to be rejected")
	}
}

func TestFormatDecimal(t *testing.T) {
	cases := map[string]struct {
		in       int64
		decimals int
	}{
		"0":     {0, 6},
		"1":     {1000000, 6},
		"0.005": {5000, 6},
		"100":   {100, 0},
	}
	for want, tc := range cases {
		if got := FormatDecimal(big.NewInt(tc.in), tc.decimals); got != want {
			t.Fatalf("FormatDecimal(%d, %d) = %s, want %s", tc.in, tc.decimals, got, want)
		}
	}
}
