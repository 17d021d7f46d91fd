package curve

import (
	"testing"

	"github.com/holiman/uint256"
)

func fromDec(t *testing.T, s string) *uint256.Int {
	t.Helper()
	z, err := uint256.FromDecimal(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return z
}

// TestXycAmountOut tests the constant-product exact-in formula.
func TestXycAmountOut(t *testing.T) {
	tests := []struct {
		name                          string
		balanceIn, balanceOut, amount string
		want                          string
	}{
		{
			// floor(50e18 * 100e18 / 150e18)
			name:      "balanced pool half in",
			balanceIn: "100000000000000000000", balanceOut: "100000000000000000000",
			amount: "50000000000000000000",
			want:   "33333333333333333333",
		},
		{
			name:      "tiny trade",
			balanceIn: "100000000000000000000", balanceOut: "100000000000000000000",
			amount: "1000",
			want:   "999",
		},
		{
			name:      "skewed pool",
			balanceIn: "1000", balanceOut: "9000",
			amount: "500",
			want:   "3000",
		},
		{
			name:      "one wei in",
			balanceIn: "100000000000000000000", balanceOut: "100000000000000000000",
			amount: "1",
			want:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := XycAmountOut(fromDec(t, tt.balanceIn), fromDec(t, tt.balanceOut), fromDec(t, tt.amount))
			if err != nil {
				t.Fatalf("XycAmountOut failed: %v", err)
			}
			if want := fromDec(t, tt.want); !got.Eq(want) {
				t.Errorf("XycAmountOut = %s, want %s", got.Dec(), want.Dec())
			}
		})
	}
}

// TestXycAmountIn tests the constant-product exact-out formula.
func TestXycAmountIn(t *testing.T) {
	tests := []struct {
		name                          string
		balanceIn, balanceOut, amount string
		want                          string
	}{
		{
			// ceil(50e18 * 100e18 / 50e18)
			name:      "balanced pool half out",
			balanceIn: "100000000000000000000", balanceOut: "100000000000000000000",
			amount: "50000000000000000000",
			want:   "100000000000000000000",
		},
		{
			name:      "input rounds up",
			balanceIn: "1000", balanceOut: "9000",
			amount: "3000",
			want:   "500",
		},
		{
			name:      "one wei out costs at least one wei",
			balanceIn: "100000000000000000000", balanceOut: "100000000000000000000",
			amount: "1",
			want:   "2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := XycAmountIn(fromDec(t, tt.balanceIn), fromDec(t, tt.balanceOut), fromDec(t, tt.amount))
			if err != nil {
				t.Fatalf("XycAmountIn failed: %v", err)
			}
			if want := fromDec(t, tt.want); !got.Eq(want) {
				t.Errorf("XycAmountIn = %s, want %s", got.Dec(), want.Dec())
			}
		})
	}
}

// TestXycPreconditions tests zero-balance and reserve-exhaustion errors.
func TestXycPreconditions(t *testing.T) {
	zero := new(uint256.Int)
	k := fromDec(t, "1000")

	if _, err := XycAmountOut(zero, k, k); err != ErrZeroBalance {
		t.Errorf("XycAmountOut zero balanceIn = %v, want ErrZeroBalance", err)
	}
	if _, err := XycAmountOut(k, zero, k); err != ErrZeroBalance {
		t.Errorf("XycAmountOut zero balanceOut = %v, want ErrZeroBalance", err)
	}
	if _, err := XycAmountIn(zero, k, k); err != ErrZeroBalance {
		t.Errorf("XycAmountIn zero balanceIn = %v, want ErrZeroBalance", err)
	}

	// Requesting the full reserve or more cannot be solved.
	if _, err := XycAmountIn(k, k, k); err != ErrInsufficientBalance {
		t.Errorf("XycAmountIn full reserve = %v, want ErrInsufficientBalance", err)
	}
}

// TestXycPriceMonotonic tests that the realized price out/in never
// improves as the trade grows at fixed reserves.
func TestXycPriceMonotonic(t *testing.T) {
	balIn := fromDec(t, "100000000000000000000")
	balOut := fromDec(t, "100000000000000000000")

	sizes := []string{
		"1000000000000000000",
		"2000000000000000000",
		"5000000000000000000",
		"10000000000000000000",
		"20000000000000000000",
		"50000000000000000000",
	}

	var prevIn, prevOut *uint256.Int
	for _, s := range sizes {
		in := fromDec(t, s)
		out, err := XycAmountOut(balIn, balOut, in)
		if err != nil {
			t.Fatalf("XycAmountOut(%s) failed: %v", s, err)
		}
		if prevIn != nil {
			// out/in <= prevOut/prevIn, cross-multiplied.
			lhs := new(uint256.Int).Mul(out, prevIn)
			rhs := new(uint256.Int).Mul(prevOut, in)
			if lhs.Gt(rhs) {
				t.Errorf("price improved growing to %s: %s/%s vs %s/%s",
					s, out.Dec(), in.Dec(), prevOut.Dec(), prevIn.Dec())
			}
		}
		prevIn, prevOut = in, out
	}
}

// TestXycRoundTripFavorsMaker tests that buying back the output of an
// exact-in trade never costs less than the original input.
func TestXycRoundTripFavorsMaker(t *testing.T) {
	balIn := fromDec(t, "123456789012345678901")
	balOut := fromDec(t, "98765432109876543210")

	for _, amt := range []string{"1", "17", "999", "1000000000", "5000000000000000000"} {
		amountIn := fromDec(t, amt)
		out, err := XycAmountOut(balIn, balOut, amountIn)
		if err != nil {
			t.Fatalf("XycAmountOut(%s) failed: %v", amt, err)
		}
		if out.IsZero() {
			continue // dust rounds to nothing, maker keeps it all
		}
		back, err := XycAmountIn(balIn, balOut, out)
		if err != nil {
			t.Fatalf("XycAmountIn failed: %v", err)
		}
		if back.Gt(amountIn) {
			t.Errorf("amountIn=%s: reconstructed input %s exceeds original", amt, back.Dec())
		}
	}
}
