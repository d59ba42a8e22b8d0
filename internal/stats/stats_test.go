package stats

import (
	"testing"

	"github.com/shopspring/decimal"

	"pairwatch/internal/history"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestPercentChangeFormatting(t *testing.T) {
	cases := []struct {
		base, current float64
		want          string
	}{
		{100, 105, "+5.000%"},
		{100, 95, "-5.000%"},
		{100, 100, "+0.000%"},
		{100, 100.0015, "+0.002%"},
	}
	for _, tc := range cases {
		got := FormatPercent(PercentChange(dec(tc.base), dec(tc.current)))
		if got != tc.want {
			t.Fatalf("PercentChange(%v, %v) = %s, want %s", tc.base, tc.current, got, tc.want)
		}
	}
}

func TestPercentChangeZeroBase(t *testing.T) {
	if !PercentChange(decimal.Zero, dec(100)).IsZero() {
		t.Fatal("zero base should yield zero change")
	}
}

func TestMarkupBonusTruncates(t *testing.T) {
	if got := MarkupBonusPercent(dec(1.05)); got != 5 {
		t.Fatalf("bonus for 1.05 = %d, want 5", got)
	}
	if got := MarkupBonusPercent(dec(1.079)); got != 7 {
		t.Fatalf("bonus for 1.079 = %d, want 7 (truncated)", got)
	}
	if got := MarkupBonusPercent(dec(1.0)); got != 0 {
		t.Fatalf("bonus for 1.0 = %d, want 0", got)
	}
}

func TestPercentChangeNetOfMarkup(t *testing.T) {
	// 10% raw gain with a 1.05 markup nets out to +5.000%.
	got := FormatPercent(PercentChangeNetOfMarkup(dec(100), dec(110), dec(1.05)))
	if got != "+5.000%" {
		t.Fatalf("net change = %s, want +5.000%%", got)
	}
}

func TestWindowedChangeClampsToOldest(t *testing.T) {
	h := history.New(300)
	h.Push(dec(100))
	h.Push(dec(101))
	h.Push(dec(102))

	// Window of 60 with only three samples falls back to the oldest.
	got := WindowedChange(h, 60, dec(110))
	want := PercentChange(dec(100), dec(110))
	if !got.Equal(want) {
		t.Fatalf("windowed change = %s, want %s", got, want)
	}
}

func TestWindowedChangeUsesWindow(t *testing.T) {
	h := history.New(300)
	for i := 0; i < 100; i++ {
		h.Push(dec(100))
	}
	h.Push(dec(200)) // index 100

	// A window of 1 reads the newest sample.
	got := WindowedChange(h, 1, dec(220))
	want := PercentChange(dec(200), dec(220))
	if !got.Equal(want) {
		t.Fatalf("windowed change = %s, want %s", got, want)
	}
}

func TestTargetAndCurrentValue(t *testing.T) {
	target := TargetValue(dec(100), dec(1.05), dec(2))
	if !target.Equal(dec(210)) {
		t.Fatalf("target value = %s, want 210", target)
	}
	current := CurrentValue(dec(100), dec(2))
	if !current.Equal(dec(200)) {
		t.Fatalf("current value = %s, want 200", current)
	}
	if target.IsNegative() {
		t.Fatal("target value must be non-negative for positive inputs")
	}
}

func TestAlertPredicates(t *testing.T) {
	target := dec(210)
	buyIn := dec(150)

	if !SellAlert(dec(210), target) {
		t.Fatal("sell alert should fire at the target value")
	}
	if !SellAlert(dec(215), target) {
		t.Fatal("sell alert should fire above the target value")
	}
	if SellAlert(dec(209.99), target) {
		t.Fatal("sell alert must not fire below the target value")
	}

	if !BuyAlert(dec(150), buyIn) {
		t.Fatal("buy alert should fire at the threshold")
	}
	if !BuyAlert(dec(149), buyIn) {
		t.Fatal("buy alert should fire below the threshold")
	}
	if BuyAlert(dec(151), buyIn) {
		t.Fatal("buy alert must not fire above the threshold")
	}

	// Between the two thresholds both stay quiet.
	mid := dec(180)
	if SellAlert(mid, target) || BuyAlert(mid, buyIn) {
		t.Fatal("no alert should fire between the thresholds")
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1234.5, "$1,234.50"},
		{1234567.891, "$1,234,567.89"},
		{5, "$5.00"},
		{0.4, "$0.40"},
	}
	for _, tc := range cases {
		if got := FormatCurrency(dec(tc.in)); got != tc.want {
			t.Fatalf("FormatCurrency(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	if got := FormatElapsed(10); got != "10s" {
		t.Fatalf("FormatElapsed(10) = %s, want 10s", got)
	}
	if got := FormatElapsed(65); got != "1m5s" {
		t.Fatalf("FormatElapsed(65) = %s, want 1m5s", got)
	}
	if got := FormatElapsed(3661); got != "1h1m1s" {
		t.Fatalf("FormatElapsed(3661) = %s, want 1h1m1s", got)
	}
}
