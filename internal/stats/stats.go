package stats

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"pairwatch/internal/history"
)

// PercentPlaces is the display precision for percentage figures.
const PercentPlaces = 3

var hundred = decimal.NewFromInt(100)

// PercentChange returns the percent move from base to current, rounded to
// PercentPlaces. A zero base yields zero rather than a division error.
func PercentChange(base, current decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return current.Sub(base).Div(base).Mul(hundred).Round(PercentPlaces)
}

// MarkupBonusPercent converts a markup multiplier into its whole-number
// percent contribution: 1.05 -> 5, 1.079 -> 7. The fractional part is
// truncated, not rounded.
func MarkupBonusPercent(markup decimal.Decimal) int64 {
	return markup.Sub(decimal.NewFromInt(1)).Mul(hundred).IntPart()
}

// PercentChangeNetOfMarkup nets the markup's whole-percent contribution out
// of the plain percent change, showing gain relative to the configured
// target rather than the raw entry price.
func PercentChangeNetOfMarkup(base, current, markup decimal.Decimal) decimal.Decimal {
	bonus := decimal.NewFromInt(MarkupBonusPercent(markup))
	return PercentChange(base, current).Sub(bonus).Round(PercentPlaces)
}

// WindowedChange returns the percent move from the sample `window` entries
// back in the buffer to the current price. While the buffer holds fewer
// samples than the window, the oldest available sample is used instead.
func WindowedChange(h *history.Buffer, window int, current decimal.Decimal) decimal.Decimal {
	base := h.At(h.Len() - window)
	return PercentChange(base, current)
}

// TargetValue is the position value at which the markup is realised.
func TargetValue(price, markup, units decimal.Decimal) decimal.Decimal {
	return price.Mul(markup).Mul(units)
}

// CurrentValue is the present value of the held units.
func CurrentValue(price, units decimal.Decimal) decimal.Decimal {
	return price.Mul(units)
}

// SellAlert reports whether the position has reached its target value.
func SellAlert(currentValue, targetValue decimal.Decimal) bool {
	return currentValue.GreaterThanOrEqual(targetValue)
}

// BuyAlert reports whether the position value has dropped to the buy-in
// threshold.
func BuyAlert(currentValue, buyIn decimal.Decimal) bool {
	return currentValue.LessThanOrEqual(buyIn)
}

// FormatPercent renders a percent figure with an explicit leading sign:
// "+5.000%" or "-5.000%". Zero carries the plus sign.
func FormatPercent(p decimal.Decimal) string {
	fixed := p.StringFixed(PercentPlaces)
	if p.Sign() >= 0 {
		return "+" + fixed + "%"
	}
	return fixed + "%"
}

// FormatCurrency renders a USD amount with comma grouping and two decimal
// places, e.g. "$1,234.50".
func FormatCurrency(v decimal.Decimal) string {
	return "$" + humanize.FormatFloat("#,###.##", v.InexactFloat64())
}

// FormatElapsed renders a whole-second counter as a duration string such
// as "10s" or "1m5s".
func FormatElapsed(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}
