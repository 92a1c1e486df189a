package ticker

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pawish/deck-ticker/market"
)

// Trend classifies the signed 24-hour price change.
type Trend int

const (
	TrendFlat Trend = iota
	TrendUp
	TrendDown
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "flat"
	}
}

// Arrow returns the direction glyph shown on the badge.
func (t Trend) Arrow() string {
	switch t {
	case TrendUp:
		return "▲"
	case TrendDown:
		return "▼"
	default:
		return "■"
	}
}

// ArrowColor returns the color of the arrow and percent-change text.
func (t Trend) ArrowColor() string {
	switch t {
	case TrendUp:
		return "#34C759"
	case TrendDown:
		return "#FF3B30"
	default:
		return "#5c5c5c"
	}
}

// BadgeColor returns the gradient tint of the badge background.
func (t Trend) BadgeColor() string {
	switch t {
	case TrendUp:
		return "#275C35"
	case TrendDown:
		return "#650212"
	default:
		return "#4b4b4b"
	}
}

// DisplayPayload is the fully derived, render-ready state of one refresh.
// Immutable once produced; colors follow from Trend.
type DisplayPayload struct {
	CurrencyLabel     string
	FormattedPrice    string
	Trend             Trend
	ChangePercentText string
}

// CurrencyLabel strips a known quote-asset suffix from the symbol. At most
// one suffix is removed, "USDT" taking precedence over "USDC".
func CurrencyLabel(symbol string) string {
	if base, ok := strings.CutSuffix(symbol, "USDT"); ok {
		return base
	}
	if base, ok := strings.CutSuffix(symbol, "USDC"); ok {
		return base
	}
	return symbol
}

// classifyTrend maps a signed price change to a Trend. An unparseable or NaN
// change counts as flat rather than as an error.
func classifyTrend(change float64) Trend {
	switch {
	case math.IsNaN(change):
		return TrendFlat
	case change > 0:
		return TrendUp
	case change < 0:
		return TrendDown
	default:
		return TrendFlat
	}
}

// parseLenient parses a decimal string, treating malformed input as zero.
func parseLenient(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

// buildPayload derives the display state for one refresh. The last price must
// parse; change fields are parsed leniently and fall back to flat.
func buildPayload(symbol string, stats market.Stats24h) (DisplayPayload, error) {
	price, err := strconv.ParseFloat(stats.LastPrice, 64)
	if err != nil {
		return DisplayPayload{}, fmt.Errorf("parse last price %q: %w", stats.LastPrice, err)
	}

	change := parseLenient(stats.PriceChange)
	percent := parseLenient(stats.PriceChangePercent)

	return DisplayPayload{
		CurrencyLabel:     CurrencyLabel(symbol),
		FormattedPrice:    FormatPrice(price),
		Trend:             classifyTrend(change),
		ChangePercentText: fmt.Sprintf("%.2f%%", math.Abs(percent)),
	}, nil
}
