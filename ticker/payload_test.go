package ticker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawish/deck-ticker/market"
)

func TestCurrencyLabel(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"BTCUSDT", "BTC"},
		{"SOLUSDC", "SOL"},
		{"ETHBTC", "ETHBTC"},
		// At most one suffix is stripped, USDT first.
		{"USDCUSDT", "USDC"},
		{"USDTUSDC", "USDT"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CurrencyLabel(tt.symbol), "symbol %s", tt.symbol)
	}
}

func TestBuildPayloadTrend(t *testing.T) {
	tests := []struct {
		name   string
		change string
		want   Trend
	}{
		{"positive change", "250.40", TrendUp},
		{"negative change", "-0.00000001", TrendDown},
		{"zero change", "0.00", TrendFlat},
		{"unparseable change counts as flat", "n/a", TrendFlat},
		{"empty change counts as flat", "", TrendFlat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := buildPayload("BTCUSDT", market.Stats24h{
				LastPrice:          "117250.60",
				PriceChange:        tt.change,
				PriceChangePercent: "1.00",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, payload.Trend)
		})
	}
}

func TestBuildPayloadFields(t *testing.T) {
	payload, err := buildPayload("ETHUSDT", market.Stats24h{
		LastPrice:          "2501.4",
		PriceChange:        "-12.5",
		PriceChangePercent: "-0.497",
	})
	require.NoError(t, err)

	assert.Equal(t, "ETH", payload.CurrencyLabel)
	assert.Equal(t, "2,501.40", payload.FormattedPrice)
	assert.Equal(t, TrendDown, payload.Trend)
	// Percent change is shown as an absolute value with two decimals.
	assert.Equal(t, "0.50%", payload.ChangePercentText)
}

func TestBuildPayloadRejectsBadPrice(t *testing.T) {
	_, err := buildPayload("BTCUSDT", market.Stats24h{LastPrice: "not-a-number"})
	require.Error(t, err)
}

func TestTrendVisuals(t *testing.T) {
	assert.Equal(t, "▲", TrendUp.Arrow())
	assert.Equal(t, "▼", TrendDown.Arrow())
	assert.Equal(t, "■", TrendFlat.Arrow())

	// Colors are a pure function of trend.
	assert.Equal(t, "#34C759", TrendUp.ArrowColor())
	assert.Equal(t, "#275C35", TrendUp.BadgeColor())
	assert.Equal(t, "#FF3B30", TrendDown.ArrowColor())
	assert.Equal(t, "#650212", TrendDown.BadgeColor())
	assert.Equal(t, "#5c5c5c", TrendFlat.ArrowColor())
	assert.Equal(t, "#4b4b4b", TrendFlat.BadgeColor())
}
