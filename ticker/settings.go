package ticker

import (
	"encoding/json"
	"strings"
)

// DefaultSymbol is used when an instance has no symbol configured.
const DefaultSymbol = "BTCUSDT"

// Settings is the per-instance configuration persisted by the host. The host
// payload is an opaque key-value bag; only the symbol is read here.
type Settings struct {
	Symbol string `json:"symbol"`
}

// ParseSettings decodes a host settings payload. Malformed or absent payloads
// yield zero settings, which normalize to the default symbol.
func ParseSettings(raw json.RawMessage) Settings {
	var s Settings
	if len(raw) == 0 {
		return s
	}
	_ = json.Unmarshal(raw, &s)
	return s
}

// NormalizedSymbol returns the configured trading pair in upper case, falling
// back to DefaultSymbol when unset.
func (s Settings) NormalizedSymbol() string {
	sym := strings.TrimSpace(s.Symbol)
	if sym == "" {
		sym = DefaultSymbol
	}
	return strings.ToUpper(sym)
}
