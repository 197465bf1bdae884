package repository

import (
	"fmt"
	"strings"

	"ZeroDTE/internal/domain/models"
)

var defaultTickers = map[models.Symbol]string{
	models.XSP:   "^XSP",
	models.VIX:   "^VIX",
	models.VIX9D: "^VIX9D",
	models.VVIX:  "^VVIX",
	models.VIX1D: "^VIX1D",
	models.NDX:   "^NDX",
	models.SPY:   "SPY",
	models.SKEW:  "^SKEW",
	models.TNX:   "^TNX",
	models.ESFut: "ES=F",
	models.AAPL:  "AAPL",
	models.MSFT:  "MSFT",
	models.NVDA:  "NVDA",
}

// TickerMap resolves a tracked instrument to the history backend's ticker.
type TickerMap map[models.Symbol]string

// NewTickerMap returns the default tickers with overrides applied. Override
// keys must name tracked instruments.
func NewTickerMap(overrides map[string]string) (TickerMap, error) {
	m := make(TickerMap, len(defaultTickers))
	for k, v := range defaultTickers {
		m[k] = v
	}
	for k, v := range overrides {
		sym := models.Symbol(strings.ToUpper(k))
		if !sym.IsKnown() {
			return nil, fmt.Errorf("ticker override: unknown instrument %q", k)
		}
		if v = strings.TrimSpace(v); v == "" {
			return nil, fmt.Errorf("ticker override %s: empty ticker", sym)
		}
		m[sym] = v
	}
	return m, nil
}

// Ticker returns the backend ticker for sym, falling back to its name.
func (m TickerMap) Ticker(sym models.Symbol) string {
	if t, ok := m[sym]; ok {
		return t
	}
	return string(sym)
}
