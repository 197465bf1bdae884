package models

import "time"

// Symbol identifies one instrument of the fixed tracked set.
type Symbol string

const (
	XSP   Symbol = "XSP"
	VIX   Symbol = "VIX"
	VIX9D Symbol = "VIX9D"
	VVIX  Symbol = "VVIX"
	VIX1D Symbol = "VIX1D"
	NDX   Symbol = "NDX"
	SPY   Symbol = "SPY"
	SKEW  Symbol = "SKEW"
	TNX   Symbol = "TNX"    // 10Y yield proxy
	ESFut Symbol = "ES_FUT" // E-mini front month
	AAPL  Symbol = "AAPL"
	MSFT  Symbol = "MSFT"
	NVDA  Symbol = "NVDA"
)

// Instruments returns the tracked set in display order.
func Instruments() []Symbol {
	return []Symbol{XSP, VIX, VIX9D, VVIX, VIX1D, NDX, SPY, SKEW, TNX, ESFut, AAPL, MSFT, NVDA}
}

// BreadthProxies are the mega-caps used as a sentiment confirmation basket.
func BreadthProxies() []Symbol {
	return []Symbol{AAPL, MSFT, NVDA}
}

// IsKnown reports whether s belongs to the tracked set.
func (s Symbol) IsKnown() bool {
	for _, k := range Instruments() {
		if k == s {
			return true
		}
	}
	return false
}

// NeutralRSI is used when RSI cannot be computed or does not apply.
const NeutralRSI = 50.0

// InstrumentReading is a per-instrument price/volume/volatility sample.
// A reading with Last == 0 is the fetch-failed sentinel.
type InstrumentReading struct {
	Last        float64   `json:"last"`
	Open        float64   `json:"open"`
	DayLow      float64   `json:"day_low"`
	DayHigh     float64   `json:"day_high"`
	Volume      float64   `json:"volume"`
	AvgVolume   float64   `json:"avg_volume"`
	RSI14       float64   `json:"rsi14"`
	PrevClose   float64   `json:"prev_close"`
	CloseSeries []float64 `json:"close_series,omitempty"`
}

// SentinelReading is what a failed fetch must produce.
func SentinelReading() InstrumentReading {
	return InstrumentReading{RSI14: NeutralRSI}
}

// Available reports whether the reading carries data.
func (r InstrumentReading) Available() bool { return r.Last != 0 }

// AboveOpen reports whether the instrument trades above its own open.
func (r InstrumentReading) AboveOpen() bool { return r.Last > r.Open }

// MarketSnapshot maps every tracked symbol to its reading, plus breadth/bias
// attached once after classification.
type MarketSnapshot struct {
	Readings            map[Symbol]InstrumentReading `json:"readings"`
	BreadthVotesBullish int                          `json:"breadth_votes_bullish"`
	HybridBiasBullish   bool                         `json:"hybrid_bias_bullish"`
	TakenAt             time.Time                    `json:"taken_at"`
}

// NewMarketSnapshot copies readings into a fresh snapshot.
func NewMarketSnapshot(readings map[Symbol]InstrumentReading, takenAt time.Time) MarketSnapshot {
	m := make(map[Symbol]InstrumentReading, len(readings))
	for k, v := range readings {
		m[k] = v
	}
	return MarketSnapshot{Readings: m, TakenAt: takenAt}
}

// Reading returns the reading for s, or the sentinel when absent.
func (s MarketSnapshot) Reading(sym Symbol) InstrumentReading {
	if r, ok := s.Readings[sym]; ok {
		return r
	}
	return SentinelReading()
}

// Validate checks that every tracked symbol has an entry and that the
// primary instrument is usable.
func (s MarketSnapshot) Validate() error {
	var missing []string
	for _, sym := range Instruments() {
		if _, ok := s.Readings[sym]; !ok {
			missing = append(missing, string(sym))
		}
	}
	if len(missing) > 0 {
		return &IncompleteSnapshotError{Missing: missing}
	}
	if !s.Reading(XSP).Available() {
		return ErrConnectivityFailure
	}
	return nil
}

// WithBreadth returns a copy carrying the breadth vote count and hybrid bias.
func (s MarketSnapshot) WithBreadth(votes int, hybridBullish bool) MarketSnapshot {
	out := NewMarketSnapshot(s.Readings, s.TakenAt)
	out.BreadthVotesBullish = votes
	out.HybridBiasBullish = hybridBullish
	return out
}
