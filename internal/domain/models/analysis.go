package models

import "time"

// EngineMode labels which directional source the session window implies.
type EngineMode string

const (
	EngineHybridFutures EngineMode = "HYBRID_FUTURES"
	EngineRTHLive       EngineMode = "RTH_LIVE"
)

// SkewBand grades the SKEW index tail-risk reading.
type SkewBand string

const (
	SkewLow     SkewBand = "LOW"
	SkewCaution SkewBand = "CAUTION"
	SkewDanger  SkewBand = "DANGER"
)

// Dashboard is the headline indicator block shown above the level table.
type Dashboard struct {
	Price          float64    `json:"price"`
	BreadthOK      bool       `json:"breadth_ok"`
	VolumeRatio    float64    `json:"volume_ratio"`
	RSI            float64    `json:"rsi"`
	VIX            float64    `json:"vix"`
	VIX1D          float64    `json:"vix1d"`
	VIXInverted    bool       `json:"vix_inverted"`
	Skew           float64    `json:"skew"`
	SkewBand       SkewBand   `json:"skew_band"`
	NewsBlocked    bool       `json:"news_blocked"`
	EngineMode     EngineMode `json:"engine_mode"`
	DegradedInputs []string   `json:"degraded_inputs,omitempty"`
}

// Analysis is everything one pipeline run hands to presentation.
type Analysis struct {
	ID             string          `json:"id"`
	At             time.Time       `json:"at"`
	Capital        float64         `json:"capital"`
	Sigma          float64         `json:"sigma_multiplier"`
	EventRisk      EventRiskStatus `json:"event_risk"`
	Snapshot       MarketSnapshot  `json:"snapshot"`
	Classification Classification  `json:"classification"`
	Levels         LevelTable      `json:"levels"`
	Recommendation Recommendation  `json:"recommendation"`
	Dashboard      Dashboard       `json:"dashboard"`
}

// Tick is one trade print from the live stream.
type Tick struct {
	Symbol    Symbol  `json:"symbol"`
	Timestamp int64   `json:"ts"` // unix seconds
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
}

// Bar is an OHLCV record from a history backend.
type Bar struct {
	Bucket time.Time `json:"bucket"`
	Symbol string    `json:"symbol"` // provider ticker
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}
