package models

// Regime is the realized-volatility regime of the primary instrument.
type Regime string

const (
	RegimeCompression Regime = "COMPRESSION"
	RegimeExpansion   Regime = "EXPANSION"
)

// StrategyKind is the recommended structure.
type StrategyKind string

const (
	StrategyIronCondor StrategyKind = "IRON_CONDOR"
	StrategyBullPut    StrategyKind = "BULL_PUT"
	StrategyBearCall   StrategyKind = "BEAR_CALL"
)

// Label is the human-readable structure name.
func (k StrategyKind) Label() string {
	switch k {
	case StrategyIronCondor:
		return "Iron Condor"
	case StrategyBullPut:
		return "Bull Put"
	case StrategyBearCall:
		return "Bear Call"
	default:
		return string(k)
	}
}

// ProxySource names the instrument used for the directional read.
type ProxySource string

const (
	ProxyPrimary ProxySource = "XSP"
	ProxyFutures ProxySource = "ES_FUT"
)

// Classification is the output of the regime and bias classifier.
type Classification struct {
	Regime            Regime      `json:"regime"`
	BreadthVotes      int         `json:"breadth_votes"`
	Confluence        bool        `json:"confluence"`
	MarketOpen        bool        `json:"market_open"`
	Proxy             ProxySource `json:"proxy"`
	HybridBiasBullish bool        `json:"hybrid_bias_bullish"`
	YieldVeto         bool        `json:"yield_veto"`
	BiasBullish       bool        `json:"bias_bullish"`
	RangePct          float64     `json:"range_pct"`
	StdTotal          float64     `json:"std_total"`
	StdRecent         float64     `json:"std_recent"`
}

// StrikePair is a sell/buy strike pair of one credit spread.
type StrikePair struct {
	Sell int `json:"sell"`
	Buy  int `json:"buy"`
}

// LevelRow is the strike placement for one sigma multiplier.
type LevelRow struct {
	SigmaMultiplier float64      `json:"sigma_multiplier"`
	POP             float64      `json:"pop"`
	ExpectedPremium float64      `json:"expected_premium"`
	Strategy        StrategyKind `json:"strategy"`
	CallLeg         *StrikePair  `json:"call_leg,omitempty"`
	PutLeg          *StrikePair  `json:"put_leg,omitempty"`
	SellStrike      int          `json:"sell_strike,omitempty"`
	BuyStrike       int          `json:"buy_strike,omitempty"`
}

// BlockReason explains a hard stop.
type BlockReason string

const (
	BlockNone           BlockReason = ""
	BlockEventRisk      BlockReason = "EVENT_RISK"
	BlockVolatilityRisk BlockReason = "VIX_INVERSION_SKEW"
)

// LevelTable is the output of the strategy and level engine.
type LevelTable struct {
	Blocked            bool        `json:"blocked"`
	BlockReason        BlockReason `json:"block_reason,omitempty"`
	IronCondorEligible bool        `json:"iron_condor_eligible"`
	VixRef             float64     `json:"vix_ref"`
	Sigma              float64     `json:"sigma"`
	VolumeRatio        float64     `json:"volume_ratio"`
	Underlying         float64     `json:"underlying"`
	BiasBullish        bool        `json:"bias_bullish"`
	Rows               []LevelRow  `json:"rows"`
}

// RiskGuidance is the management plan attached to a recommendation.
type RiskGuidance struct {
	TakeProfitPct float64 `json:"take_profit_pct"`
	StopLoss      string  `json:"stop_loss"`
}

// Recommendation is the final structure for the user's multiplier.
type Recommendation struct {
	RiskBlocked bool          `json:"risk_blocked"`
	Row         *LevelRow     `json:"row,omitempty"`
	LotCount    int           `json:"lot_count,omitempty"`
	Label       string        `json:"label,omitempty"`
	Guidance    *RiskGuidance `json:"guidance,omitempty"`
}
