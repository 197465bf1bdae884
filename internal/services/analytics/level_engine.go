package analytics

import (
	"math"

	"ZeroDTE/internal/domain/models"
	domsvc "ZeroDTE/internal/domain/service"
)

const (
	TradingDaysPerYear = 252
	FallbackVIX        = 15.0
	SkewBlockLevel     = 148.0

	CondorMaxVIX         = 19.0
	CondorMaxVolumeRatio = 1.2
	CondorMaxRangePct    = 0.40

	WingWidth      = 2    // strike points between sell and buy legs
	PremiumScale   = 200  // contract notional per unit of tail probability
	PremiumCapture = 0.65 // fraction of theoretical premium realistically filled
	ContractCost   = 1.50 // commissions and fees per structure

	RiskPerLot     = 200.0
	CapitalRiskPct = 0.02

	TakeProfitPct = 50.0
)

// DefaultSigmaMultipliers are the rows of the level table.
var DefaultSigmaMultipliers = []float64{1.1, 1.3, 1.5}

// LevelEngine places strikes at sigma multiples of the implied daily move.
type LevelEngine struct {
	multipliers []float64
}

// LevelEngineOption configures LevelEngine.
type LevelEngineOption func(*LevelEngine)

// WithSigmaMultipliers overrides the table rows.
func WithSigmaMultipliers(ms []float64) LevelEngineOption {
	return func(e *LevelEngine) {
		if len(ms) > 0 {
			e.multipliers = append([]float64(nil), ms...)
		}
	}
}

// NewLevelEngine builds the sigma table over DefaultSigmaMultipliers.
func NewLevelEngine(opts ...LevelEngineOption) *LevelEngine {
	e := &LevelEngine{multipliers: DefaultSigmaMultipliers}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Multipliers returns the configured table rows.
func (e *LevelEngine) Multipliers() []float64 {
	return append([]float64(nil), e.multipliers...)
}

// ComputeLevels returns no rows when the event gate or the VIX-inversion/SKEW
// gate trips.
func (e *LevelEngine) ComputeLevels(snap models.MarketSnapshot, cls models.Classification, risk models.EventRiskStatus) models.LevelTable {
	xsp := snap.Reading(models.XSP)
	vix := snap.Reading(models.VIX).Last

	t := models.LevelTable{
		VixRef:      VixRef(snap),
		VolumeRatio: VolumeRatio(snap.Reading(models.SPY)),
		Underlying:  xsp.Last,
		BiasBullish: cls.BiasBullish,
		Rows:        []models.LevelRow{},
	}
	t.Sigma = DailySigma(t.VixRef)

	switch {
	case risk.Blocked:
		t.Blocked, t.BlockReason = true, models.BlockEventRisk
		return t
	case VIXInverted(snap) && snap.Reading(models.SKEW).Last > SkewBlockLevel:
		t.Blocked, t.BlockReason = true, models.BlockVolatilityRisk
		return t
	}

	t.IronCondorEligible = cls.Regime == models.RegimeCompression &&
		vix < CondorMaxVIX &&
		t.VolumeRatio < CondorMaxVolumeRatio &&
		cls.RangePct < CondorMaxRangePct

	for _, m := range e.multipliers {
		t.Rows = append(t.Rows, levelRow(t, m))
	}
	return t
}

// Recommend picks the structure for the user's multiplier, which need not be
// one of the table rows.
func (e *LevelEngine) Recommend(t models.LevelTable, p domsvc.LevelParams) models.Recommendation {
	if t.Blocked {
		return models.Recommendation{RiskBlocked: true}
	}
	row := levelRow(t, p.SigmaMultiplier)
	return models.Recommendation{
		Row:      &row,
		LotCount: Lots(p.Capital),
		Label:    row.Strategy.Label(),
		Guidance: &models.RiskGuidance{
			TakeProfitPct: TakeProfitPct,
			StopLoss:      "short strike touched",
		},
	}
}

func levelRow(t models.LevelTable, m float64) models.LevelRow {
	dist := t.Underlying * t.Sigma * m
	row := models.LevelRow{SigmaMultiplier: m}
	if t.IronCondorEligible {
		row.POP = TwoSidedContainment(m)
	} else {
		row.POP = NormalCDF(m)
	}
	row.ExpectedPremium = ExpectedPremium(row.POP)

	switch {
	case t.IronCondorEligible:
		up, down := roundStrike(t.Underlying+dist), roundStrike(t.Underlying-dist)
		row.Strategy = models.StrategyIronCondor
		row.CallLeg = &models.StrikePair{Sell: up, Buy: up + WingWidth}
		row.PutLeg = &models.StrikePair{Sell: down, Buy: down - WingWidth}
	case t.BiasBullish:
		row.Strategy = models.StrategyBullPut
		row.SellStrike = roundStrike(t.Underlying - dist)
		row.BuyStrike = row.SellStrike - WingWidth
	default:
		row.Strategy = models.StrategyBearCall
		row.SellStrike = roundStrike(t.Underlying + dist)
		row.BuyStrike = row.SellStrike + WingWidth
	}
	return row
}

// VixRef prefers the 1-day VIX, then VIX, then a fixed fallback.
func VixRef(snap models.MarketSnapshot) float64 {
	if v := snap.Reading(models.VIX1D).Last; v > 0 {
		return v
	}
	if v := snap.Reading(models.VIX).Last; v > 0 {
		return v
	}
	return FallbackVIX
}

// DailySigma converts an annualized implied vol (in points) to one day.
func DailySigma(vixRef float64) float64 {
	return (vixRef / 100) / math.Sqrt(TradingDaysPerYear)
}

// VolumeRatio is current over average volume, 1.0 without an average.
func VolumeRatio(r models.InstrumentReading) float64 {
	if r.AvgVolume <= 0 {
		return 1.0
	}
	return r.Volume / r.AvgVolume
}

// VIXInverted reports a 9-day VIX above the 30-day VIX.
func VIXInverted(snap models.MarketSnapshot) bool {
	return snap.Reading(models.VIX9D).Last > snap.Reading(models.VIX).Last
}

// ExpectedPremium is a linear premium proxy net of costs, floored at zero.
func ExpectedPremium(pop float64) float64 {
	return math.Max(0, (1-pop)*PremiumScale*PremiumCapture-ContractCost)
}

// Lots risks a fixed share of capital per lot, never less than one.
func Lots(capital float64) int {
	n := int(math.Floor(capital * CapitalRiskPct / RiskPerLot))
	if n < 1 {
		return 1
	}
	return n
}

// SkewBandOf grades the SKEW index.
func SkewBandOf(skew float64) models.SkewBand {
	switch {
	case skew < 135:
		return models.SkewLow
	case skew < 145:
		return models.SkewCaution
	default:
		return models.SkewDanger
	}
}

// strikes round half to even
func roundStrike(x float64) int {
	return int(math.RoundToEven(x))
}

var _ domsvc.LevelEngine = (*LevelEngine)(nil)
