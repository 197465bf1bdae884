package analytics

import (
	"math"
	"time"

	"ZeroDTE/internal/domain/models"
	domsvc "ZeroDTE/internal/domain/service"
	"ZeroDTE/internal/services/features"
)

// RecentWindow is the trailing sample count compared against the full series.
const RecentWindow = 5

// RegimeClassifier derives regime, breadth confluence and directional bias.
type RegimeClassifier struct {
	session *Session
}

// NewRegimeClassifier classifies snapshots against the session clock.
func NewRegimeClassifier(session *Session) *RegimeClassifier {
	return &RegimeClassifier{session: session}
}

// Classify is pure: the same snapshot and instant give the same result.
func (c *RegimeClassifier) Classify(snap models.MarketSnapshot, now time.Time) models.Classification {
	var out models.Classification

	out.BreadthVotes = BreadthVotes(snap)
	out.Confluence = out.BreadthVotes >= 2

	// Off-hours the futures carry the directional read, if they are alive.
	out.MarketOpen = c.session.MarketOpen(now)
	proxy := snap.Reading(models.XSP)
	out.Proxy = models.ProxyPrimary
	if fut := snap.Reading(models.ESFut); !out.MarketOpen && fut.Available() {
		proxy = fut
		out.Proxy = models.ProxyFutures
	}
	out.HybridBiasBullish = proxy.AboveOpen() && out.Confluence

	xsp := snap.Reading(models.XSP)
	out.Regime, out.StdTotal, out.StdRecent = regimeOf(xsp.CloseSeries)
	out.RangePct = RangePct(xsp)

	tnx := snap.Reading(models.TNX)
	out.YieldVeto = tnx.Last > tnx.PrevClose
	out.BiasBullish = out.HybridBiasBullish && !out.YieldVeto
	return out
}

// BreadthVotes counts breadth proxies trading above their own open.
func BreadthVotes(snap models.MarketSnapshot) int {
	votes := 0
	for _, sym := range models.BreadthProxies() {
		if snap.Reading(sym).AboveOpen() {
			votes++
		}
	}
	return votes
}

// RangePct is the absolute move from the open in percent, 0 without an open.
func RangePct(r models.InstrumentReading) float64 {
	if r.Open == 0 {
		return 0
	}
	return math.Abs(r.Last-r.Open) / r.Open * 100
}

func regimeOf(closes []float64) (models.Regime, float64, float64) {
	total, ok := features.SampleStdDev(closes)
	if !ok {
		return models.RegimeCompression, 0, 0
	}
	recent, _ := features.SampleStdDev(features.Tail(closes, RecentWindow))
	if recent <= total {
		return models.RegimeCompression, total, recent
	}
	return models.RegimeExpansion, total, recent
}

var _ domsvc.RegimeClassifier = (*RegimeClassifier)(nil)
