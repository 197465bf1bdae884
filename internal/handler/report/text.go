// Package report renders an analysis for terminals.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"ZeroDTE/internal/domain/models"
)

// Text writes the dashboard, the level table and the recommendation.
func Text(w io.Writer, a *models.Analysis, loc *time.Location) error {
	p := &printer{w: w}
	d := a.Dashboard

	p.linef("XSP 0DTE desk  %s  run %s", a.At.In(loc).Format("2006-01-02 15:04 MST"), a.ID)
	p.linef("")
	p.linef("XSP %.2f   breadth %s   SPY vol %.2fx   RSI %.1f", d.Price, okNo(d.BreadthOK), d.VolumeRatio, d.RSI)
	p.linef("VIX/VIX1D %.2f / %.2f   term %s   SKEW %.2f (%s)", d.VIX, d.VIX1D, term(d.VIXInverted), d.Skew, strings.ToLower(string(d.SkewBand)))
	p.linef("news %s   engine %s", news(d.NewsBlocked), engine(d.EngineMode))
	if len(d.DegradedInputs) > 0 {
		p.linef("degraded inputs: %s", strings.Join(d.DegradedInputs, ", "))
	}
	for _, ev := range a.EventRisk.MatchedEvents {
		p.linef("  event %s  %s", ev.LocalTime.In(loc).Format("15:04"), ev.Label)
	}
	p.linef("")

	if a.Recommendation.RiskBlocked {
		p.linef("BLOCKED: %s", blockText(a.Levels.BlockReason))
		return p.err
	}

	p.linef("regime %s   bias %s   sigma %.5f (vix ref %.2f)",
		strings.ToLower(string(a.Classification.Regime)), bias(a.Levels.BiasBullish), a.Levels.Sigma, a.Levels.VixRef)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGMA\tPOP\tPREMIUM\tSTRATEGY\tSTRIKES")
	for _, row := range a.Levels.Rows {
		fmt.Fprintf(tw, "%.1f\t%.1f%%\t$%.2f\t%s\t%s\n",
			row.SigmaMultiplier, row.POP*100, row.ExpectedPremium, row.Strategy.Label(), strikes(row))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	p.linef("")

	rec := a.Recommendation
	if rec.Row == nil {
		return p.err
	}
	p.linef("STRATEGY: %s (%.1f sigma)  %s", strings.ToUpper(rec.Label), rec.Row.SigmaMultiplier, strikes(*rec.Row))
	p.linef("POP %.1f%% | lots %d", rec.Row.POP*100, rec.LotCount)
	if g := rec.Guidance; g != nil {
		p.linef("TP: %.0f%% of premium", g.TakeProfitPct)
		p.linef("SL: %s", g.StopLoss)
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) linef(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func strikes(row models.LevelRow) string {
	if row.Strategy == models.StrategyIronCondor && row.CallLeg != nil && row.PutLeg != nil {
		return fmt.Sprintf("call %d/%d  put %d/%d", row.CallLeg.Sell, row.CallLeg.Buy, row.PutLeg.Sell, row.PutLeg.Buy)
	}
	return fmt.Sprintf("sell %d  buy %d", row.SellStrike, row.BuyStrike)
}

func blockText(r models.BlockReason) string {
	switch r {
	case models.BlockEventRisk:
		return "high-impact event inside the session"
	case models.BlockVolatilityRisk:
		return "VIX term inverted with SKEW above 148"
	default:
		return "critical market risk"
	}
}

func okNo(b bool) string {
	if b {
		return "OK"
	}
	return "NO"
}

func term(inverted bool) string {
	if inverted {
		return "inverted"
	}
	return "normal"
}

func news(blocked bool) string {
	if blocked {
		return "block"
	}
	return "clear"
}

func bias(bullish bool) string {
	if bullish {
		return "bullish"
	}
	return "bearish"
}

func engine(m models.EngineMode) string {
	if m == models.EngineHybridFutures {
		return "hybrid (futures + breadth)"
	}
	return "rth live"
}
