package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ZeroDTE/internal/domain/models"
)

func sample() *models.Analysis {
	row := models.LevelRow{
		SigmaMultiplier: 1.3, POP: 0.9032, ExpectedPremium: 11.08,
		Strategy: models.StrategyBullPut, SellStrike: 573, BuyStrike: 571,
	}
	return &models.Analysis{
		ID: "run-1",
		At: time.Date(2025, 1, 13, 16, 0, 0, 0, time.UTC),
		Dashboard: models.Dashboard{
			Price: 580, BreadthOK: true, VolumeRatio: 0.8, RSI: 55, VIX: 15, VIX1D: 14,
			Skew: 130, SkewBand: models.SkewLow, EngineMode: models.EngineRTHLive,
			DegradedInputs: []string{"VVIX"},
		},
		Classification: models.Classification{Regime: models.RegimeExpansion},
		Levels: models.LevelTable{
			BiasBullish: true, Sigma: 0.0094, VixRef: 15,
			Rows: []models.LevelRow{
				row,
				{SigmaMultiplier: 1.5, POP: 0.93, ExpectedPremium: 7.6, Strategy: models.StrategyIronCondor,
					CallLeg: &models.StrikePair{Sell: 588, Buy: 590}, PutLeg: &models.StrikePair{Sell: 572, Buy: 570}},
			},
		},
		Recommendation: models.Recommendation{
			Row: &row, LotCount: 2, Label: "Bull Put",
			Guidance: &models.RiskGuidance{TakeProfitPct: 50, StopLoss: "short strike touched"},
		},
	}
}

func TestTextRendersTableAndRecommendation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, sample(), time.UTC))
	out := buf.String()

	assert.Contains(t, out, "run run-1")
	assert.Contains(t, out, "XSP 580.00")
	assert.Contains(t, out, "degraded inputs: VVIX")
	assert.Contains(t, out, "sell 573  buy 571")
	assert.Contains(t, out, "call 588/590  put 572/570")
	assert.Contains(t, out, "STRATEGY: BULL PUT (1.3 sigma)")
	assert.Contains(t, out, "POP 90.3% | lots 2")
	assert.Contains(t, out, "TP: 50% of premium")
}

func TestTextBlocked(t *testing.T) {
	a := sample()
	a.Levels = models.LevelTable{Blocked: true, BlockReason: models.BlockEventRisk}
	a.Recommendation = models.Recommendation{RiskBlocked: true}
	a.EventRisk.MatchedEvents = []models.MatchedEvent{{Label: "CPI YoY", LocalTime: a.At}}

	var buf bytes.Buffer
	require.NoError(t, Text(&buf, a, time.UTC))
	out := buf.String()

	assert.Contains(t, out, "BLOCKED: high-impact event")
	assert.Contains(t, out, "event 16:00  CPI YoY")
	assert.NotContains(t, out, "STRATEGY")
	assert.NotContains(t, out, "SIGMA")
}
