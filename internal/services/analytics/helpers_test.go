package analytics

import (
	"testing"
	"time"
	_ "time/tzdata"

	"ZeroDTE/internal/domain/models"
)

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return loc
}

// fullSnapshot returns a calm, complete snapshot; overrides replace readings.
func fullSnapshot(overrides map[models.Symbol]models.InstrumentReading) models.MarketSnapshot {
	readings := map[models.Symbol]models.InstrumentReading{}
	for _, sym := range models.Instruments() {
		readings[sym] = models.InstrumentReading{Last: 100, Open: 100, PrevClose: 100, RSI14: models.NeutralRSI}
	}
	readings[models.XSP] = models.InstrumentReading{
		Last: 580, Open: 579, PrevClose: 579.5, RSI14: 55,
		CloseSeries: []float64{570, 572, 574, 576, 578, 579, 579.5, 580, 580.2, 580},
	}
	readings[models.VIX] = models.InstrumentReading{Last: 15, Open: 15, PrevClose: 15}
	readings[models.VIX9D] = models.InstrumentReading{Last: 14, Open: 14, PrevClose: 14}
	readings[models.VIX1D] = models.InstrumentReading{Last: 15, Open: 15, PrevClose: 15}
	readings[models.SKEW] = models.InstrumentReading{Last: 130, Open: 130, PrevClose: 130}
	readings[models.SPY] = models.InstrumentReading{Last: 580, Open: 579, Volume: 800, AvgVolume: 1000}
	readings[models.TNX] = models.InstrumentReading{Last: 4.2, Open: 4.2, PrevClose: 4.3}
	for k, v := range overrides {
		readings[k] = v
	}
	return models.NewMarketSnapshot(readings, time.Date(2025, 1, 15, 16, 0, 0, 0, time.UTC))
}
