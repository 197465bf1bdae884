package features

import (
	"testing"
	"time"

	"ZeroDTE/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSIShortSeriesIsNeutral(t *testing.T) {
	assert.Equal(t, models.NeutralRSI, RSI([]float64{1, 2, 3}, RSIPeriod))
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	assert.Equal(t, 100.0, RSI(closes, RSIPeriod))
}

func TestRSIFlatIsNeutral(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 50
	}
	assert.Equal(t, models.NeutralRSI, RSI(closes, RSIPeriod))
}

func TestRSIBalanced(t *testing.T) {
	// alternating +1/-1 over the window gives equal gains and losses
	closes := []float64{10}
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			closes = append(closes, closes[len(closes)-1]+1)
		} else {
			closes = append(closes, closes[len(closes)-1]-1)
		}
	}
	assert.InDelta(t, 50.0, RSI(closes, RSIPeriod), 1e-9)
}

func TestSampleStdDev(t *testing.T) {
	_, ok := SampleStdDev([]float64{1})
	assert.False(t, ok)

	std, ok := SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.True(t, ok)
	assert.InDelta(t, 2.138089935, std, 1e-6)
}

func TestTail(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6}
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, Tail(xs, 5))
	assert.Equal(t, []float64{1, 2}, Tail(xs[:2], 5))
	assert.Nil(t, Tail(xs, 0))
}

func TestReadingFromBars(t *testing.T) {
	t0 := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)
	bars := []models.Bar{
		{Bucket: t0, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
		{Bucket: t0.Add(time.Minute), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 30},
		{Bucket: t0.Add(2 * time.Minute), Open: 101.5, High: 101.8, Low: 98.5, Close: 99, Volume: 20},
	}

	r := ReadingFromBars(bars, false)
	assert.Equal(t, 99.0, r.Last)
	assert.Equal(t, 101.5, r.Open)
	assert.Equal(t, 98.5, r.DayLow)
	assert.Equal(t, 102.0, r.DayHigh)
	assert.Equal(t, 20.0, r.Volume)
	assert.Equal(t, 20.0, r.AvgVolume)
	assert.Equal(t, 101.5, r.PrevClose)
	assert.Equal(t, models.NeutralRSI, r.RSI14)
	assert.Equal(t, []float64{100.5, 101.5, 99}, r.CloseSeries)
}

func TestReadingFromSingleBarFallsBackToLast(t *testing.T) {
	r := ReadingFromBars([]models.Bar{{Open: 10, High: 11, Low: 9, Close: 10.5}}, true)
	assert.Equal(t, 10.5, r.PrevClose)
	assert.Equal(t, models.NeutralRSI, r.RSI14)
}

func TestReadingFromNoBarsIsSentinel(t *testing.T) {
	assert.False(t, ReadingFromBars(nil, true).Available())
}
