package features

import (
	"math"

	"ZeroDTE/internal/domain/models"
)

// RSIPeriod is the lookback of the relative strength index.
const RSIPeriod = 14

// RSI computes a simple-moving-average RSI over the trailing period of closes.
// The first close contributes a zero change, so exactly `period` closes are
// enough. Returns models.NeutralRSI when the series is too short or flat.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return models.NeutralRSI
	}
	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		if i == 0 {
			continue // diff of the first sample is treated as zero
		}
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	switch {
	case loss == 0 && gain == 0:
		return models.NeutralRSI
	case loss == 0:
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStdDev returns the n-1 standard deviation. ok is false for fewer
// than two samples, where it is undefined.
func SampleStdDev(xs []float64) (std float64, ok bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1)), true
}

// Tail returns the last n elements (all of xs when shorter).
func Tail(xs []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

// Closes extracts close prices from bars in order.
func Closes(bars []models.Bar) []float64 {
	out := make([]float64, 0, len(bars))
	for _, b := range bars {
		out = append(out, b.Close)
	}
	return out
}

// ReadingFromBars folds an ordered bar series into an instrument reading.
// Open and Volume come from the latest bar (the daily bar on the fallback
// series); DayLow/DayHigh span all bars and
// AvgVolume is the mean volume. RSI is only computed when withRSI is set.
func ReadingFromBars(bars []models.Bar, withRSI bool) models.InstrumentReading {
	if len(bars) == 0 {
		return models.SentinelReading()
	}
	closes := Closes(bars)
	last := bars[len(bars)-1]
	r := models.InstrumentReading{
		Last:        last.Close,
		Open:        last.Open,
		DayLow:      bars[0].Low,
		DayHigh:     bars[0].High,
		Volume:      last.Volume,
		RSI14:       models.NeutralRSI,
		PrevClose:   last.Close,
		CloseSeries: closes,
	}
	vols := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Low < r.DayLow {
			r.DayLow = b.Low
		}
		if b.High > r.DayHigh {
			r.DayHigh = b.High
		}
		vols = append(vols, b.Volume)
	}
	r.AvgVolume = Mean(vols)
	if len(closes) > 1 {
		r.PrevClose = closes[len(closes)-2]
	}
	if withRSI {
		r.RSI14 = RSI(closes, RSIPeriod)
	}
	return r
}
