package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"ZeroDTE/internal/domain/models"
	domsvc "ZeroDTE/internal/domain/service"
	"ZeroDTE/internal/services/analytics"
)

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return loc
}

func calmReadings() map[models.Symbol]models.InstrumentReading {
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
	readings[models.SPY] = models.InstrumentReading{Last: 580, Open: 579, Volume: 800, AvgVolume: 1000, DayLow: 578, DayHigh: 581}
	readings[models.TNX] = models.InstrumentReading{Last: 4.2, Open: 4.2, PrevClose: 4.3}
	return readings
}

type fakeQuotes struct {
	mu       sync.Mutex
	readings map[models.Symbol]models.InstrumentReading
	errs     map[models.Symbol]error
	calls    int
}

func (f *fakeQuotes) Reading(_ context.Context, sym models.Symbol) (models.InstrumentReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[sym]; err != nil {
		return models.SentinelReading(), &models.FetchError{Source: "yahoo", Symbol: string(sym), Err: err}
	}
	return f.readings[sym], nil
}

type fakeCalendar struct {
	events []models.RawEvent
	err    error
	day    time.Time
}

func (f *fakeCalendar) Events(_ context.Context, day time.Time) ([]models.RawEvent, error) {
	f.day = day
	return f.events, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*models.Analysis
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, a *models.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, a)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

type recMetrics struct {
	mu          sync.Mutex
	outcomes    map[string]int
	fetchErrors map[string]int
	errors      map[string]int
	prices      map[string]float64
}

func newRecMetrics() *recMetrics {
	return &recMetrics{
		outcomes:    map[string]int{},
		fetchErrors: map[string]int{},
		errors:      map[string]int{},
		prices:      map[string]float64{},
	}
}

func (m *recMetrics) RecordAnalysis(o string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[o]++
}

func (m *recMetrics) RecordFetchError(source, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErrors[source+"/"+symbol]++
}

func (m *recMetrics) RecordLastPrice(s string, p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[s] = p
}

func (m *recMetrics) RecordLatency(string, float64) {}

func (m *recMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

type harness struct {
	quotes    *fakeQuotes
	calendar  *fakeCalendar
	publisher *fakePublisher
	metrics   *recMetrics
	runner    *AnalysisRunner
	now       time.Time
}

// newHarness wires real analytics around fakes; the clock sits at 17:00
// Madrid on a winter Monday, inside the regular session.
func newHarness(t *testing.T) *harness {
	t.Helper()
	loc := madrid(t)
	h := &harness{
		quotes:    &fakeQuotes{readings: calmReadings(), errs: map[models.Symbol]error{}},
		calendar:  &fakeCalendar{},
		publisher: &fakePublisher{},
		metrics:   newRecMetrics(),
		now:       time.Date(2025, 1, 13, 17, 0, 0, 0, loc),
	}
	session := analytics.NewSession(loc)
	h.runner = NewAnalysisRunner(
		NewSnapshotBuilder(h.quotes, h.metrics, nil),
		h.calendar,
		analytics.NewEventRiskEvaluator(session),
		analytics.NewRegimeClassifier(session),
		analytics.NewLevelEngine(),
		session,
		h.metrics,
		domsvc.LevelParams{Capital: 10000, SigmaMultiplier: 1.3},
		WithPublisher(h.publisher),
		WithClock(func() time.Time { return h.now }),
	)
	return h
}

var errDown = errors.New("down")
