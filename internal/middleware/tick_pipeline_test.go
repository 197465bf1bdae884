package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ZeroDTE/internal/domain/models"
)

type recMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	prices map[string]float64
}

func newRecMetrics() *recMetrics {
	return &recMetrics{errors: map[string]int{}, prices: map[string]float64{}}
}

func (m *recMetrics) RecordAnalysis(string)           {}
func (m *recMetrics) RecordFetchError(string, string) {}
func (m *recMetrics) RecordLatency(string, float64)   {}
func (m *recMetrics) RecordLastPrice(s string, p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[s] = p
}
func (m *recMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

type sliceSink struct {
	ticks []*models.Tick
	err   error
}

func (s *sliceSink) Process(_ context.Context, t *models.Tick) error {
	if s.err != nil {
		return s.err
	}
	s.ticks = append(s.ticks, t)
	return nil
}

func tick(sym models.Symbol, px float64) *models.Tick {
	return &models.Tick{Symbol: sym, Timestamp: 1700000000, Price: px, Volume: 1}
}

func TestPipelineForwardsValidTicks(t *testing.T) {
	sink := &sliceSink{}
	m := newRecMetrics()
	p := NewTickPipeline(sink, m)

	require.NoError(t, p.Process(context.Background(), tick(models.SPY, 512)))
	require.Len(t, sink.ticks, 1)
	assert.Equal(t, 512.0, m.prices["SPY"])
}

func TestPipelineRejectsInvalidTicks(t *testing.T) {
	sink := &sliceSink{}
	m := newRecMetrics()
	p := NewTickPipeline(sink, m)

	cases := []*models.Tick{
		nil,
		tick("TSLA", 1),
		{Symbol: models.SPY, Price: 1},
		tick(models.SPY, 0),
		{Symbol: models.SPY, Timestamp: 1, Price: 1, Volume: -1},
	}
	for _, c := range cases {
		assert.Error(t, p.Process(context.Background(), c))
	}
	assert.Empty(t, sink.ticks)
	assert.Equal(t, len(cases), m.errors["pipeline_validate"])
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	sink := &sliceSink{}
	m := newRecMetrics()
	p := NewTickPipeline(sink, m, WithMaxRPS(1))

	require.NoError(t, p.Process(context.Background(), tick(models.SPY, 1)))
	assert.ErrorIs(t, p.Process(context.Background(), tick(models.SPY, 2)), ErrThrottled)
	require.NoError(t, p.Process(context.Background(), tick(models.AAPL, 3)))
	assert.Len(t, sink.ticks, 2)
	assert.Equal(t, 1, m.errors["pipeline_throttle"])
}

func TestPipelineTransform(t *testing.T) {
	sink := &sliceSink{}
	p := NewTickPipeline(sink, newRecMetrics(), WithTransform(func(t *models.Tick) *models.Tick {
		out := *t
		out.Symbol = models.ESFut
		return &out
	}))

	require.NoError(t, p.Process(context.Background(), tick(models.SPY, 5000)))
	assert.Equal(t, models.ESFut, sink.ticks[0].Symbol)
}

func TestPipelineDownstreamError(t *testing.T) {
	m := newRecMetrics()
	p := NewTickPipeline(&sliceSink{err: errors.New("full")}, m)

	assert.ErrorContains(t, p.Process(context.Background(), tick(models.SPY, 1)), "full")
	assert.Equal(t, 1, m.errors["pipeline_process"])
}
