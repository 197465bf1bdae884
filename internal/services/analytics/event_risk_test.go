package analytics

import (
	"testing"
	"time"

	"ZeroDTE/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usHigh(label, at string) models.RawEvent {
	return models.RawEvent{Country: "US", Impact: "high", Event: label, Time: at}
}

func TestEvaluateEmptyFeedIsNormal(t *testing.T) {
	ev := NewEventRiskEvaluator(NewSession(madrid(t)))
	st := ev.Evaluate(nil, time.Now())
	assert.False(t, st.Blocked)
	assert.Equal(t, models.WindowNormal, st.WindowKind)
	assert.Empty(t, st.MatchedEvents)
}

func TestEvaluateClassifiesByLocalTime(t *testing.T) {
	ev := NewEventRiskEvaluator(NewSession(madrid(t)))

	cases := []struct {
		name    string
		at      string // UTC; Madrid is UTC+1 in January
		blocked bool
		kind    models.WindowKind
	}{
		{"cpi before the open", "2025-01-15 13:30:00", false, models.WindowPreMarket},
		{"open boundary blocks", "2025-01-15 14:30:00", true, models.WindowNormal},
		{"mid session blocks", "2025-01-15 15:00:00", true, models.WindowNormal},
		{"late boundary blocks", "2025-01-15 18:30:00", true, models.WindowNormal},
		{"after late boundary", "2025-01-15 18:30:01", false, models.WindowLateAfternoon},
		{"fomc evening", "2025-01-15 19:00:00", false, models.WindowLateAfternoon},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := ev.Evaluate([]models.RawEvent{usHigh("CPI m/m", tc.at)}, time.Now())
			assert.Equal(t, tc.blocked, st.Blocked)
			assert.Equal(t, tc.kind, st.WindowKind)
			require.Len(t, st.MatchedEvents, 1)
			assert.Equal(t, "CPI m/m", st.MatchedEvents[0].Label)
		})
	}
}

func TestEvaluateFiltersIrrelevantEvents(t *testing.T) {
	ev := NewEventRiskEvaluator(NewSession(madrid(t)))
	events := []models.RawEvent{
		{Country: "EU", Impact: "high", Event: "ECB Interest Rate Decision", Time: "2025-01-15 15:00:00"},
		{Country: "US", Impact: "medium", Event: "PPI m/m", Time: "2025-01-15 15:00:00"},
		{Country: "US", Impact: "high", Event: "GDP q/q", Time: "2025-01-15 15:00:00"},
		{Country: "US", Impact: "high", Event: "Fed Chair Powell Speaks", Time: "not a time"},
	}
	st := ev.Evaluate(events, time.Now())
	assert.False(t, st.Blocked)
	assert.Equal(t, models.WindowNormal, st.WindowKind)
	assert.Empty(t, st.MatchedEvents)
}

func TestEvaluateKeywordsAreCaseInsensitive(t *testing.T) {
	ev := NewEventRiskEvaluator(NewSession(madrid(t)))
	st := ev.Evaluate([]models.RawEvent{usHigh("Initial Jobless Claims", "2025-01-15 15:00:00")}, time.Now())
	assert.True(t, st.Blocked)
}

func TestEvaluateLastMatchedWindowWins(t *testing.T) {
	ev := NewEventRiskEvaluator(NewSession(madrid(t)))
	pre := usHigh("CPI y/y", "2025-01-15 13:30:00")
	late := usHigh("FOMC Statement", "2025-01-15 19:00:00")

	st := ev.Evaluate([]models.RawEvent{pre, late}, time.Now())
	assert.Equal(t, models.WindowLateAfternoon, st.WindowKind)

	st = ev.Evaluate([]models.RawEvent{late, pre}, time.Now())
	assert.Equal(t, models.WindowPreMarket, st.WindowKind)
	require.Len(t, st.MatchedEvents, 2)
	assert.Equal(t, "FOMC Statement", st.MatchedEvents[0].Label)
	assert.Equal(t, 20, st.MatchedEvents[0].LocalTime.Hour())
}

func TestEvaluateBlockSurvivesLaterInformationalEvent(t *testing.T) {
	ev := NewEventRiskEvaluator(NewSession(madrid(t)))
	st := ev.Evaluate([]models.RawEvent{
		usHigh("PPI m/m", "2025-01-15 15:00:00"),
		usHigh("FOMC Minutes", "2025-01-15 19:00:00"),
	}, time.Now())
	assert.True(t, st.Blocked)
	assert.Equal(t, models.WindowLateAfternoon, st.WindowKind)
}

func TestEvaluateCustomKeywords(t *testing.T) {
	ev := NewEventRiskEvaluator(NewSession(madrid(t)), WithKeywords([]string{"gdp"}))
	st := ev.Evaluate([]models.RawEvent{usHigh("GDP q/q", "2025-01-15 15:00:00")}, time.Now())
	assert.True(t, st.Blocked)
}
