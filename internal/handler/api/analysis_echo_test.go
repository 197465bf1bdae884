package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
	domsvc "ZeroDTE/internal/domain/service"
	"ZeroDTE/internal/service/ratelimit"
	"ZeroDTE/internal/services/analytics"
	"ZeroDTE/internal/usecase"
)

type stubQuotes struct{ failXSP bool }

func (s stubQuotes) Reading(_ context.Context, sym models.Symbol) (models.InstrumentReading, error) {
	if sym == models.XSP && s.failXSP {
		return models.SentinelReading(), &models.FetchError{Source: "yahoo", Symbol: "XSP", Err: errors.New("timeout")}
	}
	r := models.InstrumentReading{Last: 100, Open: 100, PrevClose: 100, RSI14: models.NeutralRSI}
	switch sym {
	case models.XSP:
		r = models.InstrumentReading{Last: 580, Open: 579, PrevClose: 579, RSI14: 55,
			CloseSeries: []float64{570, 572, 574, 576, 578, 579, 579.5, 580, 580.2, 580}}
	case models.VIX, models.VIX1D:
		r.Last, r.Open = 15, 15
	case models.VIX9D:
		r.Last, r.Open = 14, 14
	case models.SKEW:
		r.Last = 130
	}
	return r, nil
}

type stubCalendar struct{ events []models.RawEvent }

func (s stubCalendar) Events(context.Context, time.Time) ([]models.RawEvent, error) {
	return s.events, nil
}

type stubBars struct{}

func (stubBars) GetBars(_ context.Context, ticker string, from, to time.Time, _ domrepo.Interval) ([]models.Bar, error) {
	return []models.Bar{{Bucket: from, Symbol: ticker, Close: 580}}, nil
}

func (stubBars) GetLatestNBars(context.Context, string, int, domrepo.Interval) ([]models.Bar, error) {
	return nil, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordAnalysis(string)           {}
func (nopMetrics) RecordFetchError(string, string) {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}
func (nopMetrics) RecordError(string)              {}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newServer(t *testing.T, q stubQuotes, events []models.RawEvent, limiter *ratelimit.Limiter, checks map[string]HealthCheck) *echo.Echo {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	now := time.Date(2025, 1, 13, 17, 0, 0, 0, loc)
	session := analytics.NewSession(loc)
	runner := usecase.NewAnalysisRunner(
		usecase.NewSnapshotBuilder(q, nopMetrics{}, nil),
		stubCalendar{events: events},
		analytics.NewEventRiskEvaluator(session),
		analytics.NewRegimeClassifier(session),
		analytics.NewLevelEngine(),
		session,
		nopMetrics{},
		domsvc.LevelParams{Capital: 10000, SigmaMultiplier: 1.3},
		usecase.WithClock(func() time.Time { return now }),
	)
	bars := usecase.NewBarsUseCase(stubBars{}, func(s models.Symbol) string { return "^" + string(s) })
	h := NewAnalysisEchoHandler(nil, runner, bars, limiter, loc, checks)
	h.now = func() time.Time { return now }

	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func get(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestAnalysisOK(t *testing.T) {
	e := newServer(t, stubQuotes{}, nil, nil, nil)

	rec, env := get(t, e, "/api/analysis?capital=50000&sigma=1.5")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get(echo.HeaderCacheControl))

	var a models.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, 50000.0, a.Capital)
	assert.Equal(t, 1.5, a.Sigma)
	require.NotNil(t, a.Recommendation.Row)
	assert.Equal(t, 5, a.Recommendation.LotCount)
	assert.Len(t, a.Levels.Rows, 3)
}

func TestAnalysisDefaults(t *testing.T) {
	e := newServer(t, stubQuotes{}, nil, nil, nil)

	rec, env := get(t, e, "/api/analysis")
	require.Equal(t, http.StatusOK, rec.Code)
	var a models.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, 10000.0, a.Capital)
	assert.Equal(t, 1.3, a.Sigma)
}

func TestAnalysisRejectsSigmaOutsideSet(t *testing.T) {
	e := newServer(t, stubQuotes{}, nil, nil, nil)

	rec, env := get(t, e, "/api/analysis?sigma=1.2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_ONEOF")
}

func TestAnalysisRejectsNegativeCapital(t *testing.T) {
	e := newServer(t, stubQuotes{}, nil, nil, nil)

	rec, env := get(t, e, "/api/analysis?capital=-10")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "capital")
}

func TestAnalysisConnectivityFailure(t *testing.T) {
	e := newServer(t, stubQuotes{failXSP: true}, nil, nil, nil)

	rec, env := get(t, e, "/api/analysis")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_CONNECTIVITY")
}

func TestAnalysisRiskBlockIsNotAnError(t *testing.T) {
	events := []models.RawEvent{{Country: "US", Impact: "high", Event: "CPI YoY", Time: "2025-01-13 16:00:00"}}
	e := newServer(t, stubQuotes{}, events, nil, nil)

	rec, env := get(t, e, "/api/analysis")
	require.Equal(t, http.StatusOK, rec.Code)
	var a models.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.True(t, a.Recommendation.RiskBlocked)
	assert.Nil(t, a.Recommendation.Row)
}

func TestRateLimitPerClient(t *testing.T) {
	e := newServer(t, stubQuotes{}, nil, ratelimit.PerMinute(1), nil)

	rec, _ := get(t, e, "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, env := get(t, e, "/api/events")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_RATE_LIMITED")

	// health checks are not budgeted
	rec, _ = get(t, e, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEvents(t *testing.T) {
	events := []models.RawEvent{
		{Country: "US", Impact: "high", Event: "Initial Jobless Claims", Time: "2025-01-13 13:30:00"},
	}
	e := newServer(t, stubQuotes{}, events, nil, nil)

	rec, env := get(t, e, "/api/events?date=2025-01-13")
	require.Equal(t, http.StatusOK, rec.Code)
	var res EventsResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "2025-01-13", res.Date)
	assert.False(t, res.Status.Blocked)
	assert.Equal(t, models.WindowPreMarket, res.Status.WindowKind)
	require.Len(t, res.Status.MatchedEvents, 1)
	assert.Empty(t, res.FeedError)
}

func TestEventsBadDate(t *testing.T) {
	e := newServer(t, stubQuotes{}, nil, nil, nil)

	rec, _ := get(t, e, "/api/events?date=13/01/2025")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBars(t *testing.T) {
	e := newServer(t, stubQuotes{}, nil, nil, nil)

	rec, env := get(t, e, "/api/bars?symbol=vix&interval=1d")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res usecase.GetBarsResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, models.VIX, res.Symbol)
	assert.Equal(t, "^VIX", res.Ticker)
	assert.Equal(t, domrepo.Interval1d, res.Interval)
	assert.Equal(t, 1, res.Count)

	rec, _ = get(t, e, "/api/bars?symbol=TSLA")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = get(t, e, "/api/bars")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	e := newServer(t, stubQuotes{}, nil, nil, map[string]HealthCheck{
		"clickhouse": func(context.Context) error { return nil },
		"redis":      func(context.Context) error { return errors.New("refused") },
	})

	rec, env := get(t, e, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "ok", status["clickhouse"])
	assert.Equal(t, "refused", status["redis"])
}
