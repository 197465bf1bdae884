package repository

import (
	"context"
	"errors"
	"time"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
	"ZeroDTE/internal/services/features"
	applogger "ZeroDTE/pkg/logger"
)

// ErrNoBars means neither the intraday nor the daily series had data.
var ErrNoBars = errors.New("no bars")

// dailyFallbackBars is how many daily bars stand in for a missing session.
const dailyFallbackBars = 5

// HistoryQuotes turns a HistoryStore into a QuoteProvider: the current
// session's minute bars, or the last few daily bars when the session has
// none.
type HistoryQuotes struct {
	store    domrepo.HistoryStore
	tickers  TickerMap
	source   string
	lookback int
	loc      *time.Location
	l        *applogger.Logger
}

// NewHistoryQuotes wires a history backend. source names it in FetchError;
// loc decides where one trading day ends and the next begins.
func NewHistoryQuotes(store domrepo.HistoryStore, tickers TickerMap, source string, lookback int, loc *time.Location, l *applogger.Logger) *HistoryQuotes {
	if tickers == nil {
		tickers, _ = NewTickerMap(nil)
	}
	if lookback <= 0 {
		lookback = 390
	}
	if loc == nil {
		loc = time.UTC
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &HistoryQuotes{store: store, tickers: tickers, source: source, lookback: lookback, loc: loc, l: l}
}

// Reading fetches and folds the bar series for sym. RSI is only computed for
// the primary instrument.
func (h *HistoryQuotes) Reading(ctx context.Context, sym models.Symbol) (models.InstrumentReading, error) {
	ticker := h.tickers.Ticker(sym)
	start := time.Now()

	bars, err := h.store.GetLatestNBars(ctx, ticker, h.lookback, domrepo.Interval1m)
	if err == nil {
		bars = sessionBars(bars, h.loc)
	}
	if err != nil && ctx.Err() != nil {
		return models.SentinelReading(), &models.FetchError{Source: h.source, Symbol: string(sym), Err: err}
	}
	if err != nil || len(bars) == 0 {
		if err != nil {
			h.l.Debug("intraday bars unavailable, trying daily",
				applogger.String("symbol", string(sym)),
				applogger.String("ticker", ticker),
				applogger.Error(err))
		}
		bars, err = h.store.GetLatestNBars(ctx, ticker, dailyFallbackBars, domrepo.Interval1d)
	}
	if err != nil {
		return models.SentinelReading(), &models.FetchError{Source: h.source, Symbol: string(sym), Err: err}
	}
	if len(bars) == 0 {
		return models.SentinelReading(), &models.FetchError{Source: h.source, Symbol: string(sym), Err: ErrNoBars}
	}

	r := features.ReadingFromBars(bars, sym == models.XSP)
	h.l.Debug("reading ok",
		applogger.String("symbol", string(sym)),
		applogger.Int("bars", len(bars)),
		applogger.Float64("last", r.Last),
		applogger.Duration("duration_ms", time.Since(start)))
	return r, nil
}

// sessionBars keeps the trailing run of bars that share the last bar's local
// date, so a lookback window spanning the overnight gap reads as one session.
// bars must be in ascending order.
func sessionBars(bars []models.Bar, loc *time.Location) []models.Bar {
	if len(bars) < 2 {
		return bars
	}
	y, m, d := bars[len(bars)-1].Bucket.In(loc).Date()
	i := len(bars) - 1
	for i > 0 {
		py, pm, pd := bars[i-1].Bucket.In(loc).Date()
		if py != y || pm != m || pd != d {
			break
		}
		i--
	}
	return bars[i:]
}

var _ domrepo.QuoteProvider = (*HistoryQuotes)(nil)
