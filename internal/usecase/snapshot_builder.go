package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
	applogger "ZeroDTE/pkg/logger"
)

// SnapshotBuilder fetches every tracked instrument concurrently and folds
// the results into a complete snapshot.
type SnapshotBuilder struct {
	quotes  domrepo.QuoteProvider
	metrics domrepo.Metrics
	l       *applogger.Logger
	timeout time.Duration
}

// NewSnapshotBuilder creates a builder with a 20s overall fetch budget.
func NewSnapshotBuilder(quotes domrepo.QuoteProvider, metrics domrepo.Metrics, l *applogger.Logger) *SnapshotBuilder {
	if l == nil {
		l = applogger.Nop()
	}
	return &SnapshotBuilder{quotes: quotes, metrics: metrics, l: l, timeout: 20 * time.Second}
}

// Fetch returns one result per tracked instrument, in display order. A failed
// fetch carries the sentinel reading and its error.
func (b *SnapshotBuilder) Fetch(ctx context.Context) []models.ReadingResult {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	syms := models.Instruments()
	out := make([]models.ReadingResult, len(syms))
	var wg sync.WaitGroup
	for i, sym := range syms {
		wg.Add(1)
		go func(i int, sym models.Symbol) {
			defer wg.Done()
			r, err := b.quotes.Reading(ctx, sym)
			if err == nil && !r.Available() {
				err = &models.FetchError{Source: "quotes", Symbol: string(sym), Err: errors.New("empty reading")}
			}
			if err != nil {
				r = models.SentinelReading()
			}
			out[i] = models.ReadingResult{Symbol: sym, Reading: r, Err: err}
		}(i, sym)
	}
	wg.Wait()
	return out
}

// Build fetches and assembles a snapshot taken at now. Degraded lists the
// instruments that fell back to the sentinel.
func (b *SnapshotBuilder) Build(ctx context.Context, now time.Time) (snap models.MarketSnapshot, degraded []string) {
	start := time.Now()
	results := b.Fetch(ctx)
	readings := make(map[models.Symbol]models.InstrumentReading, len(results))
	for _, res := range results {
		readings[res.Symbol] = res.Reading
		if res.OK() {
			b.metrics.RecordLastPrice(string(res.Symbol), res.Reading.Last)
			continue
		}
		degraded = append(degraded, string(res.Symbol))
		source := "quotes"
		var fe *models.FetchError
		if errors.As(res.Err, &fe) {
			source = fe.Source
		}
		b.metrics.RecordFetchError(source, string(res.Symbol))
		b.l.Warn("instrument degraded to sentinel",
			applogger.String("symbol", string(res.Symbol)),
			applogger.Error(res.Err))
	}
	b.metrics.RecordLatency("snapshot_fetch", time.Since(start).Seconds())
	return models.NewMarketSnapshot(readings, now), degraded
}
