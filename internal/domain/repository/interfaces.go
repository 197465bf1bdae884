package repository

import (
	"context"
	"time"

	"ZeroDTE/internal/domain/models"
)

// QuoteProvider fetches one instrument reading. Implementations return a
// *models.FetchError on failure; the caller substitutes the sentinel.
type QuoteProvider interface {
	Reading(ctx context.Context, sym models.Symbol) (models.InstrumentReading, error)
}

// HistoryStore provides read access to intraday bars for a provider ticker.
type HistoryStore interface {
	GetBars(ctx context.Context, ticker string, from, to time.Time, iv Interval) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, ticker string, n int, iv Interval) ([]models.Bar, error)
}

// EventCalendar fetches scheduled macro events for one calendar day.
type EventCalendar interface {
	Events(ctx context.Context, day time.Time) ([]models.RawEvent, error)
}

// MarketStream delivers live trade prints.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AnalysisPublisher broadcasts finished analyses to downstream consumers.
type AnalysisPublisher interface {
	Publish(ctx context.Context, a *models.Analysis) error
	Close() error
}

type Metrics interface {
	RecordAnalysis(outcome string)
	RecordFetchError(source, symbol string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}
