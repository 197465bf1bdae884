package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
	xutil "ZeroDTE/pkg/util"
)

// BarsUseCase exposes the raw history behind a reading.
type BarsUseCase struct {
	store   domrepo.HistoryStore
	tickers func(models.Symbol) string
}

// NewBarsUseCase binds a history backend and its ticker resolver.
func NewBarsUseCase(store domrepo.HistoryStore, tickers func(models.Symbol) string) *BarsUseCase {
	return &BarsUseCase{store: store, tickers: tickers}
}

type GetBarsParams struct {
	Symbol   models.Symbol
	From     time.Time
	To       time.Time
	Interval domrepo.Interval
	Limit    int
}

type GetBarsResult struct {
	Symbol   models.Symbol    `json:"symbol"`
	Ticker   string           `json:"ticker"`
	Interval domrepo.Interval `json:"interval"`
	From     time.Time        `json:"from"`
	To       time.Time        `json:"to"`
	Count    int              `json:"count"`
	Bars     []models.Bar     `json:"bars"`
}

func (uc *BarsUseCase) GetBars(ctx context.Context, p GetBarsParams) (*GetBarsResult, error) {
	if !p.Symbol.IsKnown() {
		return nil, fmt.Errorf("%w: unknown symbol %q", ErrInvalidParams, p.Symbol)
	}
	if p.From.After(p.To) {
		return nil, errors.Join(ErrInvalidParams, errors.New("from must be <= to"))
	}
	if !domrepo.IsValidInterval(p.Interval) {
		p.Interval = domrepo.DefaultInterval()
	}
	if p.Limit <= 0 {
		p.Limit = 1000
	}
	if p.Limit > 10000 {
		p.Limit = 10000
	}
	from, to := xutil.AlignFromTo(p.From, p.To, string(p.Interval))

	ticker := uc.tickers(p.Symbol)
	bars, err := uc.store.GetBars(ctx, ticker, from, to, p.Interval)
	if err != nil {
		return nil, &models.FetchError{Source: "history", Symbol: string(p.Symbol), Err: err}
	}
	if len(bars) > p.Limit {
		bars = bars[len(bars)-p.Limit:]
	}
	return &GetBarsResult{
		Symbol:   p.Symbol,
		Ticker:   ticker,
		Interval: p.Interval,
		From:     from,
		To:       to,
		Count:    len(bars),
		Bars:     bars,
	}, nil
}
