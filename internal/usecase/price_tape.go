package usecase

import (
	"context"
	"sync"
	"time"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
)

type tapeEntry struct {
	price float64
	at    time.Time
}

// PriceTape remembers the latest streamed print per instrument and overlays
// it on polled readings while it is fresh.
type PriceTape struct {
	next   domrepo.QuoteProvider
	maxAge time.Duration
	now    func() time.Time

	mu   sync.RWMutex
	last map[models.Symbol]tapeEntry
}

// NewPriceTape decorates next. maxAge <= 0 disables the overlay.
func NewPriceTape(next domrepo.QuoteProvider, maxAge time.Duration) *PriceTape {
	return &PriceTape{
		next:   next,
		maxAge: maxAge,
		now:    time.Now,
		last:   make(map[models.Symbol]tapeEntry),
	}
}

// Process records t; older prints than the stored one are ignored.
func (p *PriceTape) Process(_ context.Context, t *models.Tick) error {
	at := time.Unix(t.Timestamp, 0)
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.last[t.Symbol]; ok && at.Before(cur.at) {
		return nil
	}
	p.last[t.Symbol] = tapeEntry{price: t.Price, at: at}
	return nil
}

// Latest returns the last print for sym if it is fresh.
func (p *PriceTape) Latest(sym models.Symbol) (float64, time.Time, bool) {
	p.mu.RLock()
	e, ok := p.last[sym]
	p.mu.RUnlock()
	if !ok || p.maxAge <= 0 || p.now().Sub(e.at) > p.maxAge {
		return 0, time.Time{}, false
	}
	return e.price, e.at, true
}

// Reading fetches from the wrapped provider and replaces Last with a fresh
// print, widening the day range if the print lies outside it. A failed fetch
// stays failed.
func (p *PriceTape) Reading(ctx context.Context, sym models.Symbol) (models.InstrumentReading, error) {
	r, err := p.next.Reading(ctx, sym)
	if err != nil || !r.Available() {
		return r, err
	}
	px, _, ok := p.Latest(sym)
	if !ok {
		return r, nil
	}
	r.Last = px
	if px > r.DayHigh {
		r.DayHigh = px
	}
	if r.DayLow == 0 || px < r.DayLow {
		r.DayLow = px
	}
	return r, nil
}

var _ domrepo.QuoteProvider = (*PriceTape)(nil)
