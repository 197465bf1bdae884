package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
	"ZeroDTE/internal/service/ratelimit"
)

// Sink is the minimal downstream the pipeline feeds.
type Sink interface {
	Process(ctx context.Context, t *models.Tick) error
}

// ErrThrottled is returned for ticks dropped by the per-symbol throttle.
var ErrThrottled = errors.New("tick throttled")

// TickPipeline sits between the trade stream and the price tape. It
// validates ticks, drops unknown instruments and throttles each symbol.
type TickPipeline struct {
	sink      Sink
	metrics   domrepo.Metrics
	limiter   *ratelimit.Limiter
	transform func(*models.Tick) *models.Tick
}

type PipelineOption func(*TickPipeline)

// WithMaxRPS caps accepted ticks per second per symbol; 0 disables.
func WithMaxRPS(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n >= 0 {
			p.limiter = ratelimit.New(float64(n), max(n, 1))
		}
	}
}

// WithTransform sets a hook that may rewrite a tick before delivery.
func WithTransform(fn func(*models.Tick) *models.Tick) PipelineOption {
	return func(p *TickPipeline) { p.transform = fn }
}

// NewTickPipeline creates a pipeline with a 20 ticks/s per-symbol throttle.
func NewTickPipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		sink:    sink,
		metrics: metrics,
		limiter: ratelimit.New(20, 20),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates, throttles and forwards t.
func (p *TickPipeline) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		t = p.transform(t)
		if err := validateTick(t); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.limiter.Allow(string(t.Symbol)) {
		p.metrics.RecordError("pipeline_throttle")
		return ErrThrottled
	}
	if err := p.sink.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLastPrice(string(t.Symbol), t.Price)
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateTick(t *models.Tick) error {
	if t == nil {
		return errors.New("tick nil")
	}
	if !t.Symbol.IsKnown() {
		return fmt.Errorf("symbol %q not tracked", t.Symbol)
	}
	if t.Timestamp <= 0 {
		return errors.New("timestamp invalid")
	}
	if t.Price <= 0 || t.Volume < 0 {
		return errors.New("non-positive price or negative volume")
	}
	return nil
}
