package usecase

import (
	"context"
	"errors"

	"ZeroDTE/internal/domain/models"
	drepo "ZeroDTE/internal/domain/repository"
	mid "ZeroDTE/internal/middleware"
	applogger "ZeroDTE/pkg/logger"
)

// TapeCollector pumps the live trade stream through the tick pipeline.
type TapeCollector struct {
	stream  drepo.MarketStream
	pipe    *mid.TickPipeline
	metrics drepo.Metrics
	l       *applogger.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTapeCollector creates a collector.
func NewTapeCollector(stream drepo.MarketStream, pipe *mid.TickPipeline, metrics drepo.Metrics, l *applogger.Logger) *TapeCollector {
	if l == nil {
		l = applogger.Nop()
	}
	return &TapeCollector{stream: stream, pipe: pipe, metrics: metrics, l: l}
}

// IsConnected returns true if the market stream is connected.
func (c *TapeCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and consumes in the background until ctx ends.
func (c *TapeCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		_ = c.stream.Close()
		return err
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
	return nil
}

func (c *TapeCollector) run(ctx context.Context) {
	defer close(c.done)
	for {
		ticks, errs := c.stream.Read(ctx)
		err := c.consume(ctx, ticks, errs)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		c.l.Warn("trade stream interrupted, reconnecting", applogger.Error(err))
		for ctx.Err() == nil {
			rerr := c.stream.Reconnect(ctx)
			if rerr == nil {
				break
			}
			c.l.Warn("trade stream reconnect failed", applogger.Error(rerr))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// consume drains one connection; it returns when the stream fails or closes.
func (c *TapeCollector) consume(ctx context.Context, ticks <-chan *models.Tick, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
			if !ok {
				errs = nil
			}
		case t, ok := <-ticks:
			if !ok {
				return errors.New("trade stream closed")
			}
			if t == nil {
				continue
			}
			if err := c.pipe.Process(ctx, t); err != nil && !errors.Is(err, mid.ErrThrottled) {
				c.l.Debug("tick rejected", applogger.String("symbol", string(t.Symbol)), applogger.Error(err))
			}
		}
	}
}

// Shutdown stops the consume loop and closes the stream.
func (c *TapeCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	if c.done != nil {
		select {
		case <-c.done:
		case <-ctx.Done():
		}
	}
	return err
}
