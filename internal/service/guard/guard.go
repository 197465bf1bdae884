// Package guard wraps calls to an upstream HTTP provider with a token
// bucket and a circuit breaker.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"ZeroDTE/internal/service/ratelimit"
	applogger "ZeroDTE/pkg/logger"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("upstream circuit open")

// Config tunes one guard.
type Config struct {
	Name              string
	RequestsPerSecond float64
	Burst             int
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

// Guard serialises access to one upstream.
type Guard struct {
	name    string
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *applogger.Logger
}

// New creates a guard. A nil logger disables state-change logging.
func New(cfg Config, l *applogger.Logger) *Guard {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	g := &Guard{
		name:    cfg.Name,
		limiter: ratelimit.New(cfg.RequestsPerSecond, cfg.Burst),
		log:     l,
	}
	threshold := cfg.ConsecutiveFailures
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// cancellations are the caller's choice, not an upstream fault
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.log.Warn("upstream breaker state change",
				applogger.String("upstream", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()))
		},
	})
	return g
}

// Name returns the upstream name.
func (g *Guard) Name() string { return g.name }

// State returns the breaker state as a string.
func (g *Guard) State() string { return g.breaker.State().String() }

// Do waits for a token then runs fn through the breaker.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx, g.name); err != nil {
		return fmt.Errorf("%s rate limit: %w", g.name, err)
	}
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", g.name, ErrOpen)
	}
	return err
}
