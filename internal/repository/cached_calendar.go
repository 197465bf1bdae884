package repository

import (
	"context"
	"errors"
	"time"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
	"ZeroDTE/pkg/cache"
	applogger "ZeroDTE/pkg/logger"
	xutil "ZeroDTE/pkg/util"
)

// CachedCalendar keeps each day's calendar payload in a cache so repeated
// analyses do not hit the provider.
type CachedCalendar struct {
	next  domrepo.EventCalendar
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger

	lockTTL time.Duration
	poll    time.Duration
}

// NewCachedCalendar wraps next. ttl <= 0 defaults to 15 minutes.
func NewCachedCalendar(next domrepo.EventCalendar, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedCalendar {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedCalendar{
		next:    next,
		cache:   c,
		ttl:     ttl,
		l:       l,
		lockTTL: 10 * time.Second,
		poll:    25 * time.Millisecond,
	}
}

func (c *CachedCalendar) Events(ctx context.Context, day time.Time) ([]models.RawEvent, error) {
	key := cache.GenerateKey("calendar", xutil.DayKey(day, day.Location()))

	var events []models.RawEvent
	err := c.cache.Get(ctx, key, &events)
	if err == nil {
		return events, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.l.Warn("calendar cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	// one refresher per key; the others wait for its result
	lockKey := key + ":lock"
	locked, lerr := c.cache.TryLock(ctx, lockKey, c.lockTTL)
	if lerr == nil && !locked {
		var hit bool
		if events, hit, locked = c.await(ctx, key, lockKey); hit {
			return events, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if locked {
		defer func() { _ = c.cache.Unlock(context.WithoutCancel(ctx), lockKey) }()
	}

	events, err = c.next.Events(ctx, day)
	if err != nil {
		return nil, err
	}
	if serr := c.cache.Set(ctx, key, events, c.ttl); serr != nil {
		c.l.Warn("calendar cache write failed", applogger.String("key", key), applogger.Error(serr))
	}
	return events, nil
}

// await polls until the lock holder fills key. It takes the lock over when
// the holder releases it without a result, and gives up after lockTTL.
func (c *CachedCalendar) await(ctx context.Context, key, lockKey string) (events []models.RawEvent, hit, locked bool) {
	deadline := time.NewTimer(c.lockTTL)
	defer deadline.Stop()
	tick := time.NewTicker(c.poll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false, false
		case <-deadline.C:
			return nil, false, false
		case <-tick.C:
		}
		if err := c.cache.Get(ctx, key, &events); err == nil {
			return events, true, false
		}
		if ok, err := c.cache.TryLock(ctx, lockKey, c.lockTTL); err == nil && ok {
			return nil, false, true
		}
	}
}

var _ domrepo.EventCalendar = (*CachedCalendar)(nil)
