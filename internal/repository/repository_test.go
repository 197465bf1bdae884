package repository

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
	"ZeroDTE/pkg/cache"
	pkgkafka "ZeroDTE/pkg/kafka"
)

type fakeStore struct {
	bars  map[domrepo.Interval][]models.Bar
	errs  map[domrepo.Interval]error
	calls []string
}

func (f *fakeStore) GetBars(context.Context, string, time.Time, time.Time, domrepo.Interval) ([]models.Bar, error) {
	return nil, errors.New("not used")
}

func (f *fakeStore) GetLatestNBars(_ context.Context, ticker string, n int, iv domrepo.Interval) ([]models.Bar, error) {
	f.calls = append(f.calls, ticker+"/"+string(iv))
	if err := f.errs[iv]; err != nil {
		return nil, err
	}
	return f.bars[iv], nil
}

func bar(open, high, low, close, vol float64) models.Bar {
	return models.Bar{Open: open, High: high, Low: low, Close: close, Volume: vol}
}

func TestNewTickerMap(t *testing.T) {
	m, err := NewTickerMap(map[string]string{"es_fut": "ESZ4"})
	require.NoError(t, err)
	assert.Equal(t, "^XSP", m.Ticker(models.XSP))
	assert.Equal(t, "ESZ4", m.Ticker(models.ESFut))
	assert.Equal(t, "SPY", m.Ticker(models.SPY))

	_, err = NewTickerMap(map[string]string{"TSLA": "TSLA"})
	assert.Error(t, err)
	_, err = NewTickerMap(map[string]string{"SPY": " "})
	assert.Error(t, err)
}

func TestHistoryQuotesIntraday(t *testing.T) {
	store := &fakeStore{bars: map[domrepo.Interval][]models.Bar{
		domrepo.Interval1m: {bar(100, 101, 99, 100.5, 10), bar(100.5, 102, 100, 101.5, 30)},
	}}
	q := NewHistoryQuotes(store, nil, "yahoo", 390, nil, nil)

	r, err := q.Reading(context.Background(), models.SPY)
	require.NoError(t, err)
	assert.Equal(t, 101.5, r.Last)
	assert.Equal(t, 100.5, r.Open)
	assert.Equal(t, 99.0, r.DayLow)
	assert.Equal(t, 102.0, r.DayHigh)
	assert.Equal(t, 30.0, r.Volume)
	assert.Equal(t, 20.0, r.AvgVolume)
	assert.Equal(t, 100.5, r.PrevClose)
	assert.Equal(t, models.NeutralRSI, r.RSI14)
	assert.Equal(t, []string{"SPY/1m"}, store.calls)
}

func TestHistoryQuotesReadsOnlyLatestSession(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	at := func(day, hour, minute int) time.Time {
		return time.Date(2025, 1, day, hour, minute, 0, 0, ny)
	}
	withBucket := func(b models.Bar, ts time.Time) models.Bar {
		b.Bucket = ts
		return b
	}

	// tail of the 13th then the first minutes of the 14th
	var bars []models.Bar
	for i := 0; i < 5; i++ {
		c := 500.0 + float64(i)
		bars = append(bars, withBucket(bar(c, c+1, 480, c, 9000), at(13, 15, 55+i)))
	}
	bars = append(bars,
		withBucket(bar(598, 600, 597, 599, 100), at(14, 9, 30)),
		withBucket(bar(599, 601, 598, 600, 300), at(14, 9, 31)),
	)
	store := &fakeStore{bars: map[domrepo.Interval][]models.Bar{domrepo.Interval1m: bars}}

	r, err := NewHistoryQuotes(store, nil, "clickhouse", 390, ny, nil).Reading(context.Background(), models.SPY)
	require.NoError(t, err)
	assert.Equal(t, 599.0, r.Open)
	assert.Equal(t, 600.0, r.Last)
	assert.Equal(t, 597.0, r.DayLow)
	assert.Equal(t, 601.0, r.DayHigh)
	assert.Equal(t, 200.0, r.AvgVolume)
	assert.Equal(t, 599.0, r.PrevClose)
}

func TestSessionBarsUsesLocalDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 23:30 UTC on the 13th is still the 13th in New York
	evening := models.Bar{Bucket: time.Date(2025, 1, 13, 23, 30, 0, 0, time.UTC), Close: 1}
	next := models.Bar{Bucket: time.Date(2025, 1, 14, 2, 0, 0, 0, time.UTC), Close: 2}
	morning := models.Bar{Bucket: time.Date(2025, 1, 14, 14, 30, 0, 0, time.UTC), Close: 3}

	assert.Len(t, sessionBars([]models.Bar{evening, next, morning}, ny), 1)
	assert.Len(t, sessionBars([]models.Bar{evening, next, morning}, time.UTC), 2)
	assert.Len(t, sessionBars([]models.Bar{morning}, ny), 1)
	assert.Empty(t, sessionBars(nil, ny))
}

func TestHistoryQuotesFallsBackToDaily(t *testing.T) {
	store := &fakeStore{
		bars: map[domrepo.Interval][]models.Bar{
			domrepo.Interval1d: {bar(570, 575, 565, 572, 1e6), bar(572, 580, 571, 578, 2e6)},
		},
		errs: map[domrepo.Interval]error{domrepo.Interval1m: errors.New("422")},
	}
	q := NewHistoryQuotes(store, nil, "yahoo", 390, nil, nil)

	r, err := q.Reading(context.Background(), models.XSP)
	require.NoError(t, err)
	assert.Equal(t, 578.0, r.Last)
	assert.Equal(t, 572.0, r.Open)
	assert.Equal(t, 572.0, r.PrevClose)
	assert.Equal(t, []string{"^XSP/1m", "^XSP/1d"}, store.calls)
}

func TestHistoryQuotesEmptyIsFetchError(t *testing.T) {
	q := NewHistoryQuotes(&fakeStore{}, nil, "clickhouse", 390, nil, nil)

	r, err := q.Reading(context.Background(), models.VIX)
	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "clickhouse", fe.Source)
	assert.Equal(t, "VIX", fe.Symbol)
	assert.ErrorIs(t, err, ErrNoBars)
	assert.False(t, r.Available())
	assert.Equal(t, models.NeutralRSI, r.RSI14)
}

func TestHistoryQuotesCancelledSkipsFallback(t *testing.T) {
	store := &fakeStore{errs: map[domrepo.Interval]error{domrepo.Interval1m: context.Canceled}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHistoryQuotes(store, nil, "yahoo", 390, nil, nil).Reading(ctx, models.SPY)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, store.calls, 1)
}

func TestCHHistoryStoreLatestBars(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t0 := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"bucket", "ticker", "open", "high", "low", "close", "volume"}).
		AddRow(t0.Add(time.Minute), "SPY", 2.0, 2.5, 1.5, 2.2, 20.0).
		AddRow(t0, "SPY", 1.0, 1.5, 0.5, 1.2, 10.0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM market.bars")).
		WithArgs("SPY", "1m", 2).
		WillReturnRows(rows)

	s, err := NewCHHistoryStore(db, "market.bars", nil)
	require.NoError(t, err)
	bars, err := s.GetLatestNBars(context.Background(), "SPY", 2, domrepo.Interval1m)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, t0, bars[0].Bucket)
	assert.Equal(t, 2.2, bars[1].Close)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHHistoryStoreGetBars(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY bucket ASC")).
		WithArgs("^VIX", "1d", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "ticker", "open", "high", "low", "close", "volume"}).
			AddRow(from, "^VIX", 14.0, 15.0, 13.5, 14.5, 0.0))

	s, err := NewCHHistoryStore(db, "bars", nil)
	require.NoError(t, err)
	bars, err := s.GetBars(context.Background(), "^VIX", from, to, domrepo.Interval1d)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 14.5, bars[0].Close)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHHistoryStoreQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))

	s, err := NewCHHistoryStore(db, "bars", nil)
	require.NoError(t, err)
	_, err = s.GetLatestNBars(context.Background(), "SPY", 10, domrepo.Interval1m)
	assert.ErrorContains(t, err, "connection reset")
}

func TestCHHistoryStoreRejectsBadInput(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewCHHistoryStore(db, "bars; DROP TABLE x", nil)
	assert.Error(t, err)

	s, err := NewCHHistoryStore(db, "bars", nil)
	require.NoError(t, err)
	_, err = s.GetLatestNBars(context.Background(), "SPY", 10, domrepo.Interval("5m"))
	assert.Error(t, err)
}

type countingCalendar struct {
	calls  int
	events []models.RawEvent
	err    error
}

func (c *countingCalendar) Events(context.Context, time.Time) ([]models.RawEvent, error) {
	c.calls++
	return c.events, c.err
}

func TestCachedCalendar(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	next := &countingCalendar{events: []models.RawEvent{{Country: "US", Impact: "high", Event: "CPI", Time: "2024-03-12 12:30:00"}}}
	cal := NewCachedCalendar(next, mem, time.Minute, nil)
	day := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		evs, err := cal.Events(context.Background(), day)
		require.NoError(t, err)
		require.Len(t, evs, 1)
		assert.Equal(t, "CPI", evs[0].Event)
	}
	assert.Equal(t, 1, next.calls)

	_, err := cal.Events(context.Background(), day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedCalendarDoesNotCacheFailures(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	next := &countingCalendar{err: errors.New("down")}
	cal := NewCachedCalendar(next, mem, time.Minute, nil)

	_, err := cal.Events(context.Background(), time.Now())
	require.Error(t, err)
	_, err = cal.Events(context.Background(), time.Now())
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

type slowCalendar struct {
	calls  atomic.Int32
	delay  time.Duration
	events []models.RawEvent
	fail   atomic.Bool
}

func (c *slowCalendar) Events(ctx context.Context, _ time.Time) ([]models.RawEvent, error) {
	c.calls.Add(1)
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if c.fail.Load() {
		return nil, errors.New("upstream 503")
	}
	return c.events, nil
}

func TestCachedCalendarColdReadsShareOneFetch(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	next := &slowCalendar{
		delay:  50 * time.Millisecond,
		events: []models.RawEvent{{Country: "US", Impact: "high", Event: "FOMC", Time: "2024-03-20 18:00:00"}},
	}
	cal := NewCachedCalendar(next, mem, time.Minute, nil)
	day := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

	const readers = 8
	var wg sync.WaitGroup
	got := make([][]models.RawEvent, readers)
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = cal.Events(context.Background(), day)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), next.calls.Load())
	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
		require.Len(t, got[i], 1)
		assert.Equal(t, "FOMC", got[i][0].Event)
	}
}

func TestCachedCalendarWaiterTakesOverAfterFailure(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	next := &slowCalendar{delay: 30 * time.Millisecond, events: []models.RawEvent{{Event: "CPI"}}}
	next.fail.Store(true)
	cal := NewCachedCalendar(next, mem, time.Minute, nil)
	day := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)

	first := make(chan error, 1)
	go func() {
		_, err := cal.Events(context.Background(), day)
		first <- err
	}()
	// let the first reader take the lock before the feed recovers
	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, time.Millisecond)
	next.fail.Store(false)

	evs, err := cal.Events(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Error(t, <-first)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedCalendarWaitHonoursContext(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	next := &slowCalendar{delay: time.Second}
	cal := NewCachedCalendar(next, mem, time.Minute, nil)
	day := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)

	locked, err := mem.TryLock(context.Background(), cache.GenerateKey("calendar", "2024-03-12")+":lock", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = cal.Events(ctx, day)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, next.calls.Load())
}

type fakeProducer struct {
	topic   string
	key     []byte
	value   interface{}
	headers []kafka.Header
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}, headers ...kafka.Header) error {
	f.topic, f.key, f.value, f.headers = topic, key, value, headers
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestKafkaAnalysisPublisher(t *testing.T) {
	fp := &fakeProducer{}
	p := &KafkaAnalysisPublisher{producer: fp, topic: "results"}
	a := &models.Analysis{ID: "run-1"}

	require.NoError(t, p.Publish(context.Background(), a))
	assert.Equal(t, "results", fp.topic)
	assert.Equal(t, []byte("XSP"), fp.key)
	assert.Same(t, a, fp.value)
	require.Len(t, fp.headers, 1)
	assert.Equal(t, "run-1", string(fp.headers[0].Value))

	ctx := pkgkafka.WithTraceID(context.Background(), "upstream")
	require.NoError(t, p.Publish(ctx, a))
	assert.Equal(t, "upstream", string(fp.headers[0].Value))

	assert.Error(t, p.Publish(context.Background(), nil))
}
