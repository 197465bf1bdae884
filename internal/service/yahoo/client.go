// Package yahoo reads OHLCV bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ZeroDTE/internal/domain/models"
	drepo "ZeroDTE/internal/domain/repository"
	"ZeroDTE/internal/service/guard"
	xhttp "ZeroDTE/pkg/http"
	applogger "ZeroDTE/pkg/logger"
)

// DefaultBaseURL is the public chart API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// the chart endpoint rejects clients without a browser-like agent
const userAgent = "Mozilla/5.0 (compatible; zerodte/1.0)"

// ErrNoResult is returned when the chart payload carries no series.
var ErrNoResult = errors.New("yahoo chart: empty result")

// Client implements HistoryStore over the chart API.
type Client struct {
	baseURL string
	http    *xhttp.Client
	guard   *guard.Guard
	l       *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *xhttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithGuard routes every request through a rate limiter and breaker.
func WithGuard(g *guard.Guard) Option {
	return func(c *Client) { c.guard = g }
}

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

// New creates a chart API client.
func New(opts ...Option) *Client {
	c := &Client{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(10*time.Second), xhttp.WithUserAgent(userAgent))
	}
	if c.guard == nil {
		c.guard = guard.New(guard.Config{Name: "yahoo", RequestsPerSecond: 5, Burst: 5}, c.l)
	}
	if c.l == nil {
		c.l = applogger.Nop()
	}
	return c
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol string `json:"symbol"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// GetBars returns bars with bucket in [from, to].
func (c *Client) GetBars(ctx context.Context, ticker string, from, to time.Time, iv drepo.Interval) ([]models.Bar, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", string(iv))
	return c.chart(ctx, ticker, q)
}

// GetLatestNBars returns at most n most recent bars in ascending order.
func (c *Client) GetLatestNBars(ctx context.Context, ticker string, n int, iv drepo.Interval) ([]models.Bar, error) {
	q := url.Values{}
	q.Set("range", rangeFor(n, iv))
	q.Set("interval", string(iv))
	bars, err := c.chart(ctx, ticker, q)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

// rangeFor picks the smallest chart range holding n bars. Intraday series
// only ever cover the current session.
func rangeFor(n int, iv drepo.Interval) string {
	if iv != drepo.Interval1d {
		return "1d"
	}
	switch {
	case n <= 5:
		return "5d"
	case n <= 21:
		return "1mo"
	case n <= 63:
		return "3mo"
	default:
		return "1y"
	}
}

func (c *Client) chart(ctx context.Context, ticker string, q url.Values) ([]models.Bar, error) {
	start := time.Now()
	var resp chartResponse
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         c.baseURL + "/v8/finance/chart/" + url.PathEscape(ticker),
			QueryParams: q,
		}, &resp)
	})
	if err != nil {
		c.l.Debug("yahoo chart failed",
			applogger.String("ticker", ticker),
			applogger.Error(err))
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s: %s", ticker, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, ErrNoResult)
	}
	bars := toBars(ticker, resp.Chart.Result[0])
	c.l.Debug("yahoo chart ok",
		applogger.String("ticker", ticker),
		applogger.Int("bars", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)))
	return bars, nil
}

// toBars zips the column arrays, skipping buckets without a close.
func toBars(ticker string, r chartResult) []models.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	qt := r.Indicators.Quote[0]
	out := make([]models.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		cl := at(qt.Close, i)
		if cl == nil {
			continue
		}
		b := models.Bar{
			Bucket: time.Unix(ts, 0).UTC(),
			Symbol: ticker,
			Close:  *cl,
			Open:   valueOr(at(qt.Open, i), *cl),
			High:   valueOr(at(qt.High, i), *cl),
			Low:    valueOr(at(qt.Low, i), *cl),
			Volume: valueOr(at(qt.Volume, i), 0),
		}
		out = append(out, b)
	}
	return out
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

var _ drepo.HistoryStore = (*Client)(nil)
