package finnhub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ZeroDTE/internal/domain/models"
	drepo "ZeroDTE/internal/domain/repository"
	"ZeroDTE/internal/service/guard"
	xhttp "ZeroDTE/pkg/http"
	applogger "ZeroDTE/pkg/logger"
	xutil "ZeroDTE/pkg/util"
)

// DefaultAPIURL is the Finnhub REST root.
const DefaultAPIURL = "https://finnhub.io/api/v1"

// Calendar implements EventCalendar over the economic calendar endpoint.
type Calendar struct {
	baseURL string
	apiKey  string
	http    *xhttp.Client
	guard   *guard.Guard
	l       *applogger.Logger
}

// NewCalendar creates a calendar client. g and l may be nil.
func NewCalendar(baseURL, apiKey string, hc *xhttp.Client, g *guard.Guard, l *applogger.Logger) *Calendar {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if hc == nil {
		hc = xhttp.NewClient(xhttp.WithTimeout(5 * time.Second))
	}
	if l == nil {
		l = applogger.Nop()
	}
	if g == nil {
		g = guard.New(guard.Config{Name: "finnhub-calendar", RequestsPerSecond: 1, Burst: 2}, l)
	}
	return &Calendar{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    hc,
		guard:   g,
		l:       l,
	}
}

type calendarResponse struct {
	EconomicCalendar []models.RawEvent `json:"economicCalendar"`
}

// Events returns the provider records scheduled on the calendar date of
// day, taken in day's own location.
func (c *Calendar) Events(ctx context.Context, day time.Time) ([]models.RawEvent, error) {
	d := xutil.DayKey(day, day.Location())
	var resp calendarResponse
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    c.baseURL + "/calendar/economic",
			QueryParams: map[string][]string{
				"from":  {d},
				"to":    {d},
				"token": {c.apiKey},
			},
		}, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("finnhub calendar %s: %w", d, err)
	}
	events := resp.EconomicCalendar
	if events == nil {
		events = []models.RawEvent{}
	}
	c.l.Debug("finnhub calendar ok", applogger.String("day", d), applogger.Int("events", len(events)))
	return events, nil
}

var _ drepo.EventCalendar = (*Calendar)(nil)
