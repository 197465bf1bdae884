package analytics

import (
	"strings"
	"time"

	"ZeroDTE/internal/domain/models"
	domsvc "ZeroDTE/internal/domain/service"
	xutil "ZeroDTE/pkg/util"
)

// DefaultEventKeywords are the labels that make a high-impact US event relevant.
var DefaultEventKeywords = []string{"CPI", "FED", "FOMC", "NFP", "POWELL", "PPI", "INTEREST RATE", "JOBLESS"}

// EventRiskEvaluator classifies scheduled macro events against the session.
type EventRiskEvaluator struct {
	session  *Session
	keywords []string
	country  string
	impact   string
}

// EventRiskOption configures EventRiskEvaluator.
type EventRiskOption func(*EventRiskEvaluator)

// WithKeywords replaces the keyword set (matched upper-case).
func WithKeywords(kw []string) EventRiskOption {
	return func(e *EventRiskEvaluator) {
		if len(kw) == 0 {
			return
		}
		e.keywords = make([]string, 0, len(kw))
		for _, k := range kw {
			e.keywords = append(e.keywords, strings.ToUpper(k))
		}
	}
}

// NewEventRiskEvaluator matches US high-impact events against the default
// keyword list unless options say otherwise.
func NewEventRiskEvaluator(session *Session, opts ...EventRiskOption) *EventRiskEvaluator {
	e := &EventRiskEvaluator{
		session:  session,
		keywords: DefaultEventKeywords,
		country:  "US",
		impact:   "high",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate walks events in input order. A matched event inside the core
// session window blocks; outside it only shades WindowKind, and the last
// matched event's shading wins.
func (e *EventRiskEvaluator) Evaluate(events []models.RawEvent, _ time.Time) models.EventRiskStatus {
	st := models.DefaultEventRiskStatus()
	for _, ev := range events {
		if !e.relevant(ev) {
			continue
		}
		at, ok := parseEventTime(ev.Time)
		if !ok {
			continue
		}
		local := e.session.Local(at)
		st.MatchedEvents = append(st.MatchedEvents, models.MatchedEvent{Label: ev.Event, LocalTime: local})

		tod := e.session.TimeOfDay(at)
		switch {
		case tod < e.session.PreMarketEnd:
			st.WindowKind = models.WindowPreMarket
		case tod > e.session.LateAfternoon:
			st.WindowKind = models.WindowLateAfternoon
		default:
			st.Blocked = true
		}
	}
	return st
}

func (e *EventRiskEvaluator) relevant(ev models.RawEvent) bool {
	if ev.Country != e.country || ev.Impact != e.impact {
		return false
	}
	label := strings.ToUpper(ev.Event)
	for _, k := range e.keywords {
		if strings.Contains(label, k) {
			return true
		}
	}
	return false
}

// calendar feeds publish "2006-01-02 15:04:05" in UTC
const eventTimeLayout = "2006-01-02 15:04:05"

func parseEventTime(s string) (time.Time, bool) {
	if t, err := time.ParseInLocation(eventTimeLayout, s, time.UTC); err == nil {
		return t, true
	}
	return xutil.ParseTime(s)
}

var _ domsvc.EventRiskEvaluator = (*EventRiskEvaluator)(nil)
