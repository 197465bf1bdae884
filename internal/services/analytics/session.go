package analytics

import (
	"time"

	"ZeroDTE/internal/domain/models"
)

// Session holds the trading timezone and the local clock windows the desk
// works against. All windows are local wall-clock times.
type Session struct {
	loc *time.Location

	PreMarketEnd   time.Duration // events before this are informational
	LateAfternoon  time.Duration // events after this are informational
	RegularOpen    time.Duration
	RegularClose   time.Duration
	HybridWindowAt time.Duration // futures-driven pre-open window start
}

// NewSession returns the default desk session in loc (Europe/Madrid hours).
func NewSession(loc *time.Location) *Session {
	if loc == nil {
		loc = time.UTC
	}
	return &Session{
		loc:            loc,
		PreMarketEnd:   clock(15, 30),
		LateAfternoon:  clock(19, 30),
		RegularOpen:    clock(15, 30),
		RegularClose:   clock(22, 15),
		HybridWindowAt: clock(9, 0),
	}
}

// Location returns the trading timezone.
func (s *Session) Location() *time.Location { return s.loc }

// Local converts t to the trading timezone.
func (s *Session) Local(t time.Time) time.Time { return t.In(s.loc) }

// TimeOfDay is the local wall-clock offset from midnight.
func (s *Session) TimeOfDay(t time.Time) time.Duration {
	lt := t.In(s.loc)
	return clock(lt.Hour(), lt.Minute()) +
		time.Duration(lt.Second())*time.Second +
		time.Duration(lt.Nanosecond())
}

// MarketOpen reports whether t falls in the regular window, both ends inclusive.
func (s *Session) MarketOpen(t time.Time) bool {
	tod := s.TimeOfDay(t)
	return tod >= s.RegularOpen && tod <= s.RegularClose
}

// EngineMode labels the pre-open window as futures-driven.
func (s *Session) EngineMode(t time.Time) models.EngineMode {
	tod := s.TimeOfDay(t)
	if tod >= s.HybridWindowAt && tod < s.RegularOpen {
		return models.EngineHybridFutures
	}
	return models.EngineRTHLive
}

func clock(h, m int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}
