package models

import "time"

// RawEvent is one economic calendar record as published by the provider.
type RawEvent struct {
	Country string `json:"country"`
	Impact  string `json:"impact"`
	Event   string `json:"event"`
	Time    string `json:"time"` // UTC, "2006-01-02 15:04:05"
}

// WindowKind shades a non-blocking high-impact event.
type WindowKind string

const (
	WindowNormal        WindowKind = "NORMAL"
	WindowPreMarket     WindowKind = "PRE_MARKET"
	WindowLateAfternoon WindowKind = "LATE_AFTERNOON"
)

// MatchedEvent is a high-impact event with its local publication time.
type MatchedEvent struct {
	Label     string    `json:"label"`
	LocalTime time.Time `json:"local_time"`
}

// EventRiskStatus is recomputed on every analysis request.
type EventRiskStatus struct {
	Blocked       bool           `json:"blocked"`
	WindowKind    WindowKind     `json:"window_kind"`
	MatchedEvents []MatchedEvent `json:"matched_events"`
}

// DefaultEventRiskStatus is the fail-open status.
func DefaultEventRiskStatus() EventRiskStatus {
	return EventRiskStatus{WindowKind: WindowNormal, MatchedEvents: []MatchedEvent{}}
}
