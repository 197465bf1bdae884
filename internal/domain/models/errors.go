package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConnectivityFailure means the primary instrument could not be fetched;
// the whole analysis run is unusable.
var ErrConnectivityFailure = errors.New("connectivity failure: primary instrument unavailable")

// ErrIncompleteSnapshot is matched by IncompleteSnapshotError via errors.Is.
var ErrIncompleteSnapshot = errors.New("incomplete market snapshot")

// IncompleteSnapshotError lists tracked symbols without an entry.
type IncompleteSnapshotError struct {
	Missing []string
}

func (e *IncompleteSnapshotError) Error() string {
	return fmt.Sprintf("%v: missing %s", ErrIncompleteSnapshot, strings.Join(e.Missing, ", "))
}

func (e *IncompleteSnapshotError) Is(target error) bool { return target == ErrIncompleteSnapshot }

// FetchError is the typed failure of an external collaborator.
type FetchError struct {
	Source string // "quotes", "calendar"
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s fetch %s: %v", e.Source, e.Symbol, e.Err)
	}
	return fmt.Sprintf("%s fetch: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ReadingResult is the outcome of fetching one instrument.
type ReadingResult struct {
	Symbol  Symbol
	Reading InstrumentReading
	Err     error
}

// OK reports a successful fetch with data.
func (r ReadingResult) OK() bool { return r.Err == nil && r.Reading.Available() }

// EventFeedResult is the outcome of fetching the economic calendar.
type EventFeedResult struct {
	Events []RawEvent
	Err    error
}
