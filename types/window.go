package types

import (
	"fmt"
	"time"
)

// Window is a closed billing time window.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow builds a validated window.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	return w, w.Validate()
}

// Validate ensures the window is non-empty and ordered.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window requires both start and end")
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("window end %s before start %s", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Days returns every calendar day covered by the window as YYYY-MM-DD,
// in order. Used to build partition predicates.
func (w Window) Days() []string {
	var days []string
	day := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(last) {
		days = append(days, day.Format("2006-01-02"))
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// Contains reports whether t falls inside the window, inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
