// Package quota keeps per-platform action counters and decides whether a
// platform may act right now.
package quota

import (
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// State is the durable quota record of a single platform.
type State struct {
	DailyCount  int
	WeeklyCount int
	// LastActionTime is zero when the platform has never acted.
	LastActionTime time.Time
	// LastResetDate is the calendar day the daily counter was last zeroed.
	LastResetDate time.Time
}

// Limits are the configured ceilings of a platform. Weekly == 0 means the
// platform has no weekly cap.
type Limits struct {
	Daily  int
	Weekly int
}

// Fresh returns a zeroed state dated on the day of now.
func Fresh(now time.Time) State {
	return State{LastResetDate: dateOf(now)}
}

// record is the wire representation stored by every backend.
type record struct {
	DailyCount     int     `json:"dailyCount"`
	WeeklyCount    int     `json:"weeklyCount"`
	LastActionTime *string `json:"lastActionTime"`
	LastResetDate  string  `json:"lastResetDate"`
}

func encodeState(s State) ([]byte, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	rec := record{
		DailyCount:    s.DailyCount,
		WeeklyCount:   s.WeeklyCount,
		LastResetDate: s.LastResetDate.Format(dateLayout),
	}
	if !s.LastActionTime.IsZero() {
		ts := s.LastActionTime.Format(time.RFC3339Nano)
		rec.LastActionTime = &ts
	}
	return json.Marshal(rec)
}

func decodeState(data []byte, loc *time.Location) (State, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return State{}, fmt.Errorf("decode quota record: %w", err)
	}

	resetDate, err := time.ParseInLocation(dateLayout, rec.LastResetDate, loc)
	if err != nil {
		return State{}, fmt.Errorf("parse lastResetDate %q: %w", rec.LastResetDate, err)
	}

	s := State{
		DailyCount:    rec.DailyCount,
		WeeklyCount:   rec.WeeklyCount,
		LastResetDate: resetDate,
	}
	if rec.LastActionTime != nil && *rec.LastActionTime != "" {
		ts, err := time.Parse(time.RFC3339, *rec.LastActionTime)
		if err != nil {
			return State{}, fmt.Errorf("parse lastActionTime %q: %w", *rec.LastActionTime, err)
		}
		s.LastActionTime = ts.In(loc)
	}

	if err := s.validate(); err != nil {
		return State{}, err
	}
	return s, nil
}

func (s State) validate() error {
	if s.DailyCount < 0 || s.WeeklyCount < 0 {
		return fmt.Errorf("negative quota counters (daily=%d, weekly=%d)", s.DailyCount, s.WeeklyCount)
	}
	if s.LastResetDate.IsZero() {
		return fmt.Errorf("quota record has no reset date")
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// weekStart returns the Monday of the week containing day.
func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return dateOf(day).AddDate(0, 0, -offset)
}
