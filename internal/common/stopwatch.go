// Package common provides small shared helpers.
package common

import (
	"strings"
	"time"
)

// Lap is one measured segment of a Stopwatch.
type Lap struct {
	Name     string
	Duration time.Duration
}

// Stopwatch measures consecutive named segments of work. It is not safe for
// concurrent use.
type Stopwatch struct {
	now   func() time.Time
	start time.Time
	last  time.Time
	laps  []Lap
}

// NewStopwatch starts a stopwatch on the wall clock.
func NewStopwatch() *Stopwatch {
	return NewStopwatchWithClock(time.Now)
}

// NewStopwatchWithClock starts a stopwatch on now.
func NewStopwatchWithClock(now func() time.Time) *Stopwatch {
	t := now()
	return &Stopwatch{now: now, start: t, last: t}
}

// Lap closes the current segment under name and returns its duration.
func (s *Stopwatch) Lap(name string) time.Duration {
	t := s.now()
	d := t.Sub(s.last)
	s.last = t
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Total returns the time since the stopwatch started.
func (s *Stopwatch) Total() time.Duration {
	return s.now().Sub(s.start)
}

// Laps returns the recorded segments in order.
func (s *Stopwatch) Laps() []Lap {
	return append([]Lap(nil), s.laps...)
}

// Sum returns the summed duration of all laps called name.
func (s *Stopwatch) Sum(name string) time.Duration {
	var d time.Duration
	for _, l := range s.laps {
		if l.Name == name {
			d += l.Duration
		}
	}
	return d
}

// String formats the laps as "name=duration" pairs.
func (s *Stopwatch) String() string {
	parts := make([]string, len(s.laps))
	for i, l := range s.laps {
		parts[i] = l.Name + "=" + l.Duration.String()
	}
	return strings.Join(parts, " ")
}
