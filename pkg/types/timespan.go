package types

import (
	"fmt"
	"math"
	"time"
)

// TimeSpan is an interval of time. A zero Start means unbounded in the past
// and a zero End means unbounded in the future. Both ends are inclusive.
type TimeSpan struct {
	Start time.Time
	End   time.Time
}

// Unbounded spans all of time.
var Unbounded = TimeSpan{}

// NewTimeSpan returns the span [start, end].
func NewTimeSpan(start, end time.Time) TimeSpan {
	return TimeSpan{Start: start, End: end}
}

// UnboundedStart reports whether the span has no lower bound.
func (s TimeSpan) UnboundedStart() bool { return s.Start.IsZero() }

// UnboundedEnd reports whether the span has no upper bound.
func (s TimeSpan) UnboundedEnd() bool { return s.End.IsZero() }

// Validate reports an error when both ends are bounded and End precedes Start.
func (s TimeSpan) Validate() error {
	if !s.UnboundedStart() && !s.UnboundedEnd() && s.End.Before(s.Start) {
		return fmt.Errorf("%w: time span ends before it starts", ErrTypeMismatch)
	}
	return nil
}

// Overlaps reports whether the two spans share at least one instant.
func (s TimeSpan) Overlaps(other TimeSpan) bool {
	return s.StartNanos() <= other.EndNanos() && other.StartNanos() <= s.EndNanos()
}

// Contains reports whether t falls within the span.
func (s TimeSpan) Contains(t time.Time) bool {
	n := t.UnixNano()
	return s.StartNanos() <= n && n <= s.EndNanos()
}

// Equal reports whether both spans have the same bounds.
func (s TimeSpan) Equal(other TimeSpan) bool {
	return s.StartNanos() == other.StartNanos() && s.EndNanos() == other.EndNanos()
}

// StartNanos returns the start as Unix nanoseconds, math.MinInt64 when unbounded.
func (s TimeSpan) StartNanos() int64 {
	if s.UnboundedStart() {
		return math.MinInt64
	}
	return s.Start.UnixNano()
}

// EndNanos returns the end as Unix nanoseconds, math.MaxInt64 when unbounded.
func (s TimeSpan) EndNanos() int64 {
	if s.UnboundedEnd() {
		return math.MaxInt64
	}
	return s.End.UnixNano()
}

// TimeSpanFromNanos is the inverse of StartNanos and EndNanos.
func TimeSpanFromNanos(start, end int64) TimeSpan {
	var s TimeSpan
	if start != math.MinInt64 {
		s.Start = time.Unix(0, start).UTC()
	}
	if end != math.MaxInt64 {
		s.End = time.Unix(0, end).UTC()
	}
	return s
}

func (s TimeSpan) String() string {
	start, end := "-inf", "+inf"
	if !s.UnboundedStart() {
		start = s.Start.UTC().Format(time.RFC3339Nano)
	}
	if !s.UnboundedEnd() {
		end = s.End.UTC().Format(time.RFC3339Nano)
	}
	return "[" + start + ", " + end + "]"
}
