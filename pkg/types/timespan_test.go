package types

import (
	"math"
	"testing"
	"time"
)

func TestTimeSpan_Overlaps(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	hour := func(n int) time.Time { return t0.Add(time.Duration(n) * time.Hour) }
	tests := []struct {
		name string
		a, b TimeSpan
		want bool
	}{
		{"disjoint", NewTimeSpan(hour(0), hour(1)), NewTimeSpan(hour(2), hour(3)), false},
		{"touching ends overlap", NewTimeSpan(hour(0), hour(1)), NewTimeSpan(hour(1), hour(2)), true},
		{"contained", NewTimeSpan(hour(0), hour(10)), NewTimeSpan(hour(2), hour(3)), true},
		{"identical", NewTimeSpan(hour(0), hour(1)), NewTimeSpan(hour(0), hour(1)), true},
		{"open end reaches later span", NewTimeSpan(hour(0), time.Time{}), NewTimeSpan(hour(50), hour(51)), true},
		{"open start before", NewTimeSpan(time.Time{}, hour(1)), NewTimeSpan(hour(2), hour(3)), false},
		{"unbounded overlaps everything", Unbounded, NewTimeSpan(hour(5), hour(6)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Fatalf("%v.Overlaps(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Fatalf("overlap is not symmetric for %v and %v", tt.a, tt.b)
			}
		})
	}
}

func TestTimeSpan_Nanos(t *testing.T) {
	if Unbounded.StartNanos() != math.MinInt64 || Unbounded.EndNanos() != math.MaxInt64 {
		t.Fatal("unbounded span does not map to the int64 extremes")
	}
	start := time.Date(2026, 5, 1, 8, 0, 0, 42, time.UTC)
	span := NewTimeSpan(start, time.Time{})
	back := TimeSpanFromNanos(span.StartNanos(), span.EndNanos())
	if !back.Equal(span) || !back.Start.Equal(start) || !back.UnboundedEnd() {
		t.Fatalf("round trip changed span: %v", back)
	}
	if !span.Contains(start.Add(1000*time.Hour)) || span.Contains(start.Add(-time.Nanosecond)) {
		t.Fatal("Contains disagrees with bounds")
	}
}

func TestTimeSpan_String(t *testing.T) {
	if got := Unbounded.String(); got != "[-inf, +inf]" {
		t.Fatalf("String = %q", got)
	}
}
