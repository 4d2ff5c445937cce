// Package schedule holds the derived time-window arithmetic shared by the
// conflict validator, the attendance timer engine and the live countdown
// surfaces. Everything here is a pure function of its inputs; remaining
// time is recomputed on every poll and never persisted as a countdown.
package schedule

import (
	"time"

	"github.com/stemsi/vigil-backend/internal/model"
)

// Window is the half-open interval [Start, End) during which an exam
// sitting is live.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow derives a window from a start time and the session-wide
// duration plus extra-time grant.
func NewWindow(start time.Time, durationMinutes, extraMinutes int) Window {
	return Window{
		Start: start,
		End:   start.Add(time.Duration(durationMinutes+extraMinutes) * time.Minute),
	}
}

// WindowOf derives the current window of an exam.
func WindowOf(exam *model.Exam) Window {
	return NewWindow(exam.StartTime, exam.DurationMinutes, exam.ExtraTimeMinutes)
}

// Overlaps reports whether two half-open windows intersect. The test is
// symmetric: w.Overlaps(o) == o.Overlaps(w). Back-to-back windows
// (one ending exactly when the other starts) do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// AllottedMinutes is a student's personal time allotment in minutes:
// the base duration, plus the session-wide extra-time grant, plus the
// student's individually negotiated extension fraction of the base
// duration.
func AllottedMinutes(durationMinutes, extraMinutes, extensionPercent int) float64 {
	return float64(durationMinutes) + float64(extraMinutes) +
		float64(durationMinutes)*float64(extensionPercent)/100.0
}

// Deadline is the instant a student's personal allotment elapses.
func Deadline(start time.Time, durationMinutes, extraMinutes, extensionPercent int) time.Time {
	allotted := AllottedMinutes(durationMinutes, extraMinutes, extensionPercent)
	return start.Add(time.Duration(allotted * float64(time.Minute)))
}

// RemainingSeconds is the whole seconds left on a student's personal
// clock at the given instant, floored at zero.
func RemainingSeconds(now, start time.Time, durationMinutes, extraMinutes, extensionPercent int) int {
	deadline := Deadline(start, durationMinutes, extraMinutes, extensionPercent)
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / time.Second)
}
