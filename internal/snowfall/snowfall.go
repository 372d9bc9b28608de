// Package snowfall evaluates expected snowfall over an overnight window.
package snowfall

import (
	"time"

	"snow-alert/internal/weather"
)

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overnight returns the window starting at startHour on the day of now and
// spanning the given duration. It is computed from now on every call, not
// from any previous run, so two runs on the same day evaluate the same
// window.
func Overnight(now time.Time, startHour int, span time.Duration) Window {
	start := time.Date(now.Year(), now.Month(), now.Day(), startHour, 0, 0, 0, now.Location())
	return Window{Start: start, End: start.Add(span)}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Accumulate sums the per-sample snowfall of every sample inside the window.
// Summation follows input order; the small floating-point representation
// error this can introduce is a known limitation and is not corrected.
func Accumulate(samples []weather.Sample, w Window) float64 {
	var total float64
	for _, s := range samples {
		if w.Contains(s.Time) {
			total += s.Snow3h
		}
	}
	return total
}

// ShouldNotify reports whether the accumulated total warrants an alert.
// The comparison is strict: a total exactly equal to the threshold does not
// notify.
func ShouldNotify(total, threshold float64) bool {
	return total > threshold
}
