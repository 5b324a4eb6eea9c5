package booking

import (
	"sort"
	"time"
)

// Interval is a half-open reservation window [Start, End). The end instant is
// excluded, so two windows that merely touch do not overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the length of the interval. Negative when End precedes Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// IsComplete reports whether both endpoints are present.
func (iv Interval) IsComplete() bool {
	return !iv.Start.IsZero() && !iv.End.IsZero()
}

// Overlaps reports whether the two intervals share at least one instant under
// half-open semantics: a.Start < b.End && b.Start < a.End.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Appointment is a team's reserved window on a site. The team is referenced by
// identity only; its lifecycle belongs to the team directory.
type Appointment struct {
	TeamID string
	Start  time.Time
	End    time.Time
}

// Window returns the appointment's reservation interval.
func (a Appointment) Window() Interval {
	return Interval{Start: a.Start, End: a.End}
}

// Normalize returns a new slice sorted by start time, then end time, then team
// identity. Caller-supplied order is never trusted; every validation path that
// depends on ordering runs over a normalized copy.
func Normalize(appointments []Appointment) []Appointment {
	out := make([]Appointment, len(appointments))
	copy(out, appointments)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if !out[i].End.Equal(out[j].End) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].TeamID < out[j].TeamID
	})
	return out
}

// Windows projects appointments onto their reservation intervals.
func Windows(appointments []Appointment) []Interval {
	if len(appointments) == 0 {
		return nil
	}
	out := make([]Interval, 0, len(appointments))
	for _, appointment := range appointments {
		out = append(out, appointment.Window())
	}
	return out
}

// SiteConfig carries the scheduling configuration of a site: how many
// reservations may overlap at any instant and the admissible duration range.
type SiteConfig struct {
	Capacity    int
	MinDuration time.Duration
	MaxDuration time.Duration
}
