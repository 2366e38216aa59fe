package availability

import "fmt"

// Interval is a half-open range of minutes from midnight, [Start, End).
type Interval struct {
	Start int
	End   int
}

// Booking is the subset of a persisted appointment the engine needs.
type Booking struct {
	StartMinute     int
	DurationMinutes int
}

// DefaultDurationMinutes is assumed for legacy records stored without a
// duration. Deliberate degradation policy for old rows, not a validation gap.
const DefaultDurationMinutes = 30

// Window is one of the bookable day windows. Slots are generated inside a
// single window per query; cross-window generation is not supported.
type Window struct {
	Name  string
	Start int
	End   int
}

var (
	Morning   = Window{Name: "morning", Start: 9 * 60, End: 12 * 60}
	Afternoon = Window{Name: "afternoon", Start: 14 * 60, End: 18 * 60}
	Evening   = Window{Name: "evening", Start: 18 * 60, End: 21 * 60}
)

func WindowByName(name string) (Window, bool) {
	switch name {
	case Morning.Name:
		return Morning, true
	case Afternoon.Name:
		return Afternoon, true
	case Evening.Name:
		return Evening, true
	}
	return Window{}, false
}

// Slot is one offerable appointment time within a window.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// BusyIntervals maps non-cancelled bookings to occupied [start, start+duration)
// intervals. A missing or non-positive duration occupies DefaultDurationMinutes.
func BusyIntervals(bookings []Booking) []Interval {
	busy := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		d := b.DurationMinutes
		if d <= 0 {
			d = DefaultDurationMinutes
		}
		busy = append(busy, Interval{Start: b.StartMinute, End: b.StartMinute + d})
	}
	return busy
}

// GenerateSlots walks win in durationMinutes-sized steps from win.Start,
// stopping once a full step no longer fits before win.End. Every step produces
// a slot; taken ones are marked unavailable rather than omitted so the caller
// can render the full grid. Output is chronological and deterministic.
func GenerateSlots(win Window, durationMinutes int, busy []Interval) []Slot {
	if durationMinutes <= 0 {
		return nil
	}

	var slots []Slot
	for t := win.Start; t+durationMinutes <= win.End; t += durationMinutes {
		slots = append(slots, Slot{
			Time:      MinuteClock(t),
			Available: !Overlaps(t, t+durationMinutes, busy),
		})
	}
	return slots
}

// Overlaps reports whether the candidate [start, end) collides with any busy
// interval. The booking handler re-runs this inside the commit transaction.
func Overlaps(start, end int, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start < b.End && b.Start < end {
			return true
		}
	}
	return false
}

// MinuteClock formats minutes-from-midnight as "HH:MM".
func MinuteClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseClock parses "HH:MM" into minutes from midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}
