package availability

import (
	"reflect"
	"testing"
)

func TestGenerateSlots_MorningWithBusyOpener(t *testing.T) {
	// One existing 30-minute booking at 09:00 against the morning window.
	busy := BusyIntervals([]Booking{{StartMinute: 9 * 60, DurationMinutes: 30}})

	slots := GenerateSlots(Morning, 30, busy)
	want := []Slot{
		{Time: "09:00", Available: false},
		{Time: "09:30", Available: true},
		{Time: "10:00", Available: true},
		{Time: "10:30", Available: true},
		{Time: "11:00", Available: true},
		{Time: "11:30", Available: true},
	}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("unexpected slots: %+v", slots)
	}
}

func TestGenerateSlots_45MinuteGrid(t *testing.T) {
	// 11:15+45 = 12:00 fits exactly; nothing starts past that.
	slots := GenerateSlots(Morning, 45, nil)
	want := []Slot{
		{Time: "09:00", Available: true},
		{Time: "09:45", Available: true},
		{Time: "10:30", Available: true},
		{Time: "11:15", Available: true},
	}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("unexpected slots: %+v", slots)
	}
}

func TestGenerateSlots_BackToBackIsAvailable(t *testing.T) {
	// Half-open semantics: a slot ending exactly at a busy start, and a slot
	// starting exactly at a busy end, are both free.
	busy := []Interval{{Start: 9*60 + 30, End: 10 * 60}}

	slots := GenerateSlots(Morning, 30, busy)
	byTime := map[string]bool{}
	for _, s := range slots {
		byTime[s.Time] = s.Available
	}
	if !byTime["09:00"] {
		t.Fatal("slot ending at busy start should be available")
	}
	if byTime["09:30"] {
		t.Fatal("slot overlapping busy interval should be taken")
	}
	if !byTime["10:00"] {
		t.Fatal("slot starting at busy end should be available")
	}
}

func TestGenerateSlots_OverlapTable(t *testing.T) {
	// Candidate is [10:00, 10:30).
	cases := []struct {
		name string
		busy Interval
		want bool // candidate available
	}{
		{"disjoint before", Interval{9 * 60, 9*60 + 30}, true},
		{"adjacent before", Interval{9*60 + 30, 10 * 60}, true},
		{"overlaps head", Interval{9*60 + 45, 10*60 + 15}, false},
		{"contained", Interval{10*60 + 10, 10*60 + 20}, false},
		{"covers", Interval{9 * 60, 11 * 60}, false},
		{"overlaps tail", Interval{10*60 + 15, 10*60 + 45}, false},
		{"adjacent after", Interval{10*60 + 30, 11 * 60}, true},
		{"disjoint after", Interval{11 * 60, 11*60 + 30}, true},
	}

	for _, tc := range cases {
		slots := GenerateSlots(Morning, 30, []Interval{tc.busy})
		var got bool
		for _, s := range slots {
			if s.Time == "10:00" {
				got = s.Available
			}
		}
		if got != tc.want {
			t.Fatalf("%s: candidate availability = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestGenerateSlots_Idempotent(t *testing.T) {
	busy := BusyIntervals([]Booking{
		{StartMinute: 14 * 60, DurationMinutes: 60},
		{StartMinute: 16 * 60, DurationMinutes: 20},
	})
	first := GenerateSlots(Afternoon, 30, busy)
	second := GenerateSlots(Afternoon, 30, busy)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs must produce identical slot lists")
	}
}

func TestBusyIntervals_DurationFallback(t *testing.T) {
	busy := BusyIntervals([]Booking{
		{StartMinute: 10 * 60, DurationMinutes: 0},
		{StartMinute: 11 * 60, DurationMinutes: -15},
	})
	want := []Interval{
		{Start: 10 * 60, End: 10*60 + 30},
		{Start: 11 * 60, End: 11*60 + 30},
	}
	if !reflect.DeepEqual(busy, want) {
		t.Fatalf("unexpected intervals: %+v", busy)
	}
}

func TestWindowByName(t *testing.T) {
	if _, ok := WindowByName("morning"); !ok {
		t.Fatal("morning window should exist")
	}
	if _, ok := WindowByName("midnight"); ok {
		t.Fatal("unknown window should not resolve")
	}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	if err != nil || m != 9*60+30 {
		t.Fatalf("ParseClock(09:30) = %d, %v", m, err)
	}
	if _, err := ParseClock("25:00"); err == nil {
		t.Fatal("expected error for hour out of range")
	}
	if _, err := ParseClock("oops"); err == nil {
		t.Fatal("expected error for garbage input")
	}
	if MinuteClock(9*60+5) != "09:05" {
		t.Fatalf("MinuteClock formatting broken: %s", MinuteClock(9*60+5))
	}
}
