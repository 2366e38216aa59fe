package sequence

import (
	"testing"
	"time"
)

func TestFormatNCF(t *testing.T) {
	cases := []struct {
		prefix  string
		counter int64
		want    string
	}{
		{"B02", 100, "B0200000100"},
		{"B01", 1, "B0100000001"},
		{"E32", 12345678, "E3212345678"},
	}
	for _, c := range cases {
		if got := FormatNCF(c.prefix, c.counter); got != c.want {
			t.Fatalf("FormatNCF(%q, %d) = %q, want %q", c.prefix, c.counter, got, c.want)
		}
	}
}

func TestValidPrefix(t *testing.T) {
	valid := []string{"B01", "B02", "E31", "E32", "B14"}
	for _, p := range valid {
		if !ValidPrefix(p) {
			t.Fatalf("ValidPrefix(%q) = false, want true", p)
		}
	}
	invalid := []string{"", "B1", "B015", "b02", "0B2", "BXX"}
	for _, p := range invalid {
		if ValidPrefix(p) {
			t.Fatalf("ValidPrefix(%q) = true, want false", p)
		}
	}
}

func TestStatusAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	base := Sequence{
		Prefix:       "B02",
		CurrentValue: 50,
		EndValue:     100,
		ExpiresAt:    time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}

	if got := base.StatusAt(now); got != StatusActive {
		t.Fatalf("active sequence: got %q", got)
	}

	depleted := base
	depleted.CurrentValue = 100
	if got := depleted.StatusAt(now); got != StatusDepleted {
		t.Fatalf("depleted sequence: got %q", got)
	}

	expired := base
	expired.ExpiresAt = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if got := expired.StatusAt(now); got != StatusExpired {
		t.Fatalf("expired sequence: got %q", got)
	}

	// A sequence expiring today is still usable through the day.
	edge := base
	edge.ExpiresAt = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if got := edge.StatusAt(now); got != StatusActive {
		t.Fatalf("expires-today sequence: got %q", got)
	}

	// Expiry is reported even when the counter is also at the bound.
	both := base
	both.CurrentValue = 100
	both.ExpiresAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := both.StatusAt(now); got != StatusExpired {
		t.Fatalf("expired+depleted sequence: got %q", got)
	}
}
