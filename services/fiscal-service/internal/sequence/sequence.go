// Package sequence holds the fiscal-number rules that do not need a
// database: code composition, prefix validation, and sequence status. The
// atomic counter increment itself lives in storage as a single SQL statement.
package sequence

import (
	"errors"
	"fmt"
	"time"
)

// All three are terminal for the request: a new or extended sequence must be
// configured by an administrator before allocation can succeed again.
var (
	ErrNoActiveSequence  = errors.New("no sequence configured for prefix")
	ErrSequenceExpired   = errors.New("sequence past its expiration date")
	ErrSequenceExhausted = errors.New("sequence counter at configured bound")
)

// CounterWidth is the zero-padded width of the numeric part of an NCF.
const CounterWidth = 8

const PrefixLength = 3

// FormatNCF composes the receipt identifier: prefix + zero-padded counter.
func FormatNCF(prefix string, counter int64) string {
	return fmt.Sprintf("%s%0*d", prefix, CounterWidth, counter)
}

func ValidPrefix(p string) bool {
	if len(p) != PrefixLength {
		return false
	}
	if p[0] < 'A' || p[0] > 'Z' {
		return false
	}
	for _, c := range p[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

type Status string

const (
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusDepleted Status = "depleted"
)

type Sequence struct {
	Prefix       string
	Description  string
	CurrentValue int64
	EndValue     int64
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StatusAt derives the allocation status. Expiry wins over depletion so the
// admin panel shows the reason that needs fixing first.
func (s Sequence) StatusAt(now time.Time) Status {
	if s.ExpiresAt.Before(truncateToDate(now)) {
		return StatusExpired
	}
	if s.CurrentValue >= s.EndValue {
		return StatusDepleted
	}
	return StatusActive
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
