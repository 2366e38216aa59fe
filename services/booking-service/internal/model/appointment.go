package model

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"

	ChannelChatVideo   = "chat-video"
	ChannelManagedCall = "managed-video-call"
)

type Appointment struct {
	ID              string
	Date            time.Time // calendar date; time-of-day lives in Timeslot
	Timeslot        string    // "HH:MM"
	DurationMinutes int
	Channel         string
	Status          string
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	ClientRNC       string
	LawyerID        string
	Code            string // human-readable short code, e.g. CITA-3F9A2B
	AmountCents     int64
	NCF             string
	PaymentMethod   string
	PaymentRef      string
	Language        string // es or en, drives email templates
	CreatedAt       time.Time
	CancelledAt     *time.Time
	CancelReason    string
}
