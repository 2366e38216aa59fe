package handlers

import (
	"strings"
	"testing"
)

func TestBuildAppointmentDefaults(t *testing.T) {
	h := &BookingHandler{}
	req := bookRequest{
		PaymentMethod: "transfer",
		AppointmentData: appointmentData{
			Date:        "2026-09-14",
			Timeslot:    "09:30",
			ClientName:  " Ana Díaz ",
			ClientEmail: "ana@example.com",
		},
	}

	appt, errMsg := h.buildAppointment(req)
	if errMsg != "" {
		t.Fatalf("unexpected validation error: %s", errMsg)
	}
	if appt.DurationMinutes != 30 {
		t.Fatalf("missing duration should default to 30, got %d", appt.DurationMinutes)
	}
	if appt.Channel != "chat-video" {
		t.Fatalf("missing channel should default to chat-video, got %s", appt.Channel)
	}
	if appt.Language != "es" {
		t.Fatalf("missing language should default to es, got %s", appt.Language)
	}
	if appt.Status != "pending" {
		t.Fatalf("new appointments start pending, got %s", appt.Status)
	}
	if appt.ClientName != "Ana Díaz" {
		t.Fatalf("client name should be trimmed, got %q", appt.ClientName)
	}
}

func TestBuildAppointmentRejectsBadInput(t *testing.T) {
	h := &BookingHandler{}
	cases := []struct {
		name string
		req  bookRequest
	}{
		{
			"missing client fields",
			bookRequest{PaymentMethod: "card", AppointmentData: appointmentData{Date: "2026-09-14", Timeslot: "09:00"}},
		},
		{
			"bad date",
			bookRequest{PaymentMethod: "card", AppointmentData: appointmentData{Date: "14/09/2026", Timeslot: "09:00", ClientName: "A", ClientEmail: "a@b.c"}},
		},
		{
			"bad timeslot",
			bookRequest{PaymentMethod: "card", AppointmentData: appointmentData{Date: "2026-09-14", Timeslot: "half past", ClientName: "A", ClientEmail: "a@b.c"}},
		},
		{
			"bad channel",
			bookRequest{PaymentMethod: "card", AppointmentData: appointmentData{Date: "2026-09-14", Timeslot: "09:00", Channel: "carrier-pigeon", ClientName: "A", ClientEmail: "a@b.c"}},
		},
		{
			"missing payment method",
			bookRequest{AppointmentData: appointmentData{Date: "2026-09-14", Timeslot: "09:00", ClientName: "A", ClientEmail: "a@b.c"}},
		},
	}

	for _, tc := range cases {
		if _, errMsg := h.buildAppointment(tc.req); errMsg == "" {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestNewAppointmentCode(t *testing.T) {
	code := newAppointmentCode()
	if !strings.HasPrefix(code, "CITA-") || len(code) != len("CITA-")+6 {
		t.Fatalf("unexpected code format: %s", code)
	}
	if code == newAppointmentCode() {
		t.Fatal("codes should not repeat")
	}
}
