package template

import (
	"strings"
	"testing"
)

func sampleData() Data {
	return Data{
		ClientName:      "María Fernández",
		Date:            "2026-04-10",
		Timeslot:        "10:30",
		Channel:         "chat-video",
		AppointmentCode: "CITA-3F9A1C",
		NCF:             "B0200000145",
		AmountCents:     250000,
	}
}

func TestRenderBookedSpanish(t *testing.T) {
	msg, err := Render(KindBooked, "es", sampleData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg.Subject != "Solicitud de cita recibida — CITA-3F9A1C" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	for _, want := range []string{
		"María Fernández",
		"2026-04-10",
		"10:30",
		"chat con video",
		"B0200000145",
		"RD$2,500.00",
		"su cita está confirmada",
	} {
		if !strings.Contains(msg.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, msg.Body)
		}
	}
}

func TestRenderBookedEnglishWithoutNCF(t *testing.T) {
	d := sampleData()
	d.NCF = ""
	msg, err := Render(KindBooked, "en", d)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg.Subject != "Appointment request received — CITA-3F9A1C" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if strings.Contains(msg.Body, "NCF") {
		t.Fatalf("body mentions NCF without one issued:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "once we verify the payment") {
		t.Fatalf("body missing pending-payment note:\n%s", msg.Body)
	}
}

func TestRenderConfirmedAndCancelled(t *testing.T) {
	d := sampleData()
	d.Channel = "managed-video-call"

	msg, err := Render(KindConfirmed, "es", d)
	if err != nil {
		t.Fatalf("Render confirmed: %v", err)
	}
	if !strings.Contains(msg.Body, "videollamada asistida") {
		t.Fatalf("confirmed body missing channel label:\n%s", msg.Body)
	}

	msg, err = Render(KindCancelled, "en", d)
	if err != nil {
		t.Fatalf("Render cancelled: %v", err)
	}
	if msg.Subject != "Appointment cancelled — CITA-3F9A1C" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "reschedule") {
		t.Fatalf("cancelled body missing reschedule note:\n%s", msg.Body)
	}
}

func TestRenderUnknownLanguageFallsBackToSpanish(t *testing.T) {
	msg, err := Render(KindConfirmed, "fr", sampleData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(msg.Subject, "Cita confirmada") {
		t.Fatalf("subject = %q, want Spanish fallback", msg.Subject)
	}
}

func TestRenderUnknownKind(t *testing.T) {
	if _, err := Render("rescheduled", "es", sampleData()); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "RD$0.00"},
		{150, "RD$1.50"},
		{250000, "RD$2,500.00"},
		{123456789, "RD$1,234,567.89"},
	}
	for _, c := range cases {
		if got := formatAmount(c.cents); got != c.want {
			t.Fatalf("formatAmount(%d) = %q, want %q", c.cents, got, c.want)
		}
	}
}
