// Package template renders the bilingual appointment emails. Spanish is the
// firm's default; English is used only when the client booked in English.
package template

import (
	"fmt"
	"strings"
)

const (
	KindBooked    = "booked"
	KindConfirmed = "confirmed"
	KindCancelled = "cancelled"
)

type Data struct {
	ClientName      string
	Date            string
	Timeslot        string
	Channel         string
	AppointmentCode string
	NCF             string
	AmountCents     int64
}

type Message struct {
	Subject string
	Body    string
}

// Render builds the email for a notification kind. Unknown languages fall
// back to Spanish, unknown kinds are an error so a bad event is visible in
// the logs instead of producing an empty mail.
func Render(kind, language string, d Data) (Message, error) {
	english := strings.EqualFold(language, "en")
	switch kind {
	case KindBooked:
		if english {
			return renderBookedEN(d), nil
		}
		return renderBookedES(d), nil
	case KindConfirmed:
		if english {
			return renderConfirmedEN(d), nil
		}
		return renderConfirmedES(d), nil
	case KindCancelled:
		if english {
			return renderCancelledEN(d), nil
		}
		return renderCancelledES(d), nil
	}
	return Message{}, fmt.Errorf("unknown notification kind %q", kind)
}

func renderBookedES(d Data) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimado/a %s:\n\n", d.ClientName)
	fmt.Fprintf(&b, "Hemos recibido su solicitud de cita para el %s a las %s (%s).\n", d.Date, d.Timeslot, channelES(d.Channel))
	fmt.Fprintf(&b, "Código de cita: %s\n", d.AppointmentCode)
	if d.AmountCents > 0 {
		fmt.Fprintf(&b, "Monto: %s\n", formatAmount(d.AmountCents))
	}
	if d.NCF != "" {
		fmt.Fprintf(&b, "Comprobante fiscal (NCF): %s\n", d.NCF)
		b.WriteString("\nSu pago ha sido procesado y su cita está confirmada.\n")
	} else {
		b.WriteString("\nSu cita quedará confirmada una vez verifiquemos el pago.\n")
	}
	b.WriteString("\nSantana Legal\n")
	return Message{
		Subject: "Solicitud de cita recibida — " + d.AppointmentCode,
		Body:    b.String(),
	}
}

func renderBookedEN(d Data) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", d.ClientName)
	fmt.Fprintf(&b, "We have received your appointment request for %s at %s (%s).\n", d.Date, d.Timeslot, channelEN(d.Channel))
	fmt.Fprintf(&b, "Appointment code: %s\n", d.AppointmentCode)
	if d.AmountCents > 0 {
		fmt.Fprintf(&b, "Amount: %s\n", formatAmount(d.AmountCents))
	}
	if d.NCF != "" {
		fmt.Fprintf(&b, "Fiscal receipt number (NCF): %s\n", d.NCF)
		b.WriteString("\nYour payment has been processed and your appointment is confirmed.\n")
	} else {
		b.WriteString("\nYour appointment will be confirmed once we verify the payment.\n")
	}
	b.WriteString("\nSantana Legal\n")
	return Message{
		Subject: "Appointment request received — " + d.AppointmentCode,
		Body:    b.String(),
	}
}

func renderConfirmedES(d Data) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimado/a %s:\n\n", d.ClientName)
	fmt.Fprintf(&b, "Su cita del %s a las %s (%s) ha sido confirmada.\n", d.Date, d.Timeslot, channelES(d.Channel))
	fmt.Fprintf(&b, "Código de cita: %s\n", d.AppointmentCode)
	if d.NCF != "" {
		fmt.Fprintf(&b, "Comprobante fiscal (NCF): %s\n", d.NCF)
	}
	b.WriteString("\nSantana Legal\n")
	return Message{
		Subject: "Cita confirmada — " + d.AppointmentCode,
		Body:    b.String(),
	}
}

func renderConfirmedEN(d Data) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", d.ClientName)
	fmt.Fprintf(&b, "Your appointment on %s at %s (%s) has been confirmed.\n", d.Date, d.Timeslot, channelEN(d.Channel))
	fmt.Fprintf(&b, "Appointment code: %s\n", d.AppointmentCode)
	if d.NCF != "" {
		fmt.Fprintf(&b, "Fiscal receipt number (NCF): %s\n", d.NCF)
	}
	b.WriteString("\nSantana Legal\n")
	return Message{
		Subject: "Appointment confirmed — " + d.AppointmentCode,
		Body:    b.String(),
	}
}

func renderCancelledES(d Data) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimado/a %s:\n\n", d.ClientName)
	fmt.Fprintf(&b, "Su cita del %s a las %s ha sido cancelada.\n", d.Date, d.Timeslot)
	fmt.Fprintf(&b, "Código de cita: %s\n", d.AppointmentCode)
	b.WriteString("\nSi desea reagendar, puede hacerlo desde nuestro portal de citas.\n")
	b.WriteString("\nSantana Legal\n")
	return Message{
		Subject: "Cita cancelada — " + d.AppointmentCode,
		Body:    b.String(),
	}
}

func renderCancelledEN(d Data) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", d.ClientName)
	fmt.Fprintf(&b, "Your appointment on %s at %s has been cancelled.\n", d.Date, d.Timeslot)
	fmt.Fprintf(&b, "Appointment code: %s\n", d.AppointmentCode)
	b.WriteString("\nIf you would like to reschedule, you can do so through our booking portal.\n")
	b.WriteString("\nSantana Legal\n")
	return Message{
		Subject: "Appointment cancelled — " + d.AppointmentCode,
		Body:    b.String(),
	}
}

func channelES(channel string) string {
	switch channel {
	case "managed-video-call":
		return "videollamada asistida"
	default:
		return "chat con video"
	}
}

func channelEN(channel string) string {
	switch channel {
	case "managed-video-call":
		return "managed video call"
	default:
		return "video chat"
	}
}

// formatAmount renders cents as Dominican pesos with thousands separators.
func formatAmount(cents int64) string {
	if cents < 0 {
		cents = 0
	}
	digits := fmt.Sprintf("%d", cents/100)
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return fmt.Sprintf("RD$%s.%02d", b.String(), cents%100)
}
