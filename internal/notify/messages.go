package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/intake-engine/internal/events"
)

// Kind tags a message for provider analytics and retry logs.
type Kind string

const (
	KindAppointmentRequested Kind = "appointment_requested"
	KindAppointmentReceipt   Kind = "appointment_receipt"
	KindContactCaptured      Kind = "contact_captured"
)

type field struct{ label, value string }

// AppointmentRequestedEmail tells the business about a new request. Replies
// go straight to the visitor.
func AppointmentRequestedEmail(business, to string, evt events.AppointmentCreatedV1) EmailMessage {
	fields := []field{
		{"Name", evt.Name},
		{"Email", evt.Email},
		{"Phone", evt.Phone},
		{"Services", strings.Join(evt.Services, ", ")},
		{"Date", evt.Date},
		{"Time", fmt.Sprintf("%s (%s)", evt.TimeSlot, evt.SourceTimezone)},
	}
	if !evt.StartsAt.IsZero() {
		fields = append(fields, field{"Starts (UTC)", evt.StartsAt.UTC().Format("Mon Jan 2 15:04")})
	}
	fields = append(fields, field{"Reference", evt.AppointmentID})

	title := fmt.Sprintf("New appointment request: %s on %s", evt.Name, evt.Date)
	return EmailMessage{
		Kind:    KindAppointmentRequested,
		To:      to,
		ToName:  business,
		ReplyTo: evt.Email,
		Subject: title,
		Body:    textBody(fields),
		HTML:    htmlBody(title, fields, "Reply to this email to reach the visitor."),
	}
}

// AppointmentReceiptEmail acknowledges a request to the visitor.
func AppointmentReceiptEmail(business string, evt events.AppointmentCreatedV1) EmailMessage {
	intro := fmt.Sprintf("Thanks for booking with %s.", business)
	when := fmt.Sprintf("We have you down for %s, %s (%s). Our team will confirm shortly.", evt.Date, evt.TimeSlot, evt.SourceTimezone)
	fields := []field{
		{"Services", strings.Join(evt.Services, ", ")},
		{"Reference", evt.AppointmentID},
	}
	return EmailMessage{
		Kind:    KindAppointmentReceipt,
		To:      evt.Email,
		ToName:  evt.Name,
		Subject: fmt.Sprintf("We received your request, %s", firstName(evt.Name)),
		Body:    intro + "\n\n" + when + "\n\n" + textBody(fields),
		HTML:    htmlBody(intro, fields, when),
	}
}

// ContactCapturedEmail tells the business a visitor left their details.
func ContactCapturedEmail(business, to string, evt events.ContactCapturedV1) EmailMessage {
	fields := []field{
		{"Name", evt.Name},
		{"Email", evt.Email},
		{"Phone", evt.Phone},
		{"Source", evt.Source},
	}
	if !evt.CapturedAt.IsZero() {
		fields = append(fields, field{"Captured (UTC)", evt.CapturedAt.UTC().Format("Mon Jan 2 15:04")})
	}
	title := fmt.Sprintf("New contact: %s", evt.Name)
	return EmailMessage{
		Kind:    KindContactCaptured,
		To:      to,
		ToName:  business,
		ReplyTo: evt.Email,
		Subject: title,
		Body:    textBody(fields),
		HTML:    htmlBody(title, fields, ""),
	}
}

func textBody(fields []field) string {
	var b strings.Builder
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", f.label, f.value)
	}
	return b.String()
}

// htmlBody escapes every value; names and notes come from visitors.
func htmlBody(title string, fields []field, footer string) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family: sans-serif; max-width: 600px;">`)
	fmt.Fprintf(&b, `<h2 style="margin: 0 0 16px;">%s</h2><table>`, html.EscapeString(title))
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		fmt.Fprintf(&b, `<tr><td style="padding: 4px 12px 4px 0; color: #666;">%s</td><td>%s</td></tr>`,
			html.EscapeString(f.label), html.EscapeString(f.value))
	}
	b.WriteString(`</table>`)
	if footer != "" {
		fmt.Fprintf(&b, `<p style="color: #666;">%s</p>`, html.EscapeString(footer))
	}
	b.WriteString(`</div>`)
	return b.String()
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
