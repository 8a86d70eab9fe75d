// Package notify delivers booking confirmation emails off the event bus.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/barberlink/bookings/pkg/logger"
	"github.com/mailersend/mailersend-go"
)

type Mailer interface {
	SendBookingConfirmed(toEmail, barbershopName string, scheduledAt time.Time) error
}

type MailerSendMailer struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendMailer {
	m := &MailerSendMailer{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

func (m *MailerSendMailer) SendBookingConfirmed(toEmail, barbershopName string, scheduledAt time.Time) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	when := scheduledAt.Format("Monday, 02 Jan 2006 at 15:04")
	subject := fmt.Sprintf("Your booking at %s is confirmed", barbershopName)
	text := fmt.Sprintf("Your booking at %s is confirmed for %s.\n\nSee you there!", barbershopName, when)
	html := fmt.Sprintf(`
		<h2>Booking confirmed</h2>
		<p>Your booking at <strong>%s</strong> is confirmed for <strong>%s</strong>.</p>
		<p>See you there!</p>
	`, barbershopName, when)

	return m.sendEmail(toEmail, subject, text, html)
}

func (m *MailerSendMailer) sendEmail(toEmail, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: toEmail}})
	msg.SetSubject(subject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}

// DevMailer logs emails instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendBookingConfirmed(toEmail, barbershopName string, scheduledAt time.Time) error {
	logger.Info("📧 [DEV MAIL] Booking Confirmed",
		"to", toEmail,
		"barbershop", barbershopName,
		"scheduled_at", scheduledAt.Format(time.RFC3339),
	)
	return nil
}
