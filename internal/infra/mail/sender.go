package mail

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
)

const deadLetterTemplate = `A lead for {{.LocationName}} could not be delivered after {{.Attempts}} attempts and needs manual handling.

Lead:    {{.FirstName}} {{.LastName}} <{{.Email}}>
Reason:  {{.Reason}}
First failed: {{.FirstFailed}}

The full payload is retained in the dead-letter queue and stays queryable until cleared.
`

func NewEmailSender(host string, port int, user, password, from string) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
	}
}

// SendDeadLetterAlert notifies a location's contact that one of its leads
// exhausted all delivery retries.
func (s *EmailSender) SendDeadLetterAlert(to, locationName string, entry entity.FailedDelivery) error {
	data := DeadLetterAlertData{
		LocationName: locationName,
		Email:        entry.Lead.Email,
		FirstName:    entry.Lead.FirstName,
		LastName:     entry.Lead.LastName,
		Reason:       entry.Reason,
		Attempts:     entry.Attempts,
		FirstFailed:  entry.FirstFailedAt.Format(time.RFC1123),
	}

	t, err := template.New("dead_letter").Parse(deadLetterTemplate)
	if err != nil {
		return fmt.Errorf("alert template parse failed: %w", err)
	}

	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return fmt.Errorf("alert template execute failed: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("⚠️ Lead delivery gave up for %s (%s)", locationName, entry.Lead.Email))
	m.SetBody("text/plain", body.String())

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("alert email send failed: %w", err)
	}

	return nil
}
