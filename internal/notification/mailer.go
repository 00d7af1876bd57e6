package notification

import (
	"context"
	"fmt"

	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers one notification intent. One attempt, no retries.
type Mailer interface {
	Send(ctx context.Context, intent domain.NotificationIntent) error
}

const sendGridHost = "https://api.sendgrid.com"

type SendGridMailer struct {
	apiKey     string
	fromEmail  string
	fromName   string
	adminEmail string
	host       string
}

func NewSendGridMailer(apiKey, fromEmail, fromName, adminEmail string) *SendGridMailer {
	return &SendGridMailer{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		adminEmail: adminEmail,
		host:       sendGridHost,
	}
}

func (s *SendGridMailer) Send(ctx context.Context, intent domain.NotificationIntent) error {
	msg, err := Compose(intent, s.adminEmail)
	if err != nil {
		return err
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, recipient, msg.Text, msg.HTML)

	request := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	logger.ExternalServiceCall("sendgrid", "mail.send", "to", msg.To, "kind", intent.Kind)
	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		err = fmt.Errorf("failed to send email: %w", err)
	} else if response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "mail.send", err, "to", msg.To)
	return err
}

// LogMailer renders messages and writes them to the log instead of sending.
// Used when no mail provider is configured.
type LogMailer struct {
	adminEmail string
}

func NewLogMailer(adminEmail string) *LogMailer {
	return &LogMailer{adminEmail: adminEmail}
}

func (l *LogMailer) Send(ctx context.Context, intent domain.NotificationIntent) error {
	msg, err := Compose(intent, l.adminEmail)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "Mail not sent (log provider)",
		"kind", intent.Kind,
		"to", msg.To,
		"subject", msg.Subject,
		"borrowCode", intent.Borrow.Record.Code,
	)
	return nil
}
