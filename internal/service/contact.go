package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrMailDisabled is returned when no mail provider is configured.
var ErrMailDisabled = errors.New("mail delivery is not configured")

// ContactMessage is the public contact form.
type ContactMessage struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// SendFunc delivers one SendGrid message and returns the HTTP status.
type SendFunc func(ctx context.Context, msg *mail.SGMailV3) (int, error)

// ContactService forwards contact form messages by email.
type ContactService struct {
	send      SendFunc
	sender    string
	recipient string
	logger    *slog.Logger
}

// NewContactService builds a ContactService backed by SendGrid.  Without
// an API key or recipient every Send returns ErrMailDisabled.
func NewContactService(apiKey, sender, recipient string, logger *slog.Logger) *ContactService {
	s := &ContactService{sender: sender, recipient: recipient, logger: logger}
	if apiKey != "" {
		client := sendgrid.NewSendClient(apiKey)
		s.send = func(ctx context.Context, msg *mail.SGMailV3) (int, error) {
			resp, err := client.SendWithContext(ctx, msg)
			if err != nil {
				return 0, err
			}
			return resp.StatusCode, nil
		}
	}
	return s
}

// WithSender replaces the delivery function.
func (s *ContactService) WithSender(send SendFunc) *ContactService {
	s.send = send
	return s
}

// Send delivers the message to the configured recipient with the
// visitor as reply-to address.
func (s *ContactService) Send(ctx context.Context, m ContactMessage) error {
	if s.send == nil || s.recipient == "" {
		return ErrMailDisabled
	}
	from := mail.NewEmail(m.Name, s.sender)
	to := mail.NewEmail("", s.recipient)
	msg := mail.NewSingleEmail(from, m.Subject, to, m.Message, "<p>"+html.EscapeString(m.Message)+"</p>")
	msg.SetReplyTo(mail.NewEmail(m.Name, m.Email))

	status, err := s.send(ctx, msg)
	if err != nil {
		return fmt.Errorf("send contact mail: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("send contact mail: provider returned %d", status)
	}
	s.logger.Info("contact mail sent", "subject", m.Subject)
	return nil
}
