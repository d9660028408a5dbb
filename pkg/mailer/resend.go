// Package mailer sends intervention emails through Resend.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/resendlabs/resend-go"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-insights-api/internal/service"
)

// ErrMissingAPIKey is returned when the mailer is built without credentials.
var ErrMissingAPIKey = errors.New("resend api key is required")

type emailSender interface {
	Send(params *resend.SendEmailRequest) (resend.SendEmailResponse, error)
}

// Config configures the sender identity.
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// ResendMailer implements service.Mailer.
type ResendMailer struct {
	emails    emailSender
	fromEmail string
	fromName  string
	logger    *zap.Logger
}

// NewResendMailer builds a mailer backed by the Resend API.
func NewResendMailer(cfg Config, logger *zap.Logger) (*ResendMailer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	client := resend.NewClient(cfg.APIKey)
	return newResendMailer(client.Emails, cfg, logger), nil
}

func newResendMailer(emails emailSender, cfg Config, logger *zap.Logger) *ResendMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	fromEmail := cfg.FromEmail
	if fromEmail == "" {
		fromEmail = "noreply@tutor-insights.local"
	}
	fromName := cfg.FromName
	if fromName == "" {
		fromName = "Tutor Success Team"
	}
	return &ResendMailer{emails: emails, fromEmail: fromEmail, fromName: fromName, logger: logger}
}

// Send delivers one message and returns the Resend message id.
func (m *ResendMailer) Send(ctx context.Context, msg service.OutgoingEmail) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(msg.To) == "" {
		return "", errors.New("recipient address is required")
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail),
		To:      []string{formatRecipient(msg.To, msg.ToName)},
		Subject: msg.Subject,
		Text:    msg.Body,
		Html:    renderHTML(msg.Body),
	}

	resp, err := m.emails.Send(params)
	if err != nil {
		return "", fmt.Errorf("send email via resend: %w", err)
	}
	m.logger.Debug("email sent",
		zap.String("message_id", resp.Id),
		zap.String("intervention_id", msg.Tags["intervention_id"]),
	)
	return resp.Id, nil
}

func formatRecipient(address, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "<>\"") {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}

// renderHTML wraps each paragraph of the plain-text body.
func renderHTML(body string) string {
	paragraphs := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n")
	var b strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(p), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}
