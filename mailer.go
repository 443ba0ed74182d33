package account

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

// Mail template references used by the manager.
const (
	TemplateActivate = "account.activate"
	TemplateRestore  = "account.restore"
)

// Recipient is the destination of a transactional message.
type Recipient struct {
	Email string
	Name  string
}

// Mailer delivers transactional mail. Fire-and-forget from the manager's
// perspective: delivery retries and timeouts belong to the implementation.
type Mailer interface {
	Send(ctx context.Context, template string, data map[string]any, to Recipient) error
}

// MailgunMailer delivers through Mailgun templates.
type MailgunMailer struct {
	mg     mailgun.Mailgun
	sender string
	logger Logger

	// Subjects maps template refs to subject lines; unmapped templates use
	// the template ref itself.
	Subjects map[string]string
}

// NewMailgunMailer creates a Mailer backed by a Mailgun domain.
func NewMailgunMailer(domain, apiKey, sender string) *MailgunMailer {
	return &MailgunMailer{
		mg:     mailgun.NewMailgun(domain, apiKey),
		sender: sender,
		logger: defLogger{},
		Subjects: map[string]string{
			TemplateActivate: "Activate your account",
			TemplateRestore:  "Reset your password",
		},
	}
}

func (m *MailgunMailer) WithLogger(logger Logger) *MailgunMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *MailgunMailer) Send(ctx context.Context, template string, data map[string]any, to Recipient) error {
	subject := m.Subjects[template]
	if subject == "" {
		subject = template
	}

	recipient := to.Email
	if to.Name != "" {
		recipient = fmt.Sprintf("%s <%s>", to.Name, to.Email)
	}

	msg := m.mg.NewMessage(m.sender, subject, "", recipient)
	msg.SetTemplate(template)
	for k, v := range data {
		if err := msg.AddTemplateVariable(k, v); err != nil {
			return err
		}
	}

	_, id, err := m.mg.Send(ctx, msg)
	if err != nil {
		m.logger.Error("mailgun send %s failed: %s", template, err)
		return err
	}

	m.logger.Debug("mailgun message %s queued: %s", template, id)
	return nil
}

// LogMailer writes messages to the logger instead of delivering them. It is
// the default used in development and tests.
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) Send(_ context.Context, template string, data map[string]any, to Recipient) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("mail %s to=%s data=%v", template, to.Email, data)
	return nil
}
