// Package mail delivers the verification and password reset emails.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/filekeep/filekeep-go/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const appName = "File Management System"

// Message is one outgoing email. Text is the plain alternative of HTML.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier renders and sends the account emails.
type Notifier struct {
	sender Sender
}

// NewNotifier creates a new Notifier.
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// SendVerification mails the email verification link to a new user.
func (n *Notifier) SendVerification(ctx context.Context, to, name, link string) error {
	return n.send(ctx, "verification", "verification.html", Message{
		To:      to,
		Subject: appName + " Account Verification Email",
		Text:    fmt.Sprintf("Hi %s,\n\nVerify your email address by opening this link:\n%s\n", name, link),
	}, map[string]string{"AppName": appName, "Name": name, "Link": link})
}

// SendPasswordReset mails the password reset link.
func (n *Notifier) SendPasswordReset(ctx context.Context, to, link string) error {
	return n.send(ctx, "password_reset", "reset.html", Message{
		To:      to,
		Subject: "Password Reset Request",
		Text:    fmt.Sprintf("Reset your password by opening this link:\n%s\n\nIf you didn't request a password reset, ignore this email.\n", link),
	}, map[string]string{"AppName": appName, "Link": link})
}

func (n *Notifier) send(ctx context.Context, kind, tmpl string, msg Message, data any) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		return fmt.Errorf("render %s email: %w", kind, err)
	}
	msg.HTML = buf.String()

	err := n.sender.Send(ctx, msg)
	metrics.Emails.WithLabelValues(kind, metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "email not sent, no SMTP host configured",
		"to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}
