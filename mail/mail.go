// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/danielhkuo/taskflow/cliparse"
	"github.com/danielhkuo/taskflow/models"
)

var ErrNoRecipients = errors.New("no recipients")

type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer delivers plain text messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the Mailer selected by cfg.EmailBackend
func New(cfg cliparse.Config) Mailer {
	switch cfg.EmailBackend {
	case models.EmailBackendSMTP:
		return &SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}
	case models.EmailBackendMemory:
		return &MemoryMailer{}
	default:
		return &ConsoleMailer{Logger: slog.Default()}
	}
}

// ConsoleMailer logs messages instead of sending them.
type ConsoleMailer struct {
	Logger *slog.Logger
}

func (m *ConsoleMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	m.Logger.InfoContext(ctx, "email",
		"from", msg.From,
		"to", strings.Join(msg.To, ", "),
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

// MemoryMailer collects messages in Outbox. Used by tests and the memory backend.
type MemoryMailer struct {
	mu     sync.Mutex
	outbox []Message
}

func (m *MemoryMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, msg)
	return nil
}

// Outbox returns a copy of the messages sent so far
func (m *MemoryMailer) Outbox() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.outbox))
	copy(out, m.outbox)
	return out
}

// Reset empties the outbox
func (m *MemoryMailer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = nil
}

// SMTPMailer sends through an SMTP relay using STARTTLS when offered.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string

	// sendMail is swapped out in tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	var a smtp.Auth
	if m.Username != "" {
		a = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	send := m.sendMail
	if send == nil {
		send = smtp.SendMail
	}

	done := make(chan error, 1)
	go func() {
		done <- send(addr, a, msg.From, msg.To, Format(msg, time.Now()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Format renders msg as an RFC 5322 message
func Format(msg Message, date time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", sanitizeHeader(msg.From))
	fmt.Fprintf(&b, "To: %s\r\n", sanitizeHeader(strings.Join(msg.To, ", ")))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.Bytes()
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

const ActivationSubject = "Activate your account"

var activationTemplate = template.Must(template.New("activation_email").Parse(
	`Hi {{.Username}},

Thanks for signing up. Please confirm your email address by opening the link below:

{{.ActivationURL}}

If you did not create an account, you can ignore this message.
`))

// ActivationBody renders the activation email text
func ActivationBody(username, activationURL string) (string, error) {
	var b bytes.Buffer
	err := activationTemplate.Execute(&b, struct {
		Username      string
		ActivationURL string
	}{username, activationURL})
	if err != nil {
		return "", fmt.Errorf("failed to render activation email: %w", err)
	}
	return b.String(), nil
}
