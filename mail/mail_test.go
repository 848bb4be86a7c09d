// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mail

import (
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/taskflow/cliparse"
)

func TestNew(t *testing.T) {
	assert.IsType(t, &ConsoleMailer{}, New(cliparse.Config{EmailBackend: "console"}))
	assert.IsType(t, &MemoryMailer{}, New(cliparse.Config{EmailBackend: "memory"}))
	assert.IsType(t, &SMTPMailer{}, New(cliparse.Config{EmailBackend: "smtp", SMTPHost: "localhost", SMTPPort: 25}))
}

func TestMemoryMailer(t *testing.T) {
	m := &MemoryMailer{}
	ctx := context.Background()

	require.NoError(t, m.Send(ctx, Message{From: "a@example.com", To: []string{"b@example.com"}, Subject: "hi", Body: "hello"}))
	require.NoError(t, m.Send(ctx, Message{From: "a@example.com", To: []string{"c@example.com"}, Subject: "yo", Body: "there"}))
	assert.ErrorIs(t, m.Send(ctx, Message{Subject: "nobody"}), ErrNoRecipients)

	outbox := m.Outbox()
	require.Len(t, outbox, 2)
	assert.Equal(t, "hi", outbox[0].Subject)
	assert.Equal(t, []string{"c@example.com"}, outbox[1].To)

	m.Reset()
	assert.Empty(t, m.Outbox())
}

func TestConsoleMailer(t *testing.T) {
	var buf strings.Builder
	m := &ConsoleMailer{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, m.Send(context.Background(), Message{From: "a@example.com", To: []string{"b@example.com"}, Subject: "hi", Body: "hello"}))
	assert.Contains(t, buf.String(), "subject=hi")
	assert.Contains(t, buf.String(), "to=b@example.com")
}

func TestSMTPMailer(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth

	m := &SMTPMailer{
		Host:     "smtp.example.com",
		Port:     2525,
		Username: "user",
		Password: "pass",
		sendMail: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
			return nil
		},
	}

	err := m.Send(context.Background(), Message{
		From:    "noreply@example.com",
		To:      []string{"alice@example.com"},
		Subject: ActivationSubject,
		Body:    "line one\nline two",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Activate your account\r\n")
	assert.Contains(t, string(gotMsg), "line one\r\nline two")
}

func TestSMTPMailer_Error(t *testing.T) {
	m := &SMTPMailer{
		Host: "smtp.example.com",
		Port: 25,
		sendMail: func(string, smtp.Auth, string, []string, []byte) error {
			return errors.New("connection refused")
		},
	}

	err := m.Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorContains(t, err, "connection refused")
	assert.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNoRecipients)
}

func TestSMTPMailer_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	m := &SMTPMailer{
		Host: "smtp.example.com",
		Port: 25,
		sendMail: func(string, smtp.Auth, string, []string, []byte) error {
			<-block
			return nil
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := m.Send(ctx, Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFormat_StripsHeaderInjection(t *testing.T) {
	raw := string(Format(Message{
		From:    "a@example.com",
		To:      []string{"b@example.com"},
		Subject: "hi\r\nBcc: victim@example.com",
	}, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))

	assert.NotContains(t, raw, "\r\nBcc:")
	assert.Contains(t, raw, "Date: Thu, 02 Jan 2025 03:04:05 +0000\r\n")
}

func TestActivationBody(t *testing.T) {
	body, err := ActivationBody("alice", "http://localhost:3318/accounts/activate/MQ/abc-123/")
	require.NoError(t, err)
	assert.Contains(t, body, "Hi alice,")
	assert.Contains(t, body, "http://localhost:3318/accounts/activate/MQ/abc-123/")
}
