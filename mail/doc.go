// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package mail sends plain text email.

# Backends

New picks a Mailer from the configuration:

  - console: logs each message through slog (default, for development)
  - smtp: net/smtp with optional PLAIN auth
  - memory: keeps messages in an in-process outbox

# Activation Email

	body, err := mail.ActivationBody(user.Username, activationURL)
	err = mailer.Send(ctx, mail.Message{
		From:    cfg.DefaultFromEmail,
		To:      []string{user.Email},
		Subject: mail.ActivationSubject,
		Body:    body,
	})
*/
package mail
