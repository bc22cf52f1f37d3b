// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

// Package mail delivers transactional email over SMTP.
//
// The portal sends two kinds of messages: one-time login codes and password
// reset links. Both are short plain-HTML notices rendered here so the auth
// layer never deals with wire formatting.
package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Sender delivers a single email message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPSender sends mail through a configured SMTP relay using gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a sender for the given relay.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send dials the relay and delivers one message. The context deadline is
// honored by racing the dial against ctx.Done.
func (sender *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	message := gomail.NewMessage()
	message.SetHeader("From", sender.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", subject)
	message.SetBody("text/html", htmlBody)

	done := make(chan error, 1)
	go func() {
		done <- sender.dialer.DialAndSend(message)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("mail: sending to %s: %w", to, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mail: sending to %s: %w", to, err)
		}
		return nil
	}
}

// LoginCodeBody renders the HTML body for a one-time login code email.
func LoginCodeBody(code string, validMinutes int) string {
	return fmt.Sprintf(
		`<p>Your Ace Job Agency verification code is:</p>
<h2 style="letter-spacing: 4px;">%s</h2>
<p>This code expires in %d minutes. If you did not try to sign in, you can ignore this email.</p>`,
		code, validMinutes)
}

// PasswordResetBody renders the HTML body for a password reset email.
func PasswordResetBody(resetLink string, validHours int) string {
	return fmt.Sprintf(
		`<p>We received a request to reset your Ace Job Agency password.</p>
<p><a href="%s">Reset your password</a></p>
<p>This link expires in %d hour(s). If you did not request a reset, no action is needed.</p>`,
		resetLink, validHours)
}
