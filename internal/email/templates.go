package email

import (
	"context"
	"fmt"
	"time"
)

// Sender delivers a single message. SMTPService is the production
// implementation.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// OTPMailer renders the signup and password-reset messages.
type OTPMailer struct {
	sender Sender
	ttl    time.Duration
}

func NewOTPMailer(sender Sender, ttl time.Duration) *OTPMailer {
	return &OTPMailer{sender: sender, ttl: ttl}
}

func (m *OTPMailer) SendSignupOTP(ctx context.Context, to, username, code string) error {
	body := fmt.Sprintf(`Hi %s,

Your EchoBox verification code is:

    %s

This code will expire in %d minutes.

If you didn't sign up, you can safely ignore this email.`, username, code, int(m.ttl.Minutes()))

	return m.sender.Send(ctx, to, "Verify your EchoBox account", body)
}

func (m *OTPMailer) SendResetOTP(ctx context.Context, to, code string) error {
	body := fmt.Sprintf(`Hello!

Your EchoBox password reset code is:

    %s

This code will expire in %d minutes.

If you didn't request a reset, you can safely ignore this email.`, code, int(m.ttl.Minutes()))

	return m.sender.Send(ctx, to, "Reset your EchoBox password", body)
}
