package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// EmailSender delivers one email. Failures are the caller's to log; the
// core never retries.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends plain-text mail through a configured relay.
type SMTPSender struct {
	addr   string // host:port
	from   string
	auth   smtp.Auth
	logger *zap.Logger
}

// NewSMTPSender builds a sender. Username may be empty for relays that
// accept unauthenticated local submission.
func NewSMTPSender(host string, port int, username, password, from string, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr:   fmt.Sprintf("%s:%d", host, port),
		from:   from,
		auth:   auth,
		logger: logger,
	}
}

// Send delivers one message. The context bounds the overall attempt only in
// so far as the caller's deadline has not already expired; smtp.SendMail
// itself connects with the platform default timeout.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	s.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// InvitationBody renders the invitation a new family member receives.
func InvitationBody(memberName, deceasedName, executorName, joinCode string) (subject, body string) {
	subject = fmt.Sprintf("You've been invited to join the %s Family Matter", deceasedName)
	body = fmt.Sprintf(`Dear %s,

My name is Morris. %s has asked me to help coordinate the distribution of
%s's belongings, and they've invited you to be part of this process.

Family Matter is a calm, organized way to handle something that can feel
overwhelming. I'll guide everyone through it: what needs to happen, when,
and how to make sure things are handled fairly and with care.

There's no rush right now. When you're ready, visit app.familymatter.co and
enter your personal join code to get started. It will take just a few
minutes.

Your join code: %s

Warmly,
Morris`, memberName, executorName, deceasedName, joinCode)
	return subject, body
}

// ReminderBody renders the gentle nudge for a member who hasn't joined.
func ReminderBody(memberName, deceasedName, joinCode string, daysSinceInvite int) (subject, body string) {
	subject = fmt.Sprintf("A gentle reminder about the %s Family Matter", deceasedName)
	body = fmt.Sprintf(`Dear %s,

Just a quiet note. The invitation I sent %d days ago to join the process
for %s's belongings is still open, and there's no deadline pressure from
me. Whenever you're ready, your join code is %s.

If anything about this feels unclear, reply and I'll explain.

Warmly,
Morris`, memberName, daysSinceInvite, deceasedName, joinCode)
	return subject, body
}

// AnnouncementBody renders a group announcement.
func AnnouncementBody(deceasedName, message string) (body string) {
	return fmt.Sprintf(`Hello everyone,

An update regarding %s's estate:

%s

Warmly,
Morris`, deceasedName, message)
}
