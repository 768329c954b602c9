package notificator

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

type EmailNotificator struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	SMTPAuth smtp.Auth

	// sendMail is smtp.SendMail, replaced in tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotificator(SMTPHost string, SMTPPort int, SMTPUser, SMTPPassword, SMTPSender string) *EmailNotificator {
	var auth smtp.Auth
	if SMTPUser != "" {
		auth = smtp.PlainAuth("", SMTPUser, SMTPPassword, SMTPHost)
	}

	return &EmailNotificator{
		SMTPAuth:     auth,
		SMTPHost:     SMTPHost,
		SMTPPort:     SMTPPort,
		SMTPUser:     SMTPUser,
		SMTPPassword: SMTPPassword,
		SMTPSender:   SMTPSender,
		sendMail:     smtp.SendMail,
	}
}

func (e *EmailNotificator) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(e.SMTPHost, strconv.Itoa(e.SMTPPort))
	msg := e.buildMessage(to, subject, body, time.Now())
	if err := e.sendMail(addr, e.SMTPAuth, e.SMTPSender, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func (e *EmailNotificator) buildMessage(to, subject, body string, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.SMTPSender)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", headerSafe(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
