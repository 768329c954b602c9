package notificator

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
)

type fakeAlerts struct {
	messages []string
	panics   bool
}

func (f *fakeAlerts) SendAlert(_ context.Context, message string) error {
	if f.panics {
		panic("telegram client exploded")
	}
	f.messages = append(f.messages, message)
	return nil
}

type fakeEmails struct {
	to, subjects []string
	err          error
}

func (f *fakeEmails) SendEmail(_ context.Context, to, subject, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.subjects = append(f.subjects, subject)
	return nil
}

func TestSendNotification_RoutesByKind(t *testing.T) {
	alerts := &fakeAlerts{}
	emails := &fakeEmails{}
	n := NewNotificator(logger.NewNop(), alerts, emails)
	ctx := context.Background()

	n.SendNotification(ctx, &models.Notification{Kind: models.NotificationClaimReceipt, Wallet: "0x1", Email: "holder@example.com", Subject: "You claimed 0.20 APT"})
	n.SendNotification(ctx, &models.Notification{Kind: models.NotificationBookkeeping, Wallet: "0x1", Subject: "Claim recorded partially", Message: "Missing locks: 0x2"})
	n.SendNotification(ctx, &models.Notification{Kind: models.NotificationEscrowLow, Subject: "Escrow balance is low"})

	assert.Equal(t, []string{"holder@example.com"}, emails.to)
	assert.Equal(t, []string{"You claimed 0.20 APT"}, emails.subjects)
	require.Len(t, alerts.messages, 2)
	assert.Contains(t, alerts.messages[0], "[bookkeeping_failure] Claim recorded partially (0x1)")
	assert.True(t, strings.HasPrefix(alerts.messages[1], "[escrow_low]"))
}

func TestSendNotification_MissingChannels(t *testing.T) {
	n := NewNotificator(logger.NewNop(), nil, nil)
	assert.NotPanics(t, func() {
		n.SendNotification(context.Background(), &models.Notification{Kind: models.NotificationClaimReceipt, Email: "holder@example.com"})
		n.SendNotification(context.Background(), &models.Notification{Kind: models.NotificationEscrowLow})
	})
}

func TestSendNotification_Failures(t *testing.T) {
	emails := &fakeEmails{err: errors.New("connection refused")}
	n := NewNotificator(logger.NewNop(), &fakeAlerts{panics: true}, emails)
	assert.NotPanics(t, func() {
		n.SendNotification(context.Background(), &models.Notification{Kind: models.NotificationClaimReceipt, Email: "holder@example.com"})
		n.SendNotification(context.Background(), &models.Notification{Kind: models.NotificationBookkeeping})
	})
}

func TestSendNotification_ReceiptWithoutEmail(t *testing.T) {
	emails := &fakeEmails{}
	n := NewNotificator(logger.NewNop(), nil, emails)
	n.SendNotification(context.Background(), &models.Notification{Kind: models.NotificationClaimReceipt, Wallet: "0x1"})
	assert.Empty(t, emails.to)
}

func TestEmailNotificator_SendEmail(t *testing.T) {
	e := NewEmailNotificator("smtp.example.com", 587, "user", "secret", "rewards@example.com")
	require.NotNil(t, e.SMTPAuth)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	e.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, e.SendEmail(context.Background(), "holder@example.com", "You claimed\r\nBcc: x", "line one\nline two"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "rewards@example.com", gotFrom)
	assert.Equal(t, []string{"holder@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: You claimed  Bcc: x\r\n")
	assert.Contains(t, msg, "To: holder@example.com\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline one\r\nline two"))
}

func TestEmailNotificator_Errors(t *testing.T) {
	e := NewEmailNotificator("localhost", 25, "", "", "rewards@example.com")
	assert.Nil(t, e.SMTPAuth)

	e.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("554 rejected") }
	err := e.SendEmail(context.Background(), "holder@example.com", "s", "b")
	assert.ErrorContains(t, err, "554 rejected")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.SendEmail(ctx, "holder@example.com", "s", "b"), context.Canceled)
}

func TestBuildMessage_Date(t *testing.T) {
	e := NewEmailNotificator("localhost", 25, "", "", "rewards@example.com")
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	msg := string(e.buildMessage("a@example.com", "s", "b", now))
	assert.Contains(t, msg, "Date: Mon, 04 May 2026 10:00:00 +0000\r\n")
}
