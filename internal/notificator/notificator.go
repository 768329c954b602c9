package notificator

import (
	"context"
	"runtime/debug"

	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
)

// AlertSender delivers operator alerts. Implemented by TelegramNotificator.
type AlertSender interface {
	SendAlert(ctx context.Context, message string) error
}

// EmailSender delivers holder emails. Implemented by EmailNotificator.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Notificator routes notifications by kind: claim receipts go to the holder's
// email, everything else to the admin telegram chat. Either channel may be nil.
type Notificator struct {
	logger *logger.Logger

	Alerts AlertSender
	Emails EmailSender
}

func NewNotificator(logger *logger.Logger, alerts AlertSender, emails EmailSender) *Notificator {
	return &Notificator{logger: logger, Alerts: alerts, Emails: emails}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func() error, context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	if err := fn(); err != nil {
		n.logger.Error("Failed to send notification", "context", context, "error", err)
	}
}

func (n *Notificator) SendNotification(ctx context.Context, notification *models.Notification) {
	switch notification.Kind {
	case models.NotificationClaimReceipt:
		if n.Emails == nil || notification.Email == "" {
			n.logger.Debug("Skipping claim receipt", "wallet", notification.Wallet, "email_configured", n.Emails != nil)
			return
		}
		n.safeCall(func() error {
			return n.Emails.SendEmail(ctx, notification.Email, notification.Subject, notification.Message)
		}, "emailNotification")
	default:
		if n.Alerts == nil {
			n.logger.Warn("Admin alert dropped, telegram is not configured", "kind", notification.Kind, "subject", notification.Subject)
			return
		}
		message := notification.String()
		n.safeCall(func() error { return n.Alerts.SendAlert(ctx, message) }, "telegramNotification")
	}
}
