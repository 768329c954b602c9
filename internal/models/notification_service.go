package models

import (
	"context"
	"fmt"
)

type NotificationKind string

const (
	// NotificationClaimReceipt goes to the claiming user.
	NotificationClaimReceipt NotificationKind = "claim_receipt"
	// NotificationBookkeeping alerts admins that a confirmed claim was not fully recorded.
	NotificationBookkeeping NotificationKind = "bookkeeping_failure"
	// NotificationEscrowLow alerts admins that the escrow balance is low.
	NotificationEscrowLow NotificationKind = "escrow_low"
)

type NotificationService interface {
	SendNotification(ctx context.Context, notification *Notification)
}

type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Wallet  string           `json:"wallet"`
	Email   string           `json:"email,omitempty"`
	Subject string           `json:"subject"`
	Message string           `json:"message"`
}

func (n *Notification) String() string {
	if n.Wallet == "" {
		return fmt.Sprintf("[%s] %s\n%s", n.Kind, n.Subject, n.Message)
	}
	return fmt.Sprintf("[%s] %s (%s)\n%s", n.Kind, n.Subject, n.Wallet, n.Message)
}
