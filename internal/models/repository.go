package models

import "context"

// LockLedger is the read side of the lock table used by the reconciler.
type LockLedger interface {
	GetLockEntries(ctx context.Context, walletAddress string) ([]*LockEntry, error)
}

type Repository interface {
	LockLedger

	// UpsertLockEntry writes the lock for (wallet, token), replacing an older one.
	UpsertLockEntry(ctx context.Context, entry *LockEntry) error

	AddClaimHistory(ctx context.Context, entry *ClaimHistoryEntry) error
	GetClaimHistory(ctx context.Context, walletAddress string, limit int) ([]*ClaimHistoryEntry, error)
	GetClaimHistoryByHash(ctx context.Context, transactionHash string) (*ClaimHistoryEntry, error)

	// GetLatestPayoutConfig returns ErrNotFound when no config was ever stored.
	GetLatestPayoutConfig(ctx context.Context) (*PayoutConfig, error)
	AddPayoutConfig(ctx context.Context, config *PayoutConfig) error

	// GetUser returns ErrNotFound for unknown addresses.
	GetUser(ctx context.Context, address string) (*User, error)
	UpsertUser(ctx context.Context, user *User) error

	Close() error
}
