package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RewardsI is the application service the HTTP API serves.
type RewardsI interface {
	FetchEligibility(ctx context.Context, wallet string) (*EligibilityView, error)
	GetClaimableAmount(ctx context.Context, wallet string) (*ClaimableView, error)
	PrepareClaim(ctx context.Context, wallet string) (*ClaimPreparation, error)
	SubmitClaim(ctx context.Context, wallet string, signer Signer) (*ClaimResult, error)
	GetClaimHistory(ctx context.Context, wallet string, limit int) ([]*ClaimHistoryEntry, error)

	GetPayoutConfig(ctx context.Context) (*PayoutView, error)
	SetPayoutConfig(ctx context.Context, admin, tokenName string, payoutPerToken decimal.Decimal) (*PayoutView, error)

	GetUser(ctx context.Context, address string) (*User, error)
	RegisterEmail(ctx context.Context, address, email string) (*User, error)

	EscrowStatus(ctx context.Context, admin string) (*EscrowStatus, error)
}

// EligibilityView is what the dashboard shows for one wallet.
type EligibilityView struct {
	Wallet          string          `json:"wallet"`
	NFTs            []*DisplayNFT   `json:"nfts"`
	EligibleCount   int             `json:"eligible_count"`
	ClaimableAmount decimal.Decimal `json:"claimable_amount"`
	TokenName       string          `json:"token_name"`
	PayoutPerToken  decimal.Decimal `json:"payout_per_token"`
	// Notice is the single user facing message about the fetch, if any
	Notice     string    `json:"notice,omitempty"`
	Demo       bool      `json:"demo"`
	Generation uint64    `json:"generation"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Clone returns a deep copy of the view.
func (v *EligibilityView) Clone() *EligibilityView {
	c := *v
	c.NFTs = make([]*DisplayNFT, len(v.NFTs))
	for i, n := range v.NFTs {
		c.NFTs[i] = n.Clone()
	}
	return &c
}

type ClaimableView struct {
	Wallet        string          `json:"wallet"`
	EligibleCount int             `json:"eligible_count"`
	Amount        decimal.Decimal `json:"amount"`
	TokenName     string          `json:"token_name"`
}

// ClaimPreparation is the transaction the wallet must sign to claim.
type ClaimPreparation struct {
	Payload   *TransactionPayload `json:"payload"`
	TokenIDs  []string            `json:"token_ids"`
	Amount    decimal.Decimal     `json:"amount"`
	TokenName string              `json:"token_name"`
}

// PayoutView is the effective payout rate.
type PayoutView struct {
	TokenName      string          `json:"token_name"`
	PayoutPerToken decimal.Decimal `json:"payout_per_token"`
	CreatedBy      string          `json:"created_by,omitempty"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
	// Default is set when no payout was configured and defaults apply
	Default bool `json:"default"`
}

type ClaimState string

const (
	ClaimIdle       ClaimState = "idle"
	ClaimSubmitting ClaimState = "submitting"
	ClaimConfirmed  ClaimState = "confirmed"
	ClaimFailed     ClaimState = "failed"
)

// ClaimResult describes one claim attempt. A claim succeeded when its
// transaction was confirmed, whatever happened to the bookkeeping afterwards.
type ClaimResult struct {
	State           ClaimState      `json:"state"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	TokenName       string          `json:"token_name"`
	TokenIDs        []string        `json:"token_ids"`
	UnlockDate      time.Time       `json:"unlock_date"`
	FailedLocks     []string        `json:"failed_locks,omitempty"`
	HistoryRecorded bool            `json:"history_recorded"`
	Warnings        []string        `json:"warnings,omitempty"`
}

func (r *ClaimResult) Success() bool {
	return r.State == ClaimConfirmed
}

// BookkeepingFailed reports whether a confirmed claim was only partly recorded.
func (r *ClaimResult) BookkeepingFailed() bool {
	return r.Success() && (len(r.FailedLocks) > 0 || !r.HistoryRecorded)
}

// EscrowStatus is the last observed balance of the escrow wallet.
type EscrowStatus struct {
	Address    string          `json:"address"`
	CoinType   string          `json:"coin_type"`
	Octas      uint64          `json:"octas"`
	Balance    decimal.Decimal `json:"balance"`
	MinBalance decimal.Decimal `json:"min_balance"`
	Low        bool            `json:"low"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// APIServer is the HTTP surface of the dashboard.
type APIServer interface {
	Start()
	Shutdown() error
}
