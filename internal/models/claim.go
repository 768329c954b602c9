package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClaimHistoryEntry is the append-only audit record of one claimed batch.
type ClaimHistoryEntry struct {
	ID              string          `json:"id" gorm:"column:id;primaryKey;size:36"`
	WalletAddress   string          `json:"wallet_address" gorm:"column:wallet_address;size:66;not null;index"`
	TokenName       string          `json:"token_name" gorm:"column:token_name;size:64;not null"`
	TokenIDs        []string        `json:"token_ids" gorm:"column:token_ids;serializer:json"`
	Amount          decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(30,8);not null"`
	TransactionHash string          `json:"transaction_hash" gorm:"column:transaction_hash;size:66;not null;uniqueIndex"`
	Timestamp       time.Time       `json:"timestamp" gorm:"column:timestamp;not null;index"`
}

func (ClaimHistoryEntry) TableName() string {
	return "claim_history"
}

// PayoutConfig is one revision of the payout rate. The most recently created
// row is the effective one.
type PayoutConfig struct {
	ID             int64           `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	TokenName      string          `json:"token_name" gorm:"column:token_name;size:64;not null"`
	PayoutPerToken decimal.Decimal `json:"payout_per_token" gorm:"column:payout_per_token;type:numeric(30,8);not null"`
	CreatedBy      string          `json:"created_by" gorm:"column:created_by;size:66"`
	CreatedAt      time.Time       `json:"created_at" gorm:"column:created_at;not null;index"`
}

func (PayoutConfig) TableName() string {
	return "token_payouts"
}

// User holds the email verification state of a wallet.
type User struct {
	Address       string    `json:"address" gorm:"column:address;primaryKey;size:66"`
	Email         string    `json:"email" gorm:"column:email;size:320"`
	EmailVerified bool      `json:"email_verified" gorm:"column:email_verified;not null;default:false"`
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
