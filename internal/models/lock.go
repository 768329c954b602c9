package models

import "time"

// LockEntry records that a token was used in a claim and cannot be claimed
// again before UnlockDate. One row per wallet and token.
type LockEntry struct {
	ID              int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	WalletAddress   string    `json:"wallet_address" gorm:"column:wallet_address;size:66;not null;uniqueIndex:idx_nft_claims_wallet_token"`
	TokenID         string    `json:"token_id" gorm:"column:token_id;size:255;not null;uniqueIndex:idx_nft_claims_wallet_token"`
	UnlockDate      time.Time `json:"unlock_date" gorm:"column:unlock_date;not null;index"`
	TransactionHash string    `json:"transaction_hash" gorm:"column:transaction_hash;size:66;not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (LockEntry) TableName() string {
	return "nft_claims"
}

// ActiveAt reports whether the lock still holds at the given time.
func (l *LockEntry) ActiveAt(now time.Time) bool {
	return l.UnlockDate.After(now)
}
