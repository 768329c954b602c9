package models

import "errors"

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrTotalFetchFailure means every chain data source failed.
	ErrTotalFetchFailure = errors.New("all NFT data sources failed")

	// ErrNothingToClaim means the wallet has no eligible token.
	ErrNothingToClaim = errors.New("nothing to claim")
	// ErrEmailNotVerified means the wallet has not completed email verification.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrClaimTransactionFailed means the claim transaction was rejected or produced no hash.
	ErrClaimTransactionFailed = errors.New("claim transaction failed")
	// ErrClaimAlreadyRecorded means the transaction hash is already in the claim history.
	ErrClaimAlreadyRecorded = errors.New("claim transaction was already recorded")

	ErrNotAdmin      = errors.New("address is not the admin wallet")
	ErrInvalidPayout = errors.New("payout per token must be greater than zero")

	ErrInvalidAddress      = errors.New("invalid wallet address")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrEscrowNotConfigured = errors.New("escrow monitoring is not configured")
)

// IsClaimPrecondition reports whether err is a claim precondition failure.
func IsClaimPrecondition(err error) bool {
	return errors.Is(err, ErrNothingToClaim) || errors.Is(err, ErrEmailNotVerified)
}
