package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/holderrewards/dashboard/internal/blockchain"
	"github.com/holderrewards/dashboard/internal/eligibility"
	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
)

// DefaultLockDuration is how long a claimed token stays locked.
const DefaultLockDuration = 30 * 24 * time.Hour

// Submitter sends the claim transaction and records its outcome.
type Submitter struct {
	logger *logger.Logger
	repo   models.Repository
	opts   Options
	now    func() time.Time
}

func NewSubmitter(repo models.Repository, opts Options, logger *logger.Logger) *Submitter {
	if opts.LockDuration <= 0 {
		opts.LockDuration = DefaultLockDuration
	}
	return &Submitter{logger: logger, repo: repo, opts: opts, now: time.Now}
}

// WithClock replaces the clock used for unlock dates and history timestamps.
func (s *Submitter) WithClock(now func() time.Time) *Submitter {
	s.now = now
	return s
}

// Payout returns the effective token name and rate. A failed read falls back
// to the configured defaults.
func (s *Submitter) Payout(ctx context.Context) (string, decimal.Decimal) {
	config, err := s.repo.GetLatestPayoutConfig(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("Failed to read payout config, using defaults", "error", err)
		}
		return s.opts.DefaultTokenName, s.opts.DefaultPayoutPerToken
	}
	return config.TokenName, config.PayoutPerToken
}

// Payload builds the claim transaction for the given token ids.
func (s *Submitter) Payload(tokenIDs []string) *models.TransactionPayload {
	return blockchain.BuildClaimPayload(s.opts.Function, s.opts.CoinType, tokenIDs)
}

// CheckPreconditions returns the eligible NFTs, or a precondition error when
// the wallet cannot claim.
func (s *Submitter) CheckPreconditions(ctx context.Context, wallet string, nfts []*models.DisplayNFT) ([]*models.DisplayNFT, error) {
	eligible := eligibility.Eligible(nfts)
	if len(eligible) == 0 {
		return nil, models.ErrNothingToClaim
	}

	user, err := s.repo.GetUser(ctx, wallet)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil, models.ErrEmailNotVerified
	case err != nil:
		return nil, fmt.Errorf("failed to check email verification: %w", err)
	case !user.EmailVerified:
		return nil, models.ErrEmailNotVerified
	}
	return eligible, nil
}

// SubmitClaim claims rewards for every eligible NFT in one transaction. When
// the transaction fails nothing is written. Once it is confirmed each lock and
// the history entry are written independently and failures become warnings.
func (s *Submitter) SubmitClaim(ctx context.Context, wallet string, nfts []*models.DisplayNFT, signer models.Signer) (*models.ClaimResult, error) {
	result := &models.ClaimResult{State: models.ClaimIdle}

	eligible, err := s.CheckPreconditions(ctx, wallet, nfts)
	if err != nil {
		return result, err
	}

	tokenIDs := make([]string, len(eligible))
	for i, n := range eligible {
		tokenIDs[i] = n.TokenID
	}
	tokenName, rate := s.Payout(ctx)
	result.TokenName = tokenName
	result.TokenIDs = tokenIDs
	result.Amount = eligibility.ClaimableAmount(eligible, rate)

	result.State = models.ClaimSubmitting
	s.logger.Info("Submitting claim", "wallet", wallet, "tokens", len(tokenIDs), "amount", result.Amount.StringFixed(2), "token", tokenName)

	tx, err := signer.SignAndSubmitTransaction(ctx, s.Payload(tokenIDs))
	if err != nil {
		result.State = models.ClaimFailed
		s.logger.Warn("Claim transaction failed", "wallet", wallet, "error", err)
		return result, fmt.Errorf("%w: %v", models.ErrClaimTransactionFailed, err)
	}
	if tx == nil || tx.Hash == "" {
		result.State = models.ClaimFailed
		s.logger.Warn("Claim transaction returned no hash", "wallet", wallet)
		return result, fmt.Errorf("%w: no transaction hash", models.ErrClaimTransactionFailed)
	}

	if _, err := s.repo.GetClaimHistoryByHash(ctx, tx.Hash); err == nil {
		result.State = models.ClaimFailed
		s.logger.Warn("Claim transaction was already recorded", "wallet", wallet, "hash", tx.Hash)
		return result, fmt.Errorf("transaction %s: %w", tx.Hash, models.ErrClaimAlreadyRecorded)
	} else if !errors.Is(err, models.ErrNotFound) {
		result.State = models.ClaimFailed
		return result, fmt.Errorf("failed to check claim history: %w", err)
	}

	// Only the tokens the transaction carried are claimed
	if tx.TokenIDs != nil {
		eligible = carriedBy(eligible, tx.TokenIDs)
		if len(eligible) == 0 {
			result.State = models.ClaimFailed
			s.logger.Warn("Claim transaction carries no eligible token", "wallet", wallet, "hash", tx.Hash, "tokens", tx.TokenIDs)
			return result, fmt.Errorf("%w: transaction %s claims no eligible token", models.ErrClaimTransactionFailed, tx.Hash)
		}
		tokenIDs = make([]string, len(eligible))
		for i, n := range eligible {
			tokenIDs[i] = n.TokenID
		}
		result.TokenIDs = tokenIDs
		result.Amount = eligibility.ClaimableAmount(eligible, rate)
	}

	result.State = models.ClaimConfirmed
	result.TransactionHash = tx.Hash

	// The claim is on chain; record it even if the caller goes away
	writeCtx := context.WithoutCancel(ctx)

	now := s.now()
	result.UnlockDate = now.Add(s.opts.LockDuration)
	for _, id := range tokenIDs {
		entry := &models.LockEntry{
			WalletAddress:   wallet,
			TokenID:         id,
			UnlockDate:      result.UnlockDate,
			TransactionHash: tx.Hash,
		}
		if err := s.repo.UpsertLockEntry(writeCtx, entry); err != nil {
			s.logger.Error("Failed to record token lock", "wallet", wallet, "token", id, "hash", tx.Hash, "error", err)
			result.FailedLocks = append(result.FailedLocks, id)
		}
	}
	if len(result.FailedLocks) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"claim confirmed but %d of %d token locks were not recorded; these tokens may show as eligible, please refresh",
			len(result.FailedLocks), len(tokenIDs)))
	}

	history := &models.ClaimHistoryEntry{
		ID:              uuid.NewString(),
		WalletAddress:   wallet,
		TokenName:       tokenName,
		TokenIDs:        tokenIDs,
		Amount:          result.Amount,
		TransactionHash: tx.Hash,
		Timestamp:       now,
	}
	if err := s.repo.AddClaimHistory(writeCtx, history); errors.Is(err, models.ErrClaimAlreadyRecorded) {
		s.logger.Warn("Claim history was recorded concurrently", "wallet", wallet, "hash", tx.Hash)
		result.Warnings = append(result.Warnings, "claim was already recorded by another request; refresh to see the latest state")
	} else if err != nil {
		s.logger.Error("Failed to record claim history", "wallet", wallet, "hash", tx.Hash, "error", err)
		result.Warnings = append(result.Warnings, "claim confirmed but the claim history was not recorded; refresh to see the latest state")
	} else {
		result.HistoryRecorded = true
	}

	s.logger.Info("Claim confirmed", "wallet", wallet, "hash", tx.Hash, "warnings", len(result.Warnings))
	return result, nil
}

// carriedBy keeps the NFTs whose id is among the given token ids.
func carriedBy(nfts []*models.DisplayNFT, tokenIDs []string) []*models.DisplayNFT {
	carried := make(map[string]struct{}, len(tokenIDs))
	for _, id := range tokenIDs {
		carried[models.TokenKey(id)] = struct{}{}
	}
	var kept []*models.DisplayNFT
	for _, n := range nfts {
		if _, ok := carried[models.TokenKey(n.TokenID)]; ok {
			kept = append(kept, n)
		}
	}
	return kept
}
