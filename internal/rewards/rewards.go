package rewards

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/holderrewards/dashboard/internal/claim"
	"github.com/holderrewards/dashboard/internal/config"
	"github.com/holderrewards/dashboard/internal/eligibility"
	"github.com/holderrewards/dashboard/internal/fetcher"
	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
	"github.com/holderrewards/dashboard/pkg/validation"
)

const (
	NoticeNothingFound = "No NFTs from the collection were found in this wallet."
	NoticeDemo         = "No NFTs were found, showing demo NFTs."
	NoticeSourcesDown  = "NFT data sources are unavailable right now, showing demo NFTs."

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// TokenSource lists the collection tokens a wallet owns.
type TokenSource interface {
	FetchAll(ctx context.Context, owner string) ([]*models.Token, error)
}

// EligibilityReconciler joins tokens with the lock ledger.
type EligibilityReconciler interface {
	Reconcile(ctx context.Context, tokens []*models.Token, wallet string) ([]*models.DisplayNFT, error)
}

// EscrowMonitor exposes the escrow balance.
type EscrowMonitor interface {
	Status() (*models.EscrowStatus, bool)
	Refresh(ctx context.Context) (*models.EscrowStatus, error)
}

// Rewards is the main struct of the dashboard backend. It wires the fetch
// pipeline, the claim submitter and the repository, and serves all business
// logic for the HTTP API.
type Rewards struct {
	logger *logger.Logger
	config *config.Config

	repo        models.Repository
	source      TokenSource
	reconciler  EligibilityReconciler
	submitter   *claim.Submitter
	escrow      EscrowMonitor
	notificator models.NotificationService

	snapshots *snapshotCache
	now       func() time.Time
}

// NewRewards creates a new Rewards instance. escrow and notificator may be nil.
func NewRewards(
	repo models.Repository,
	source TokenSource,
	reconciler EligibilityReconciler,
	submitter *claim.Submitter,
	escrow EscrowMonitor,
	notificator models.NotificationService,
	logger *logger.Logger,
	config *config.Config,
) (*Rewards, error) {
	snapshots, err := newSnapshotCache(config.SnapshotCacheSize, config.SnapshotTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot cache: %w", err)
	}
	return &Rewards{
		logger:      logger,
		config:      config,
		repo:        repo,
		source:      source,
		reconciler:  reconciler,
		submitter:   submitter,
		escrow:      escrow,
		notificator: notificator,
		snapshots:   snapshots,
		now:         time.Now,
	}, nil
}

func normalizeWallet(address string) (string, error) {
	wallet, err := validation.ValidateAndNormalizeAddress(strings.TrimSpace(address))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidAddress, err)
	}
	return wallet, nil
}

// FetchEligibility runs the whole pipeline for wallet and caches the result.
// A newer call for the same wallet cancels this one.
func (r *Rewards) FetchEligibility(ctx context.Context, wallet string) (*models.EligibilityView, error) {
	wallet, err := normalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	gen, fetchCtx, done := r.snapshots.begin(ctx, wallet)
	defer done()

	view, err := r.buildView(fetchCtx, wallet)
	if err != nil {
		return nil, err
	}
	view.Generation = gen

	if !r.snapshots.store(wallet, gen, view) {
		r.logger.Debug("Discarding superseded eligibility snapshot", "wallet", wallet, "generation", gen)
	}
	return view.Clone(), nil
}

func (r *Rewards) buildView(ctx context.Context, wallet string) (*models.EligibilityView, error) {
	tokens, fetchErr := r.source.FetchAll(ctx, wallet)
	notice := ""
	if fetchErr != nil {
		if !errors.Is(fetchErr, models.ErrTotalFetchFailure) || len(tokens) == 0 {
			return nil, fetchErr
		}
		r.logger.Warn("All NFT sources failed, serving demo data", "wallet", wallet, "error", fetchErr)
		notice = NoticeSourcesDown
	}

	demo := fetcher.IsDemo(tokens)
	if demo && notice == "" {
		notice = NoticeDemo
	}
	if len(tokens) == 0 {
		notice = NoticeNothingFound
	}

	nfts, err := r.reconciler.Reconcile(ctx, tokens, wallet)
	if err != nil {
		return nil, err
	}

	tokenName, rate := r.submitter.Payout(ctx)
	eligibleCount, amount := len(eligibility.Eligible(nfts)), eligibility.ClaimableAmount(nfts, rate)
	if demo {
		// Demo NFTs are shown, never claimable
		eligibleCount, amount = 0, decimal.Zero
	}
	return &models.EligibilityView{
		Wallet:          wallet,
		NFTs:            nfts,
		EligibleCount:   eligibleCount,
		ClaimableAmount: amount,
		TokenName:       tokenName,
		PayoutPerToken:  rate,
		Notice:          notice,
		Demo:            demo,
		FetchedAt:       r.now(),
	}, nil
}

// GetClaimableAmount answers from a fresh cached snapshot when there is one.
func (r *Rewards) GetClaimableAmount(ctx context.Context, wallet string) (*models.ClaimableView, error) {
	normalized, err := normalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	view, ok := r.snapshots.get(normalized)
	if !ok {
		view, err = r.FetchEligibility(ctx, normalized)
		if err != nil {
			return nil, err
		}
	}
	amount := view.ClaimableAmount
	if view.Demo {
		amount = decimal.Zero
	}
	return &models.ClaimableView{
		Wallet:        normalized,
		EligibleCount: view.EligibleCount,
		Amount:        amount,
		TokenName:     view.TokenName,
	}, nil
}

// eligibleView fetches a fresh view for a claim. Demo data can never be claimed.
func (r *Rewards) eligibleView(ctx context.Context, wallet string) (*models.EligibilityView, error) {
	view, err := r.FetchEligibility(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if view.Demo {
		return nil, models.ErrNothingToClaim
	}
	return view, nil
}

// PrepareClaim returns the transaction the wallet must sign to claim every
// eligible NFT.
func (r *Rewards) PrepareClaim(ctx context.Context, wallet string) (*models.ClaimPreparation, error) {
	wallet, err := normalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	view, err := r.eligibleView(ctx, wallet)
	if err != nil {
		return nil, err
	}

	eligible, err := r.submitter.CheckPreconditions(ctx, wallet, view.NFTs)
	if err != nil {
		return nil, err
	}
	tokenIDs := make([]string, len(eligible))
	for i, n := range eligible {
		tokenIDs[i] = n.TokenID
	}
	return &models.ClaimPreparation{
		Payload:   r.submitter.Payload(tokenIDs),
		TokenIDs:  tokenIDs,
		Amount:    view.ClaimableAmount,
		TokenName: view.TokenName,
	}, nil
}

// SubmitClaim claims every eligible NFT of wallet through signer.
func (r *Rewards) SubmitClaim(ctx context.Context, wallet string, signer models.Signer) (*models.ClaimResult, error) {
	wallet, err := normalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	view, err := r.eligibleView(ctx, wallet)
	if err != nil {
		return nil, err
	}

	result, err := r.submitter.SubmitClaim(ctx, wallet, view.NFTs, signer)
	if err != nil {
		return result, err
	}

	r.snapshots.invalidate(wallet)
	r.notifyClaim(ctx, wallet, result)
	return result, nil
}

func (r *Rewards) notifyClaim(ctx context.Context, wallet string, result *models.ClaimResult) {
	if r.notificator == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if result.BookkeepingFailed() {
		go r.notificator.SendNotification(ctx, &models.Notification{
			Kind:    models.NotificationBookkeeping,
			Wallet:  wallet,
			Subject: "Claim recorded partially",
			Message: fmt.Sprintf("Transaction %s was confirmed but bookkeeping failed. Missing locks: %s. History recorded: %t.",
				result.TransactionHash, strings.Join(result.FailedLocks, ", "), result.HistoryRecorded),
		})
	}

	user, err := r.repo.GetUser(ctx, wallet)
	if err != nil || !user.EmailVerified || user.Email == "" {
		return
	}
	go r.notificator.SendNotification(ctx, &models.Notification{
		Kind:    models.NotificationClaimReceipt,
		Wallet:  wallet,
		Email:   user.Email,
		Subject: fmt.Sprintf("You claimed %s %s", result.Amount.StringFixed(2), result.TokenName),
		Message: fmt.Sprintf("Your claim for %d NFTs was confirmed in transaction %s. The NFTs can be claimed again after %s.",
			len(result.TokenIDs), result.TransactionHash, result.UnlockDate.UTC().Format(time.RFC1123)),
	})
}

func (r *Rewards) GetClaimHistory(ctx context.Context, wallet string, limit int) ([]*models.ClaimHistoryEntry, error) {
	wallet, err := normalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return r.repo.GetClaimHistory(ctx, wallet, limit)
}

// GetPayoutConfig returns the effective payout, falling back to defaults when
// none was configured.
func (r *Rewards) GetPayoutConfig(ctx context.Context) (*models.PayoutView, error) {
	payout, err := r.repo.GetLatestPayoutConfig(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return &models.PayoutView{
			TokenName:      r.config.DefaultTokenName,
			PayoutPerToken: r.config.DefaultPayoutPerToken,
			Default:        true,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return payoutView(payout), nil
}

// SetPayoutConfig stores a new payout rate. Only the admin wallet may call it.
func (r *Rewards) SetPayoutConfig(ctx context.Context, admin, tokenName string, payoutPerToken decimal.Decimal) (*models.PayoutView, error) {
	if err := r.checkAdmin(admin); err != nil {
		return nil, err
	}
	if !payoutPerToken.IsPositive() {
		return nil, models.ErrInvalidPayout
	}
	tokenName = strings.TrimSpace(tokenName)
	if tokenName == "" {
		tokenName = r.config.DefaultTokenName
	}

	payout := &models.PayoutConfig{
		TokenName:      tokenName,
		PayoutPerToken: payoutPerToken,
		CreatedBy:      validation.NormalizeAddress(admin),
		CreatedAt:      r.now(),
	}
	if err := r.repo.AddPayoutConfig(ctx, payout); err != nil {
		return nil, fmt.Errorf("failed to store payout config: %w", err)
	}

	// Cached claimable amounts used the old rate
	r.snapshots.purge()
	r.logger.Info("Payout config updated", "token", tokenName, "payout_per_token", payoutPerToken.String(), "admin", payout.CreatedBy)
	return payoutView(payout), nil
}

func payoutView(payout *models.PayoutConfig) *models.PayoutView {
	updated := payout.CreatedAt
	return &models.PayoutView{
		TokenName:      payout.TokenName,
		PayoutPerToken: payout.PayoutPerToken,
		CreatedBy:      payout.CreatedBy,
		UpdatedAt:      &updated,
	}
}

func (r *Rewards) checkAdmin(address string) error {
	if r.config.AdminAddress == "" || !validation.SameAddress(address, r.config.AdminAddress) {
		return models.ErrNotAdmin
	}
	return nil
}

// GetUser returns the email status of address. Unknown addresses are reported
// as unverified users without an email.
func (r *Rewards) GetUser(ctx context.Context, address string) (*models.User, error) {
	wallet, err := normalizeWallet(address)
	if err != nil {
		return nil, err
	}
	user, err := r.repo.GetUser(ctx, wallet)
	if errors.Is(err, models.ErrNotFound) {
		return &models.User{Address: wallet}, nil
	}
	return user, err
}

// RegisterEmail sets the email of address. Changing the email clears the
// verification flag, which is set again by the external verifier.
func (r *Rewards) RegisterEmail(ctx context.Context, address, email string) (*models.User, error) {
	wallet, err := normalizeWallet(address)
	if err != nil {
		return nil, err
	}
	parsed, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidEmail, err)
	}

	user, err := r.repo.GetUser(ctx, wallet)
	switch {
	case errors.Is(err, models.ErrNotFound):
		user = &models.User{Address: wallet}
	case err != nil:
		return nil, err
	}

	if !strings.EqualFold(user.Email, parsed.Address) {
		user.Email = parsed.Address
		user.EmailVerified = false
	}
	if err := r.repo.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	return r.repo.GetUser(ctx, wallet)
}

// EscrowStatus returns the escrow balance. Only the admin wallet may call it.
func (r *Rewards) EscrowStatus(ctx context.Context, admin string) (*models.EscrowStatus, error) {
	if err := r.checkAdmin(admin); err != nil {
		return nil, err
	}
	if r.escrow == nil {
		return nil, models.ErrEscrowNotConfigured
	}
	if status, ok := r.escrow.Status(); ok {
		return status, nil
	}
	return r.escrow.Refresh(ctx)
}
