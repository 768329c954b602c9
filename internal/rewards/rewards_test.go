package rewards

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holderrewards/dashboard/internal/claim"
	"github.com/holderrewards/dashboard/internal/config"
	"github.com/holderrewards/dashboard/internal/eligibility"
	"github.com/holderrewards/dashboard/internal/fetcher"
	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/internal/repository"
	"github.com/holderrewards/dashboard/pkg/logger"
)

const (
	wallet = "0x00000000000000000000000000000000000000000000000000000000000000aa"
	admin  = "0x00000000000000000000000000000000000000000000000000000000000000ad"
)

type stubSource struct {
	calls  int32
	tokens []*models.Token
	err    error
}

func (s *stubSource) FetchAll(ctx context.Context, owner string) ([]*models.Token, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.tokens, s.err
}

type staticResolver struct{}

func (staticResolver) Resolve(_ context.Context, uri string) string { return "https://img/" + uri }

type recordingNotificator struct {
	mu   sync.Mutex
	sent []*models.Notification
}

func (r *recordingNotificator) SendNotification(_ context.Context, n *models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotificator) kinds() []models.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.NotificationKind, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Kind)
	}
	return out
}

type stubEscrow struct {
	status *models.EscrowStatus
}

func (s *stubEscrow) Status() (*models.EscrowStatus, bool) { return s.status, s.status != nil }

func (s *stubEscrow) Refresh(context.Context) (*models.EscrowStatus, error) {
	return nil, fmt.Errorf("not reachable")
}

type fixture struct {
	rewards     *Rewards
	repo        *repository.MemoryDB
	source      *stubSource
	notificator *recordingNotificator
}

func testConfig() *config.Config {
	return &config.Config{
		AdminAddress:          admin,
		DefaultTokenName:      "APT",
		DefaultPayoutPerToken: decimal.RequireFromString("0.1"),
		LockDuration:          claim.DefaultLockDuration,
		SnapshotCacheSize:     16,
		SnapshotTTL:           time.Minute,
	}
}

func newFixture(t *testing.T, source *stubSource, escrow EscrowMonitor) *fixture {
	t.Helper()
	cfg := testConfig()
	log := logger.NewNop()
	repo := repository.NewMemoryDB()
	notificator := &recordingNotificator{}

	submitter := claim.NewSubmitter(repo, claim.Options{
		Function:              "0xcafe::rewards::claim",
		DefaultTokenName:      cfg.DefaultTokenName,
		DefaultPayoutPerToken: cfg.DefaultPayoutPerToken,
		LockDuration:          cfg.LockDuration,
	}, log)
	reconciler := eligibility.NewReconciler(staticResolver{}, repo, log)

	r, err := NewRewards(repo, source, reconciler, submitter, escrow, notificator, log, cfg)
	require.NoError(t, err)
	return &fixture{rewards: r, repo: repo, source: source, notificator: notificator}
}

func ownedTokens(ids ...string) []*models.Token {
	out := make([]*models.Token, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.Token{TokenID: id, Name: "NFT " + id})
	}
	return out
}

func verify(t *testing.T, repo *repository.MemoryDB) {
	require.NoError(t, repo.UpsertUser(context.Background(), &models.User{Address: wallet, Email: "holder@example.com", EmailVerified: true}))
}

func TestFetchEligibility(t *testing.T) {
	f := newFixture(t, &stubSource{tokens: ownedTokens("0x1", "0x2", "0x3")}, nil)
	ctx := context.Background()
	require.NoError(t, f.repo.UpsertLockEntry(ctx, &models.LockEntry{WalletAddress: wallet, TokenID: "0x2", UnlockDate: time.Now().Add(time.Hour), TransactionHash: "0xh"}))

	view, err := f.rewards.FetchEligibility(ctx, "0xAA")
	require.NoError(t, err)
	assert.Equal(t, wallet, view.Wallet)
	assert.Len(t, view.NFTs, 3)
	assert.Equal(t, 2, view.EligibleCount)
	assert.Equal(t, "0.20", view.ClaimableAmount.StringFixed(2))
	assert.Equal(t, "APT", view.TokenName)
	assert.Empty(t, view.Notice)
	assert.False(t, view.Demo)

	claimable, err := f.rewards.GetClaimableAmount(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "0.20", claimable.Amount.StringFixed(2))
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.source.calls), "claimable amount is served from the snapshot")

	view.NFTs[0].Name = "mutated"
	again, ok := f.rewards.snapshots.get(wallet)
	require.True(t, ok)
	assert.Equal(t, "NFT 0x1", again.NFTs[0].Name)
}

func TestFetchEligibility_InvalidAddress(t *testing.T) {
	f := newFixture(t, &stubSource{}, nil)
	_, err := f.rewards.FetchEligibility(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, models.ErrInvalidAddress)
}

func TestFetchEligibility_Notices(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, &stubSource{tokens: []*models.Token{}}, nil)
	view, err := f.rewards.FetchEligibility(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, NoticeNothingFound, view.Notice)
	assert.Empty(t, view.NFTs)

	f = newFixture(t, &stubSource{tokens: fetcher.DemoTokens()}, nil)
	view, err = f.rewards.FetchEligibility(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, NoticeDemo, view.Notice)
	assert.True(t, view.Demo)
	assert.NotEmpty(t, view.NFTs)
	assert.Zero(t, view.EligibleCount)
	assert.True(t, view.ClaimableAmount.IsZero(), view.ClaimableAmount.String())

	failure := fmt.Errorf("%w: indexer, node, sdk", models.ErrTotalFetchFailure)
	f = newFixture(t, &stubSource{tokens: fetcher.DemoTokens(), err: failure}, nil)
	view, err = f.rewards.FetchEligibility(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, NoticeSourcesDown, view.Notice)
	assert.Zero(t, view.EligibleCount)
	assert.True(t, view.ClaimableAmount.IsZero())

	claimable, err := f.rewards.GetClaimableAmount(ctx, wallet)
	require.NoError(t, err)
	assert.True(t, claimable.Amount.IsZero(), "demo tokens are never claimable")

	f = newFixture(t, &stubSource{err: failure}, nil)
	_, err = f.rewards.FetchEligibility(ctx, wallet)
	assert.ErrorIs(t, err, models.ErrTotalFetchFailure)
}

func TestSnapshotCache_LatestFetchWins(t *testing.T) {
	cache, err := newSnapshotCache(4, time.Minute)
	require.NoError(t, err)

	oldGen, oldCtx, oldDone := cache.begin(context.Background(), wallet)
	newGen, _, newDone := cache.begin(context.Background(), wallet)
	defer newDone()
	assert.Greater(t, newGen, oldGen)
	assert.ErrorIs(t, oldCtx.Err(), context.Canceled, "a newer fetch cancels the older one")

	assert.True(t, cache.store(wallet, newGen, &models.EligibilityView{Wallet: wallet, EligibleCount: 2}))
	assert.False(t, cache.store(wallet, oldGen, &models.EligibilityView{Wallet: wallet, EligibleCount: 7}))
	oldDone()

	view, ok := cache.get(wallet)
	require.True(t, ok)
	assert.Equal(t, 2, view.EligibleCount)

	staleGen, _, staleDone := cache.begin(context.Background(), wallet)
	defer staleDone()
	cache.invalidate(wallet)
	_, ok = cache.get(wallet)
	assert.False(t, ok)
	assert.False(t, cache.store(wallet, staleGen, &models.EligibilityView{Wallet: wallet}), "fetches started before invalidation are discarded")

	purgedGen, _, purgedDone := cache.begin(context.Background(), "0xbb")
	defer purgedDone()
	cache.purge()
	assert.False(t, cache.store("0xbb", purgedGen, &models.EligibilityView{}))

	nextGen, _, nextDone := cache.begin(context.Background(), "0xbb")
	defer nextDone()
	assert.Greater(t, nextGen, cache.floor)
	assert.True(t, cache.store("0xbb", nextGen, &models.EligibilityView{}), "fetches started after a purge are kept")
}

func TestSnapshotCache_TTL(t *testing.T) {
	cache, err := newSnapshotCache(4, time.Minute)
	require.NoError(t, err)
	now := time.Now()
	cache.now = func() time.Time { return now }

	gen, _, done := cache.begin(context.Background(), wallet)
	defer done()
	require.True(t, cache.store(wallet, gen, &models.EligibilityView{}))

	now = now.Add(2 * time.Minute)
	_, ok := cache.get(wallet)
	assert.False(t, ok)
}

func TestSubmitClaim(t *testing.T) {
	f := newFixture(t, &stubSource{tokens: ownedTokens("0x1", "0x2")}, nil)
	verify(t, f.repo)
	ctx := context.Background()

	_, err := f.rewards.FetchEligibility(ctx, wallet)
	require.NoError(t, err)

	prep, err := f.rewards.PrepareClaim(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x1", "0x2"}, prep.TokenIDs)
	assert.Equal(t, "0xcafe::rewards::claim", prep.Payload.Function)

	signer := models.SignerFunc(func(_ context.Context, p *models.TransactionPayload) (*models.TransactionResult, error) {
		return &models.TransactionResult{Hash: "0xclaim"}, nil
	})
	result, err := f.rewards.SubmitClaim(ctx, wallet, signer)
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, "0.20", result.Amount.StringFixed(2))

	claimable, err := f.rewards.GetClaimableAmount(ctx, wallet)
	require.NoError(t, err)
	assert.Zero(t, claimable.EligibleCount, "the snapshot is refreshed after a claim")

	require.Eventually(t, func() bool {
		return len(f.notificator.kinds()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []models.NotificationKind{models.NotificationClaimReceipt}, f.notificator.kinds())

	history, err := f.rewards.GetClaimHistory(ctx, wallet, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "0xclaim", history[0].TransactionHash)

	_, err = f.rewards.SubmitClaim(ctx, wallet, signer)
	assert.ErrorIs(t, err, models.ErrNothingToClaim)
}

func TestSubmitClaim_ReplayedHash(t *testing.T) {
	f := newFixture(t, &stubSource{tokens: ownedTokens("0x1")}, nil)
	verify(t, f.repo)
	ctx := context.Background()

	signer := models.SignerFunc(func(context.Context, *models.TransactionPayload) (*models.TransactionResult, error) {
		return &models.TransactionResult{Hash: "0xold"}, nil
	})
	_, err := f.rewards.SubmitClaim(ctx, wallet, signer)
	require.NoError(t, err)

	f.source.tokens = ownedTokens("0x1", "0x2")
	result, err := f.rewards.SubmitClaim(ctx, wallet, signer)
	assert.ErrorIs(t, err, models.ErrClaimAlreadyRecorded)
	assert.False(t, result.Success())

	history, err := f.rewards.GetClaimHistory(ctx, wallet, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	claimable, err := f.rewards.GetClaimableAmount(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, 1, claimable.EligibleCount, "0x2 stays claimable")
}

func TestSubmitClaim_Rejected(t *testing.T) {
	f := newFixture(t, &stubSource{tokens: ownedTokens("0x1")}, nil)
	verify(t, f.repo)

	signer := models.SignerFunc(func(context.Context, *models.TransactionPayload) (*models.TransactionResult, error) {
		return nil, fmt.Errorf("user rejected")
	})
	result, err := f.rewards.SubmitClaim(context.Background(), wallet, signer)
	assert.ErrorIs(t, err, models.ErrClaimTransactionFailed)
	assert.False(t, result.Success())
	assert.Empty(t, f.notificator.kinds())
}

func TestSubmitClaim_DemoDataIsNotClaimable(t *testing.T) {
	f := newFixture(t, &stubSource{tokens: fetcher.DemoTokens()}, nil)
	verify(t, f.repo)

	_, err := f.rewards.PrepareClaim(context.Background(), wallet)
	assert.ErrorIs(t, err, models.ErrNothingToClaim)
}

func TestPayoutConfig(t *testing.T) {
	f := newFixture(t, &stubSource{tokens: ownedTokens("0x1", "0x2", "0x3")}, nil)
	ctx := context.Background()

	payout, err := f.rewards.GetPayoutConfig(ctx)
	require.NoError(t, err)
	assert.True(t, payout.Default)
	assert.Equal(t, "APT", payout.TokenName)

	_, err = f.rewards.SetPayoutConfig(ctx, wallet, "MKY", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, models.ErrNotAdmin)
	_, err = f.rewards.SetPayoutConfig(ctx, admin, "MKY", decimal.Zero)
	assert.ErrorIs(t, err, models.ErrInvalidPayout)

	view, err := f.rewards.FetchEligibility(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "0.30", view.ClaimableAmount.StringFixed(2))

	payout, err = f.rewards.SetPayoutConfig(ctx, "0xad", "MKY", decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.False(t, payout.Default)
	assert.Equal(t, admin, payout.CreatedBy)

	claimable, err := f.rewards.GetClaimableAmount(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "4.50", claimable.Amount.StringFixed(2))
	assert.Equal(t, "MKY", claimable.TokenName)
}

func TestRegisterEmail(t *testing.T) {
	f := newFixture(t, &stubSource{}, nil)
	ctx := context.Background()

	user, err := f.rewards.GetUser(ctx, wallet)
	require.NoError(t, err)
	assert.False(t, user.EmailVerified)
	assert.Empty(t, user.Email)

	_, err = f.rewards.RegisterEmail(ctx, wallet, "not an email")
	assert.ErrorIs(t, err, models.ErrInvalidEmail)

	user, err = f.rewards.RegisterEmail(ctx, wallet, "Holder <holder@example.com>")
	require.NoError(t, err)
	assert.Equal(t, "holder@example.com", user.Email)
	assert.False(t, user.EmailVerified)

	// The external verifier flips the flag
	require.NoError(t, f.repo.UpsertUser(ctx, &models.User{Address: wallet, Email: "holder@example.com", EmailVerified: true}))

	user, err = f.rewards.RegisterEmail(ctx, wallet, "HOLDER@example.com")
	require.NoError(t, err)
	assert.True(t, user.EmailVerified, "same email keeps verification")

	user, err = f.rewards.RegisterEmail(ctx, wallet, "other@example.com")
	require.NoError(t, err)
	assert.False(t, user.EmailVerified, "a new email must be verified again")
}

func TestEscrowStatus(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, &stubSource{}, nil)
	_, err := f.rewards.EscrowStatus(ctx, wallet)
	assert.ErrorIs(t, err, models.ErrNotAdmin)
	_, err = f.rewards.EscrowStatus(ctx, admin)
	assert.ErrorIs(t, err, models.ErrEscrowNotConfigured)

	status := &models.EscrowStatus{Address: "0xee", Balance: decimal.NewFromInt(12)}
	f = newFixture(t, &stubSource{}, &stubEscrow{status: status})
	got, err := f.rewards.EscrowStatus(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, "12", got.Balance.String())
}
