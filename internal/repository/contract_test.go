package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holderrewards/dashboard/internal/models"
)

const (
	walletA = "0x00000000000000000000000000000000000000000000000000000000000000aa"
	walletB = "0x00000000000000000000000000000000000000000000000000000000000000bb"
)

// runRepositoryContract exercises behaviour every models.Repository must share.
func runRepositoryContract(t *testing.T, repo models.Repository) {
	t.Run("lock entries upsert by wallet and token", func(t *testing.T) {
		ctx := context.Background()
		unlock := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)

		require.NoError(t, repo.UpsertLockEntry(ctx, &models.LockEntry{WalletAddress: walletA, TokenID: "0x1", UnlockDate: unlock, TransactionHash: "0xaaa"}))
		require.NoError(t, repo.UpsertLockEntry(ctx, &models.LockEntry{WalletAddress: walletA, TokenID: "0x2", UnlockDate: unlock, TransactionHash: "0xaaa"}))
		require.NoError(t, repo.UpsertLockEntry(ctx, &models.LockEntry{WalletAddress: walletB, TokenID: "0x1", UnlockDate: unlock, TransactionHash: "0xbbb"}))

		later := unlock.Add(24 * time.Hour)
		require.NoError(t, repo.UpsertLockEntry(ctx, &models.LockEntry{WalletAddress: walletA, TokenID: "0x1", UnlockDate: later, TransactionHash: "0xccc"}))

		entries, err := repo.GetLockEntries(ctx, walletA)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		byToken := map[string]*models.LockEntry{}
		for _, e := range entries {
			byToken[e.TokenID] = e
		}
		assert.True(t, byToken["0x1"].UnlockDate.Equal(later))
		assert.Equal(t, "0xccc", byToken["0x1"].TransactionHash)
		assert.Equal(t, "0xaaa", byToken["0x2"].TransactionHash)

		none, err := repo.GetLockEntries(ctx, "0xdead")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("claim history newest first", func(t *testing.T) {
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Second)
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.AddClaimHistory(ctx, &models.ClaimHistoryEntry{
				ID:              uuid.NewString(),
				WalletAddress:   walletA,
				TokenName:       "APT",
				TokenIDs:        []string{"0x1", "0x2"},
				Amount:          decimal.RequireFromString("0.2"),
				TransactionHash: fmt.Sprintf("0xhash%d", i),
				Timestamp:       base.Add(time.Duration(i) * time.Minute),
			}))
		}

		entries, err := repo.GetClaimHistory(ctx, walletA, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.True(t, entries[0].Timestamp.After(entries[1].Timestamp))
		assert.Equal(t, []string{"0x1", "0x2"}, entries[0].TokenIDs)
		assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("0.2")))

		other, err := repo.GetClaimHistory(ctx, walletB, 0)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("claim history unique by transaction hash", func(t *testing.T) {
		ctx := context.Background()
		entry := &models.ClaimHistoryEntry{
			ID:              uuid.NewString(),
			WalletAddress:   walletB,
			TokenName:       "APT",
			TokenIDs:        []string{"0x7"},
			Amount:          decimal.RequireFromString("0.1"),
			TransactionHash: "0xunique",
			Timestamp:       time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, repo.AddClaimHistory(ctx, entry))

		got, err := repo.GetClaimHistoryByHash(ctx, "0xunique")
		require.NoError(t, err)
		assert.Equal(t, walletB, got.WalletAddress)
		assert.Equal(t, []string{"0x7"}, got.TokenIDs)

		again := *entry
		again.ID = uuid.NewString()
		assert.ErrorIs(t, repo.AddClaimHistory(ctx, &again), models.ErrClaimAlreadyRecorded)

		_, err = repo.GetClaimHistoryByHash(ctx, "0xmissing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("payout config latest wins", func(t *testing.T) {
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Second)

		require.NoError(t, repo.AddPayoutConfig(ctx, &models.PayoutConfig{TokenName: "APT", PayoutPerToken: decimal.RequireFromString("0.1"), CreatedBy: walletA, CreatedAt: base}))
		require.NoError(t, repo.AddPayoutConfig(ctx, &models.PayoutConfig{TokenName: "USDC", PayoutPerToken: decimal.RequireFromString("1.5"), CreatedBy: walletA, CreatedAt: base.Add(time.Minute)}))

		latest, err := repo.GetLatestPayoutConfig(ctx)
		require.NoError(t, err)
		assert.Equal(t, "USDC", latest.TokenName)
		assert.True(t, latest.PayoutPerToken.Equal(decimal.RequireFromString("1.5")))
	})

	t.Run("users upsert", func(t *testing.T) {
		ctx := context.Background()

		_, err := repo.GetUser(ctx, walletB)
		assert.True(t, errors.Is(err, models.ErrNotFound))

		require.NoError(t, repo.UpsertUser(ctx, &models.User{Address: walletB, Email: "a@example.com", EmailVerified: true}))
		require.NoError(t, repo.UpsertUser(ctx, &models.User{Address: walletB, Email: "b@example.com", EmailVerified: false}))

		user, err := repo.GetUser(ctx, walletB)
		require.NoError(t, err)
		assert.Equal(t, "b@example.com", user.Email)
		assert.False(t, user.EmailVerified)
	})
}
