package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
)

// DefaultConcurrency is the number of tokens resolved in parallel.
const DefaultConcurrency = 16

// ImageResolver turns a token URI into a displayable image URL.
type ImageResolver interface {
	Resolve(ctx context.Context, uriOrID string) string
}

// Reconciler joins owned tokens with the lock ledger.
type Reconciler struct {
	logger      *logger.Logger
	resolver    ImageResolver
	ledger      models.LockLedger
	concurrency int
	now         func() time.Time
}

func NewReconciler(resolver ImageResolver, ledger models.LockLedger, logger *logger.Logger) *Reconciler {
	return &Reconciler{
		logger:      logger,
		resolver:    resolver,
		ledger:      ledger,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
}

// WithClock replaces the clock used to decide whether a lock is still active.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile returns one DisplayNFT per token, in input order. A token is locked
// while the wallet has a lock entry for it whose unlock date is in the future.
func (r *Reconciler) Reconcile(ctx context.Context, tokens []*models.Token, wallet string) ([]*models.DisplayNFT, error) {
	entries, err := r.ledger.GetLockEntries(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock ledger: %w", err)
	}
	locks := make(map[string]*models.LockEntry, len(entries))
	for _, e := range entries {
		key := models.TokenKey(e.TokenID)
		// Keep the latest window when the ledger has several rows for one token
		if prev, ok := locks[key]; !ok || e.UnlockDate.After(prev.UnlockDate) {
			locks[key] = e
		}
	}

	images := make([]string, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, t := range tokens {
		i, t := i, t
		g.Go(func() error {
			images[i] = r.resolver.Resolve(gctx, imageSource(t))
			return nil
		})
	}
	_ = g.Wait()

	now := r.now()
	nfts := make([]*models.DisplayNFT, len(tokens))
	for i, t := range tokens {
		nft := &models.DisplayNFT{
			TokenID:    t.TokenID,
			Name:       t.Name,
			ImageURL:   images[i],
			IsEligible: true,
			Standard:   t.Standard,
			Creator:    t.CreatorAddress,
			Properties: t.RawProperties,
		}
		if nft.Name == "" {
			nft.Name = t.TokenID
		}
		if lock, ok := locks[models.TokenKey(t.TokenID)]; ok && lock.ActiveAt(now) {
			unlock := lock.UnlockDate
			nft.IsLocked = true
			nft.IsEligible = false
			nft.UnlockDate = &unlock
		}
		nfts[i] = nft
	}

	r.logger.Debug("Reconciled tokens", "wallet", wallet, "tokens", len(nfts), "locks", len(entries))
	return nfts, nil
}

// imageSource is what the resolver gets for a token: its URI, or its id when
// the source reported none so the metadata service can be asked by id.
func imageSource(t *models.Token) string {
	if t.ImageURI != "" {
		return t.ImageURI
	}
	return t.TokenID
}

// Eligible returns the eligible NFTs, preserving order.
func Eligible(nfts []*models.DisplayNFT) []*models.DisplayNFT {
	out := make([]*models.DisplayNFT, 0, len(nfts))
	for _, n := range nfts {
		if n.IsEligible {
			out = append(out, n)
		}
	}
	return out
}

// ClaimableAmount is the eligible count times the payout rate, rounded to two
// decimal places.
func ClaimableAmount(nfts []*models.DisplayNFT, payoutPerToken decimal.Decimal) decimal.Decimal {
	count := int64(len(Eligible(nfts)))
	return decimal.NewFromInt(count).Mul(payoutPerToken).Round(2)
}
