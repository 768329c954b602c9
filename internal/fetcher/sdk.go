package fetcher

import (
	"context"

	"github.com/holderrewards/dashboard/internal/blockchain"
	"github.com/holderrewards/dashboard/internal/config"
	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
)

// OwnedTokensClient is the high level "get account NFTs" capability.
type OwnedTokensClient interface {
	GetAccountOwnedTokens(ctx context.Context, owner string) ([]blockchain.TokenOwnership, error)
}

// SDKFetcher asks the high level client for every token the wallet owns and
// filters them in process.
type SDKFetcher struct {
	logger *logger.Logger
	client OwnedTokensClient
}

func NewSDKFetcher(client OwnedTokensClient, logger *logger.Logger) *SDKFetcher {
	return &SDKFetcher{logger: logger, client: client}
}

func (f *SDKFetcher) Name() string { return config.FetcherSDK }

func (f *SDKFetcher) Fetch(ctx context.Context, owner string, filter CollectionFilter) ([]*models.Token, error) {
	owned, err := f.client.GetAccountOwnedTokens(ctx, owner)
	if err != nil {
		if blockchain.IsTransport(err) {
			return nil, err
		}
		f.logger.Warn("Owned tokens lookup failed", "owner", owner, "error", err)
		return []*models.Token{}, nil
	}

	tokens := make([]*models.Token, 0, len(owned))
	for i := range owned {
		if owned[i].TokenDataID == "" {
			continue
		}
		tokens = append(tokens, ownershipToken(&owned[i], f.Name()))
	}
	return filter.Apply(tokens), nil
}
