package fetcher

import (
	"context"
	"strings"

	"github.com/holderrewards/dashboard/internal/blockchain"
	"github.com/holderrewards/dashboard/internal/config"
	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
	"github.com/holderrewards/dashboard/pkg/validation"
)

const collectionOwnershipsQuery = `query getCollectionOwnerships($where: current_token_ownerships_v2_bool_exp!, $limit: Int) {
	current_token_ownerships_v2(where: $where, limit: $limit) {` +
	blockchain.TokenOwnershipFields + `
	}
}`

// indexerQueryLimit caps the rows of the single indexer query
const indexerQueryLimit = 500

// IndexerFetcher queries token ownerships from the GraphQL indexer with one
// request, letting the indexer apply the collection filter.
type IndexerFetcher struct {
	logger  *logger.Logger
	indexer *blockchain.IndexerClient
}

func NewIndexerFetcher(indexer *blockchain.IndexerClient, logger *logger.Logger) *IndexerFetcher {
	return &IndexerFetcher{logger: logger, indexer: indexer}
}

func (f *IndexerFetcher) Name() string { return config.FetcherIndexer }

func (f *IndexerFetcher) Fetch(ctx context.Context, owner string, filter CollectionFilter) ([]*models.Token, error) {
	var data struct {
		Ownerships []blockchain.TokenOwnership `json:"current_token_ownerships_v2"`
	}
	vars := map[string]interface{}{
		"where": ownershipWhere(owner, filter),
		"limit": indexerQueryLimit,
	}

	if err := f.indexer.Query(ctx, collectionOwnershipsQuery, vars, &data); err != nil {
		if blockchain.IsTransport(err) {
			return nil, err
		}
		f.logger.Warn("Indexer query failed", "owner", owner, "error", err)
		return []*models.Token{}, nil
	}

	tokens := make([]*models.Token, 0, len(data.Ownerships))
	for i := range data.Ownerships {
		o := &data.Ownerships[i]
		if o.TokenDataID == "" || !o.Positive() {
			continue
		}
		tokens = append(tokens, ownershipToken(o, f.Name()))
	}

	f.logger.Debug("Indexer tokens fetched", "owner", owner, "count", len(tokens))
	return filter.Apply(tokens), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ownershipWhere builds the bool_exp for the owner and every configured
// collection field, any of which may match like CollectionFilter.Matches.
// The name is matched with _ilike so the indexer does the case-insensitive
// containment.
func ownershipWhere(owner string, filter CollectionFilter) map[string]interface{} {
	where := map[string]interface{}{
		"owner_address": map[string]interface{}{"_eq": owner},
		"amount":        map[string]interface{}{"_gt": 0},
	}

	var conds []interface{}
	if name := strings.TrimSpace(filter.Name); name != "" {
		conds = append(conds, map[string]interface{}{
			"current_token_data": map[string]interface{}{
				"current_collection": map[string]interface{}{
					"collection_name": map[string]interface{}{"_ilike": "%" + likeEscaper.Replace(name) + "%"},
				},
			},
		})
	}
	if filter.ID != "" {
		conds = append(conds, map[string]interface{}{
			"current_token_data": map[string]interface{}{
				"collection_id": map[string]interface{}{"_eq": validation.NormalizeAddress(filter.ID)},
			},
		})
	}
	if filter.Creator != "" {
		conds = append(conds, map[string]interface{}{
			"current_token_data": map[string]interface{}{
				"current_collection": map[string]interface{}{
					"creator_address": map[string]interface{}{"_eq": validation.NormalizeAddress(filter.Creator)},
				},
			},
		})
	}
	if len(conds) > 0 {
		where["_or"] = conds
	}
	return where
}
