package blockchain

import (
	"context"
	"fmt"
)

// defaultPageSize is the page size of paginated indexer calls
const defaultPageSize = 100

// maxOwnedTokenPages bounds pagination for wallets with very large holdings
const maxOwnedTokenPages = 50

const accountOwnedTokensQuery = `query getAccountOwnedTokens($where: current_token_ownerships_v2_bool_exp!, $offset: Int, $limit: Int) {
	current_token_ownerships_v2(where: $where, offset: $offset, limit: $limit, order_by: {last_transaction_version: desc}) {` +
	TokenOwnershipFields + `
	}
}`

// Client is the high level chain client used the way an SDK is: callers ask
// for account level data and pagination is handled internally.
type Client struct {
	Node     *NodeClient
	Indexer  *IndexerClient
	PageSize int
}

func NewClient(node *NodeClient, indexer *IndexerClient) *Client {
	return &Client{Node: node, Indexer: indexer, PageSize: defaultPageSize}
}

// GetAccountOwnedTokens returns every token currently owned by owner, across
// all collections.
func (c *Client) GetAccountOwnedTokens(ctx context.Context, owner string) ([]TokenOwnership, error) {
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var all []TokenOwnership
	for page := 0; page < maxOwnedTokenPages; page++ {
		var data struct {
			Ownerships []TokenOwnership `json:"current_token_ownerships_v2"`
		}
		vars := map[string]interface{}{
			"where": map[string]interface{}{
				"owner_address": map[string]interface{}{"_eq": owner},
				"amount":        map[string]interface{}{"_gt": 0},
			},
			"offset": page * pageSize,
			"limit":  pageSize,
		}
		if err := c.Indexer.Query(ctx, accountOwnedTokensQuery, vars, &data); err != nil {
			return nil, fmt.Errorf("failed to get account owned tokens: %w", err)
		}

		all = append(all, data.Ownerships...)
		if len(data.Ownerships) < pageSize {
			break
		}
	}
	return all, nil
}
