package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/holderrewards/dashboard/pkg/logger"
)

// TokenOwnershipFields is the selection set shared by every ownership query.
const TokenOwnershipFields = `
	token_data_id
	amount
	property_version_v1
	token_standard
	current_token_data {
		token_name
		token_uri
		token_properties
		collection_id
		current_collection {
			collection_id
			collection_name
			creator_address
		}
	}`

// IndexerClient posts GraphQL queries to the Aptos indexer.
type IndexerClient struct {
	logger *logger.Logger
	url    string
	client *http.Client
}

func NewIndexerClient(url string, client *http.Client, logger *logger.Logger) *IndexerClient {
	if client == nil {
		client = NewHTTPClient(DefaultHTTPTimeout)
	}
	return &IndexerClient{logger: logger, url: url, client: client}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

type GraphQLError struct {
	Message string `json:"message"`
}

// GraphQLErrors is returned when the indexer answers 200 with an errors list.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, m := range e {
		msgs = append(msgs, m.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// Query runs a GraphQL query and decodes its data field into out.
func (c *IndexerClient) Query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	var resp graphQLResponse
	if _, err := doJSON(ctx, c.client, http.MethodPost, c.url, graphQLRequest{Query: query, Variables: variables}, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return GraphQLErrors(resp.Errors)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}
	return nil
}

// TokenOwnership is one row of current_token_ownerships_v2.
type TokenOwnership struct {
	TokenDataID       string            `json:"token_data_id"`
	Amount            json.Number       `json:"amount"`
	PropertyVersionV1 json.Number       `json:"property_version_v1"`
	TokenStandard     string            `json:"token_standard"`
	CurrentTokenData  *CurrentTokenData `json:"current_token_data"`
}

type CurrentTokenData struct {
	TokenName         string             `json:"token_name"`
	TokenURI          string             `json:"token_uri"`
	TokenProperties   json.RawMessage    `json:"token_properties"`
	CollectionID      string             `json:"collection_id"`
	CurrentCollection *CurrentCollection `json:"current_collection"`
}

type CurrentCollection struct {
	CollectionID   string `json:"collection_id"`
	CollectionName string `json:"collection_name"`
	CreatorAddress string `json:"creator_address"`
}

// Positive reports whether the ownership amount is greater than zero.
func (o *TokenOwnership) Positive() bool {
	s := strings.TrimSpace(o.Amount.String())
	if s == "" {
		return false
	}
	f, err := o.Amount.Float64()
	return err == nil && f > 0
}
