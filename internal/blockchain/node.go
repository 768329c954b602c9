package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/holderrewards/dashboard/pkg/logger"
)

const (
	// cursorHeader carries the next page cursor for paginated node endpoints
	cursorHeader = "X-Aptos-Cursor"
	// pendingTransactionType is reported by the node until a transaction is committed
	pendingTransactionType = "pending_transaction"
)

// NodeClient talks to the Aptos fullnode REST API.
type NodeClient struct {
	logger  *logger.Logger
	baseURL string
	client  *http.Client
}

// NewNodeClient creates a new NodeClient instance.
func NewNodeClient(baseURL string, client *http.Client, logger *logger.Logger) *NodeClient {
	if client == nil {
		client = NewHTTPClient(DefaultHTTPTimeout)
	}
	return &NodeClient{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Resource is one Move resource stored under an account.
type Resource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TokenListing is one row of the account token listing endpoint.
type TokenListing struct {
	TokenDataID     string          `json:"token_data_id"`
	PropertyVersion json.Number     `json:"property_version"`
	Amount          json.Number     `json:"amount"`
	TokenName       string          `json:"token_name"`
	TokenURI        string          `json:"token_uri"`
	TokenStandard   string          `json:"token_standard"`
	CollectionName  string          `json:"collection_name"`
	CollectionID    string          `json:"collection_id"`
	CreatorAddress  string          `json:"creator_address"`
	TokenProperties json.RawMessage `json:"token_properties"`
}

// Transaction is the subset of a node transaction the claim flow checks.
type Transaction struct {
	Type     string              `json:"type"`
	Hash     string              `json:"hash"`
	Sender   string              `json:"sender"`
	Success  bool                `json:"success"`
	VMStatus string              `json:"vm_status"`
	Payload  *TransactionPayload `json:"payload"`
}

// TransactionPayload is the entry function a committed transaction called.
type TransactionPayload struct {
	Type          string            `json:"type"`
	Function      string            `json:"function"`
	TypeArguments []string          `json:"type_arguments"`
	Arguments     []json.RawMessage `json:"arguments"`
}

// ClaimedTokenIDs decodes the first argument of a claim call, the
// vector<String> of token ids built by BuildClaimPayload.
func (p *TransactionPayload) ClaimedTokenIDs() ([]string, error) {
	if len(p.Arguments) == 0 {
		return nil, fmt.Errorf("payload has no arguments")
	}
	var ids []string
	if err := json.Unmarshal(p.Arguments[0], &ids); err != nil {
		return nil, fmt.Errorf("failed to decode token ids: %w", err)
	}
	return ids, nil
}

// Pending reports whether the node has not committed the transaction yet.
func (t *Transaction) Pending() bool {
	return t.Type == pendingTransactionType
}

// AccountResources returns one page of resources stored under address and the
// cursor of the next page, empty when this was the last one.
func (n *NodeClient) AccountResources(ctx context.Context, address, cursor string, limit int) ([]Resource, string, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("start", cursor)
	}
	endpoint := fmt.Sprintf("%s/accounts/%s/resources", n.baseURL, url.PathEscape(address))
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var resources []Resource
	header, err := doJSON(ctx, n.client, http.MethodGet, endpoint, nil, &resources)
	if err != nil {
		return nil, "", err
	}
	return resources, header.Get(cursorHeader), nil
}

// AccountResource returns a single resource of the given type.
func (n *NodeClient) AccountResource(ctx context.Context, address, resourceType string) (*Resource, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/resource/%s", n.baseURL, url.PathEscape(address), url.PathEscape(resourceType))

	var resource Resource
	if _, err := doJSON(ctx, n.client, http.MethodGet, endpoint, nil, &resource); err != nil {
		return nil, err
	}
	return &resource, nil
}

// AccountTokens lists tokens owned by address using the ownership listing
// endpoint. It is the fallback when resources carry no token data.
func (n *NodeClient) AccountTokens(ctx context.Context, address string, offset, limit int) ([]TokenListing, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/tokens?limit=%d&offset=%d", n.baseURL, url.PathEscape(address), limit, offset)

	var listings []TokenListing
	if _, err := doJSON(ctx, n.client, http.MethodGet, endpoint, nil, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// TransactionByHash returns the transaction with the given hash.
func (n *NodeClient) TransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	endpoint := fmt.Sprintf("%s/transactions/by_hash/%s", n.baseURL, url.PathEscape(hash))

	var tx Transaction
	if _, err := doJSON(ctx, n.client, http.MethodGet, endpoint, nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// WaitForTransaction polls until the transaction is committed or ctx is done.
// A hash the node does not know yet is treated as pending.
func (n *NodeClient) WaitForTransaction(ctx context.Context, hash string, pollInterval time.Duration) (*Transaction, error) {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		tx, err := n.TransactionByHash(ctx, hash)
		switch {
		case err == nil && !tx.Pending():
			return tx, nil
		case err == nil, IsNotFound(err):
			n.logger.Debug("Transaction not committed yet", "hash", hash)
		default:
			return nil, fmt.Errorf("failed to get transaction %s: %w", hash, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up waiting for transaction %s: %w", hash, ctx.Err())
		case <-ticker.C:
		}
	}
}

// CoinBalance returns the balance of coinType held by address, in the coin's base units.
func (n *NodeClient) CoinBalance(ctx context.Context, address, coinType string) (uint64, error) {
	resource, err := n.AccountResource(ctx, address, fmt.Sprintf("0x1::coin::CoinStore<%s>", coinType))
	if err != nil {
		return 0, fmt.Errorf("failed to get coin store: %w", err)
	}

	var store struct {
		Coin struct {
			Value string `json:"value"`
		} `json:"coin"`
	}
	if err := json.Unmarshal(resource.Data, &store); err != nil {
		return 0, fmt.Errorf("failed to decode coin store: %w", err)
	}
	balance, err := strconv.ParseUint(store.Coin.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coin value %q: %w", store.Coin.Value, err)
	}
	return balance, nil
}
