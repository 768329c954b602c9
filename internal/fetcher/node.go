package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/holderrewards/dashboard/internal/blockchain"
	"github.com/holderrewards/dashboard/internal/config"
	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
)

const (
	// nodePageSize is the page size for both node endpoints
	nodePageSize = 100
	// nodeMaxPages bounds pagination on both node endpoints
	nodeMaxPages = 20
)

// NodeFetcher lists tokens through the fullnode REST API. It walks the
// account resources for token shaped objects and falls back to the account
// token listing when that yields nothing.
type NodeFetcher struct {
	logger *logger.Logger
	node   *blockchain.NodeClient
}

func NewNodeFetcher(node *blockchain.NodeClient, logger *logger.Logger) *NodeFetcher {
	return &NodeFetcher{logger: logger, node: node}
}

func (f *NodeFetcher) Name() string { return config.FetcherNode }

func (f *NodeFetcher) Fetch(ctx context.Context, owner string, filter CollectionFilter) ([]*models.Token, error) {
	tokens, primaryErr := f.fromResources(ctx, owner)
	if primaryErr == nil {
		tokens = filter.Apply(tokens)
		if len(tokens) > 0 {
			return tokens, nil
		}
	} else {
		f.logger.Debug("Account resources unavailable, using token listing", "owner", owner, "error", primaryErr)
	}

	tokens, fallbackErr := f.fromListing(ctx, owner)
	if fallbackErr != nil {
		if blockchain.IsTransport(primaryErr) && blockchain.IsTransport(fallbackErr) {
			return nil, fmt.Errorf("node unreachable: %w", fallbackErr)
		}
		f.logger.Warn("Token listing failed", "owner", owner, "error", fallbackErr)
		return []*models.Token{}, nil
	}
	return filter.Apply(tokens), nil
}

// fromResources pages through /accounts/{addr}/resources following the cursor.
func (f *NodeFetcher) fromResources(ctx context.Context, owner string) ([]*models.Token, error) {
	var tokens []*models.Token
	cursor := ""
	for page := 0; page < nodeMaxPages; page++ {
		resources, next, err := f.node.AccountResources(ctx, owner, cursor, nodePageSize)
		if err != nil {
			return nil, err
		}
		for _, r := range resources {
			var data interface{}
			if err := json.Unmarshal(r.Data, &data); err != nil {
				continue
			}
			tokens = append(tokens, walkTokens(data, f.Name())...)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return tokens, nil
}

// fromListing pages through /accounts/{addr}/tokens by offset.
func (f *NodeFetcher) fromListing(ctx context.Context, owner string) ([]*models.Token, error) {
	var tokens []*models.Token
	for page := 0; page < nodeMaxPages; page++ {
		listings, err := f.node.AccountTokens(ctx, owner, page*nodePageSize, nodePageSize)
		if err != nil {
			return nil, err
		}
		for i := range listings {
			l := &listings[i]
			if l.TokenDataID == "" || l.Amount.String() == "0" {
				continue
			}
			tokens = append(tokens, &models.Token{
				TokenID:        versionedID(l.TokenDataID, l.PropertyVersion.String()),
				Name:           l.TokenName,
				ImageURI:       l.TokenURI,
				CreatorAddress: l.CreatorAddress,
				Standard:       l.TokenStandard,
				CollectionName: l.CollectionName,
				CollectionID:   l.CollectionID,
				RawProperties:  rawProperties(l.TokenProperties),
				Source:         f.Name(),
			})
		}
		if len(listings) < nodePageSize {
			break
		}
	}
	return tokens, nil
}

// walkTokens finds every object carrying a token_data_id anywhere in a
// decoded resource.
func walkTokens(v interface{}, source string) []*models.Token {
	var out []*models.Token
	switch node := v.(type) {
	case map[string]interface{}:
		if raw, ok := node["token_data_id"]; ok {
			if token := tokenFromObject(node, raw, source); token != nil {
				return append(out, token)
			}
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, walkTokens(node[k], source)...)
		}
	case []interface{}:
		for _, child := range node {
			out = append(out, walkTokens(child, source)...)
		}
	}
	return out
}

func tokenFromObject(obj map[string]interface{}, rawID interface{}, source string) *models.Token {
	token := &models.Token{
		Name:     stringField(obj, "name", "token_name"),
		ImageURI: stringField(obj, "uri", "token_uri"),
		Standard: stringField(obj, "token_standard"),
		Source:   source,
	}
	token.CollectionName = stringField(obj, "collection", "collection_name")
	token.CreatorAddress = stringField(obj, "creator", "creator_address")
	token.CollectionID = stringField(obj, "collection_id")

	var id string
	switch rid := rawID.(type) {
	case string:
		id = rid
	case map[string]interface{}:
		// v1 TokenDataId {creator, collection, name}
		creator := stringField(rid, "creator")
		collection := stringField(rid, "collection")
		name := stringField(rid, "name")
		if creator == "" || name == "" {
			return nil
		}
		id = strings.Join([]string{creator, collection, name}, "::")
		if token.CreatorAddress == "" {
			token.CreatorAddress = creator
		}
		if token.CollectionName == "" {
			token.CollectionName = collection
		}
		if token.Name == "" {
			token.Name = name
		}
	}
	if id == "" {
		return nil
	}

	token.TokenID = versionedID(id, scalarString(obj["property_version"]))
	if props, ok := obj["token_properties"]; ok {
		if b, err := json.Marshal(props); err == nil {
			token.RawProperties = rawProperties(b)
		}
	}
	return token
}

func versionedID(id, version string) string {
	if version == "" {
		return id
	}
	return id + "/" + version
}

func stringField(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := scalarString(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return fmt.Sprintf("%.0f", s)
	case json.Number:
		return s.String()
	}
	return ""
}
