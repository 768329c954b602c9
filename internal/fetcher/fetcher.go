package fetcher

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/holderrewards/dashboard/internal/blockchain"
	"github.com/holderrewards/dashboard/internal/models"
)

// SourceFetcher lists the tokens of one collection owned by a wallet, using a
// single chain data source. Implementations return an empty list for missing
// data and HTTP status failures. An error means the source could not be
// reached at all.
type SourceFetcher interface {
	Name() string
	Fetch(ctx context.Context, owner string, filter CollectionFilter) ([]*models.Token, error)
}

// ownershipToken maps an indexer ownership row to a Token.
func ownershipToken(o *blockchain.TokenOwnership, source string) *models.Token {
	token := &models.Token{
		TokenID:  o.TokenDataID,
		Standard: o.TokenStandard,
		Source:   source,
	}
	if data := o.CurrentTokenData; data != nil {
		token.Name = data.TokenName
		token.ImageURI = data.TokenURI
		token.CollectionID = data.CollectionID
		token.RawProperties = rawProperties(data.TokenProperties)
		if c := data.CurrentCollection; c != nil {
			token.CollectionName = c.CollectionName
			token.CreatorAddress = c.CreatorAddress
			if token.CollectionID == "" {
				token.CollectionID = c.CollectionID
			}
		}
	}
	return token
}

func rawProperties(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || s == "{}" {
		return ""
	}
	return s
}
