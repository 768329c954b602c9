package models

import (
	"regexp"
	"strings"
	"time"
)

// Token is an NFT as reported by one chain data source.
type Token struct {
	// TokenID identifies the token within its source. It is the only required field.
	TokenID string `json:"token_id"`
	// Name is the token name
	Name string `json:"name,omitempty"`
	// ImageURI is the raw image or metadata URI reported by the source
	ImageURI string `json:"image_uri,omitempty"`
	// CreatorAddress is the address of the collection creator
	CreatorAddress string `json:"creator_address,omitempty"`
	// Standard is the token standard (v1, v2)
	Standard string `json:"standard,omitempty"`
	// CollectionName is the human readable collection name
	CollectionName string `json:"collection_name,omitempty"`
	// CollectionID is the on-chain collection identifier
	CollectionID string `json:"collection_id,omitempty"`
	// RawProperties holds the token properties as reported by the source, usually JSON
	RawProperties string `json:"raw_properties,omitempty"`
	// Source is the name of the fetcher that produced the token
	Source string `json:"source,omitempty"`
}

// DisplayNFT is the UI facing view of an owned token joined with the lock ledger.
// IsEligible is always the negation of IsLocked.
type DisplayNFT struct {
	TokenID    string     `json:"token_id"`
	Name       string     `json:"name"`
	ImageURL   string     `json:"image_url"`
	IsEligible bool       `json:"is_eligible"`
	IsLocked   bool       `json:"is_locked"`
	UnlockDate *time.Time `json:"unlock_date,omitempty"`
	Standard   string     `json:"standard,omitempty"`
	Creator    string     `json:"creator,omitempty"`
	Properties string     `json:"properties,omitempty"`
}

// Clone returns a deep copy of the NFT.
func (n *DisplayNFT) Clone() *DisplayNFT {
	c := *n
	if n.UnlockDate != nil {
		t := *n.UnlockDate
		c.UnlockDate = &t
	}
	return &c
}

var (
	versionSuffix = regexp.MustCompile(`/\d+$`)
	hexPrefix     = regexp.MustCompile(`^(?i)0x[0-9a-f]+`)
)

// TokenKey returns the key used to compare token ids coming from different
// sources. Sources disagree on whether a property version suffix ("/0") is
// appended to the token data id, so the suffix is stripped. Only the leading
// hex address is lowercased; the collection and token names of a v1 id
// ("0xcreator::Collection::Name") are case sensitive.
func TokenKey(tokenID string) string {
	key := strings.TrimSpace(tokenID)
	key = versionSuffix.ReplaceAllString(key, "")
	return hexPrefix.ReplaceAllStringFunc(key, strings.ToLower)
}
