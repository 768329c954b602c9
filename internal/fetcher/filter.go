package fetcher

import (
	"strings"

	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/validation"
)

// CollectionFilter selects the tokens of one collection. Data sources disagree
// on which collection field they populate, so a token matches when any
// configured field matches.
type CollectionFilter struct {
	Name    string
	ID      string
	Creator string
}

// Empty reports whether no field is set. An empty filter matches every token.
func (f CollectionFilter) Empty() bool {
	return f.Name == "" && f.ID == "" && f.Creator == ""
}

func (f CollectionFilter) Matches(token *models.Token) bool {
	if token == nil {
		return false
	}
	if f.Empty() {
		return true
	}
	return f.matchesName(token.CollectionName) ||
		f.matchesID(token.CollectionID) ||
		f.matchesCreator(token.CreatorAddress)
}

// matchesName checks containment in either direction, ignoring case.
func (f CollectionFilter) matchesName(name string) bool {
	want := strings.ToLower(strings.TrimSpace(f.Name))
	got := strings.ToLower(strings.TrimSpace(name))
	if want == "" || got == "" {
		return false
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}

func (f CollectionFilter) matchesID(id string) bool {
	// v2 collection ids are object addresses, so they compare like addresses
	return validation.SameAddress(f.ID, id)
}

func (f CollectionFilter) matchesCreator(creator string) bool {
	if f.Creator == "" || creator == "" {
		return false
	}
	return validation.SameAddress(f.Creator, creator)
}

// Apply returns the tokens that match the filter, preserving order.
func (f CollectionFilter) Apply(tokens []*models.Token) []*models.Token {
	if f.Empty() {
		return tokens
	}
	out := make([]*models.Token, 0, len(tokens))
	for _, t := range tokens {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}
