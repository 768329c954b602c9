package blockchain

import (
	"strings"

	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/validation"
)

// BuildClaimPayload builds the single entry function call that claims rewards
// for all tokenIDs. The function takes the token ids as its only argument and
// the reward coin as its type argument.
func BuildClaimPayload(function, coinType string, tokenIDs []string) *models.TransactionPayload {
	typeArgs := []string{}
	if coinType != "" {
		typeArgs = append(typeArgs, coinType)
	}
	ids := make([]string, len(tokenIDs))
	copy(ids, tokenIDs)

	return &models.TransactionPayload{
		Type:          models.EntryFunctionPayloadType,
		Function:      function,
		TypeArguments: typeArgs,
		Arguments:     []interface{}{ids},
	}
}

// SameFunction compares two entry function ids (<address>::<module>::<name>),
// tolerating short and long address forms.
func SameFunction(a, b string) bool {
	pa := strings.SplitN(a, "::", 2)
	pb := strings.SplitN(b, "::", 2)
	if len(pa) != 2 || len(pb) != 2 {
		return a == b
	}
	return validation.SameAddress(pa[0], pb[0]) && pa[1] == pb[1]
}
