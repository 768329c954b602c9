package models

import "context"

// EntryFunctionPayloadType is the Aptos payload type for entry function calls.
const EntryFunctionPayloadType = "entry_function_payload"

// TransactionPayload is the transaction the wallet is asked to sign. The core
// builds it but does not interpret it beyond forwarding.
type TransactionPayload struct {
	Type          string        `json:"type"`
	Function      string        `json:"function"`
	TypeArguments []string      `json:"type_arguments"`
	Arguments     []interface{} `json:"arguments"`
}

// TransactionResult is what the wallet returns after submitting a transaction.
type TransactionResult struct {
	Hash string `json:"hash"`
	// TokenIDs are the ids the committed transaction claimed, nil when the
	// signer cannot read them back
	TokenIDs []string `json:"token_ids,omitempty"`
}

// Signer is the wallet capability used to submit a claim.
type Signer interface {
	SignAndSubmitTransaction(ctx context.Context, payload *TransactionPayload) (*TransactionResult, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, payload *TransactionPayload) (*TransactionResult, error)

func (f SignerFunc) SignAndSubmitTransaction(ctx context.Context, payload *TransactionPayload) (*TransactionResult, error) {
	return f(ctx, payload)
}
