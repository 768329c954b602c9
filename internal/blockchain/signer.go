package blockchain

import (
	"context"
	"fmt"
	"time"

	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/validation"
)

// TransactionWaiter is implemented by NodeClient.
type TransactionWaiter interface {
	WaitForTransaction(ctx context.Context, hash string, pollInterval time.Duration) (*Transaction, error)
}

// SubmittedTransaction is the signer used when the browser wallet has already
// signed and submitted the claim transaction and only its hash reaches the
// server. It confirms the transaction on chain instead of signing and reports
// the token ids the committed transaction actually claimed.
type SubmittedTransaction struct {
	Node         TransactionWaiter
	Hash         string
	Sender       string
	PollInterval time.Duration
	Timeout      time.Duration
}

func (s *SubmittedTransaction) SignAndSubmitTransaction(ctx context.Context, payload *models.TransactionPayload) (*models.TransactionResult, error) {
	if s.Hash == "" {
		return nil, fmt.Errorf("no transaction hash provided")
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	tx, err := s.Node.WaitForTransaction(ctx, s.Hash, s.PollInterval)
	if err != nil {
		return nil, err
	}
	if !tx.Success {
		return nil, fmt.Errorf("transaction %s was rejected: %s", s.Hash, tx.VMStatus)
	}
	if s.Sender != "" && !validation.SameAddress(s.Sender, tx.Sender) {
		return nil, fmt.Errorf("transaction %s was sent by %s, not %s", s.Hash, tx.Sender, s.Sender)
	}

	result := &models.TransactionResult{Hash: tx.Hash}
	if result.Hash == "" {
		result.Hash = s.Hash
	}
	if payload == nil {
		return result, nil
	}

	if tx.Payload == nil {
		return nil, fmt.Errorf("transaction %s has no entry function payload", s.Hash)
	}
	if !SameFunction(tx.Payload.Function, payload.Function) {
		return nil, fmt.Errorf("transaction %s called %s, expected %s", s.Hash, tx.Payload.Function, payload.Function)
	}
	ids, err := tx.Payload.ClaimedTokenIDs()
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", s.Hash, err)
	}
	result.TokenIDs = ids
	return result, nil
}
