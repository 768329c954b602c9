package http_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holderrewards/dashboard/internal/blockchain"
	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
)

const (
	wallet = "0x00000000000000000000000000000000000000000000000000000000000000aa"
	admin  = "0x00000000000000000000000000000000000000000000000000000000000000ad"
)

var claimPayload = &models.TransactionPayload{
	Type:      models.EntryFunctionPayloadType,
	Function:  "0xcafe::rewards::claim",
	Arguments: []interface{}{[]string{"0x1"}},
}

// fakeRewards answers every call with the configured values.
type fakeRewards struct {
	view     *models.EligibilityView
	err      error
	lastAddr string
	limit    int
}

func (f *fakeRewards) FetchEligibility(_ context.Context, wallet string) (*models.EligibilityView, error) {
	f.lastAddr = wallet
	return f.view, f.err
}

func (f *fakeRewards) GetClaimableAmount(_ context.Context, wallet string) (*models.ClaimableView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ClaimableView{Wallet: wallet, EligibleCount: 2, Amount: decimal.RequireFromString("0.2"), TokenName: "APT"}, nil
}

func (f *fakeRewards) PrepareClaim(_ context.Context, wallet string) (*models.ClaimPreparation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ClaimPreparation{Payload: claimPayload, TokenIDs: []string{"0x1"}, TokenName: "APT"}, nil
}

// SubmitClaim behaves like the real service: it hands the claim payload to
// the signer and fails the claim when the signer fails.
func (f *fakeRewards) SubmitClaim(ctx context.Context, wallet string, signer models.Signer) (*models.ClaimResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	tx, err := signer.SignAndSubmitTransaction(ctx, claimPayload)
	if err != nil {
		return &models.ClaimResult{State: models.ClaimFailed}, fmt.Errorf("%w: %v", models.ErrClaimTransactionFailed, err)
	}
	return &models.ClaimResult{State: models.ClaimConfirmed, TransactionHash: tx.Hash, TokenIDs: []string{"0x1"}, HistoryRecorded: true}, nil
}

func (f *fakeRewards) GetClaimHistory(_ context.Context, wallet string, limit int) ([]*models.ClaimHistoryEntry, error) {
	f.limit = limit
	return []*models.ClaimHistoryEntry{{ID: "1", WalletAddress: wallet, TransactionHash: "0xh"}}, f.err
}

func (f *fakeRewards) GetPayoutConfig(context.Context) (*models.PayoutView, error) {
	return &models.PayoutView{TokenName: "APT", PayoutPerToken: decimal.RequireFromString("0.1"), Default: true}, f.err
}

func (f *fakeRewards) SetPayoutConfig(_ context.Context, adminAddr, tokenName string, rate decimal.Decimal) (*models.PayoutView, error) {
	if adminAddr != admin {
		return nil, models.ErrNotAdmin
	}
	if !rate.IsPositive() {
		return nil, models.ErrInvalidPayout
	}
	return &models.PayoutView{TokenName: tokenName, PayoutPerToken: rate, CreatedBy: adminAddr}, nil
}

func (f *fakeRewards) GetUser(_ context.Context, address string) (*models.User, error) {
	return &models.User{Address: address}, f.err
}

func (f *fakeRewards) RegisterEmail(_ context.Context, address, email string) (*models.User, error) {
	if !strings.Contains(email, "@") {
		return nil, models.ErrInvalidEmail
	}
	return &models.User{Address: address, Email: email}, nil
}

func (f *fakeRewards) EscrowStatus(_ context.Context, adminAddr string) (*models.EscrowStatus, error) {
	if adminAddr != admin {
		return nil, models.ErrNotAdmin
	}
	return nil, models.ErrEscrowNotConfigured
}

type fakeNode struct {
	tx  *blockchain.Transaction
	err error
}

func (n *fakeNode) WaitForTransaction(context.Context, string, time.Duration) (*blockchain.Transaction, error) {
	return n.tx, n.err
}

func newTestServer(rewards models.RewardsI, node blockchain.TransactionWaiter) http.Handler {
	gin.SetMode(gin.TestMode)
	s := NewHTTPServer(rewards, node, 0, logger.NewNop())
	s.claimPollInterval = time.Millisecond
	s.claimWaitTimeout = time.Second
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestGetNFTs(t *testing.T) {
	rewards := &fakeRewards{view: &models.EligibilityView{Wallet: wallet, EligibleCount: 3, NFTs: []*models.DisplayNFT{{TokenID: "0x1", IsEligible: true}}}}
	h := newTestServer(rewards, &fakeNode{})

	w := do(t, h, http.MethodGet, "/api/v1/nfts?address=0xaa", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 3, body["eligible_count"])
	assert.Equal(t, "0xaa", rewards.lastAddr)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, h, http.MethodGet, "/api/v1/nfts", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodGet, "/api/v1/nfts?address=0xZZ", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: indexer, node", models.ErrTotalFetchFailure), http.StatusServiceUnavailable},
		{fmt.Errorf("failed to read lock ledger: %w", fmt.Errorf("connection reset")), http.StatusInternalServerError},
		{models.ErrNothingToClaim, http.StatusBadRequest},
		{models.ErrEmailNotVerified, http.StatusForbidden},
		{context.Canceled, http.StatusConflict},
		{models.ErrClaimAlreadyRecorded, http.StatusConflict},
	}
	for _, tt := range tests {
		h := newTestServer(&fakeRewards{err: tt.err}, &fakeNode{})
		w := do(t, h, http.MethodGet, "/api/v1/nfts?address="+wallet, "")
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
		assert.Equal(t, false, decode(t, w)["success"])
	}
}

func TestPrepareClaim(t *testing.T) {
	h := newTestServer(&fakeRewards{}, &fakeNode{})

	w := do(t, h, http.MethodPost, "/api/v1/claim/prepare", `{"address":"`+wallet+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	payload := decode(t, w)["payload"].(map[string]interface{})
	assert.Equal(t, "0xcafe::rewards::claim", payload["function"])

	w = do(t, h, http.MethodPost, "/api/v1/claim/prepare", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h = newTestServer(&fakeRewards{err: models.ErrEmailNotVerified}, &fakeNode{})
	w = do(t, h, http.MethodPost, "/api/v1/claim/prepare", `{"address":"`+wallet+`"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSubmitClaim(t *testing.T) {
	body := `{"address":"` + wallet + `","transaction_hash":"0xhash"}`

	t.Run("confirmed", func(t *testing.T) {
		node := &fakeNode{tx: &blockchain.Transaction{
			Hash: "0xhash", Sender: "0xaa", Success: true,
			Payload: &blockchain.TransactionPayload{
				Function:  "0xcafe::rewards::claim",
				Arguments: []json.RawMessage{json.RawMessage(`["0x1"]`)},
			},
		}}
		w := do(t, newTestServer(&fakeRewards{}, node), http.MethodPost, "/api/v1/claim", body)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode(t, w)
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, "0xhash", resp["result"].(map[string]interface{})["transaction_hash"])
	})

	t.Run("aborted on chain", func(t *testing.T) {
		node := &fakeNode{tx: &blockchain.Transaction{Hash: "0xhash", Success: false, VMStatus: "Move abort"}}
		w := do(t, newTestServer(&fakeRewards{}, node), http.MethodPost, "/api/v1/claim", body)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		resp := decode(t, w)
		assert.Contains(t, resp["error"], "Move abort")
		assert.Equal(t, "failed", resp["result"].(map[string]interface{})["state"])
	})

	t.Run("wrong function", func(t *testing.T) {
		node := &fakeNode{tx: &blockchain.Transaction{
			Hash: "0xhash", Success: true,
			Payload: &blockchain.TransactionPayload{Function: "0x1::coin::transfer"},
		}}
		w := do(t, newTestServer(&fakeRewards{}, node), http.MethodPost, "/api/v1/claim", body)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("hash already recorded", func(t *testing.T) {
		rewards := &fakeRewards{err: fmt.Errorf("transaction 0xhash: %w", models.ErrClaimAlreadyRecorded)}
		w := do(t, newTestServer(rewards, &fakeNode{}), http.MethodPost, "/api/v1/claim", body)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, decode(t, w)["error"], "already recorded")
	})

	t.Run("missing hash", func(t *testing.T) {
		w := do(t, newTestServer(&fakeRewards{}, &fakeNode{}), http.MethodPost, "/api/v1/claim", `{"address":"`+wallet+`"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestClaimHistory(t *testing.T) {
	rewards := &fakeRewards{}
	h := newTestServer(rewards, &fakeNode{})

	w := do(t, h, http.MethodGet, "/api/v1/claims?address="+wallet+"&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, rewards.limit)
	assert.Len(t, decode(t, w)["claims"], 1)

	w = do(t, h, http.MethodGet, "/api/v1/claims?address="+wallet+"&limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsers(t *testing.T) {
	h := newTestServer(&fakeRewards{}, &fakeNode{})

	w := do(t, h, http.MethodGet, "/api/v1/users/"+wallet, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["email_verified"])

	w = do(t, h, http.MethodPut, "/api/v1/users", `{"address":"`+wallet+`","email":"holder@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "holder@example.com", decode(t, w)["email"])

	w = do(t, h, http.MethodPut, "/api/v1/users", `{"address":"`+wallet+`","email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	h := newTestServer(&fakeRewards{}, &fakeNode{})

	w := do(t, h, http.MethodGet, "/api/v1/payout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0.1", decode(t, w)["payout_per_token"])

	w = do(t, h, http.MethodPost, "/api/v1/admin/payout", `{"admin_address":"`+admin+`","token_name":"MKY","payout_per_token":"2.5"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2.5", decode(t, w)["payout_per_token"])

	w = do(t, h, http.MethodPost, "/api/v1/admin/payout", `{"admin_address":"`+wallet+`","payout_per_token":1}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/admin/payout", `{"admin_address":"`+admin+`","payout_per_token":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/admin/escrow?admin_address="+admin, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/admin/escrow?admin_address="+wallet, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(&fakeRewards{}, &fakeNode{})
	w := do(t, h, http.MethodOptions, "/api/v1/claim", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}
