package http_api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/holderrewards/dashboard/internal/blockchain"
	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/validation"
)

// AddressRequest is the body of POST /claim/prepare
type AddressRequest struct {
	Address string `json:"address" binding:"required"`
}

// ClaimRequest is sent after the wallet signed and submitted the claim
// transaction returned by /claim/prepare
type ClaimRequest struct {
	Address         string `json:"address" binding:"required"`
	TransactionHash string `json:"transaction_hash" binding:"required"`
}

// EmailRequest registers or replaces the email of a wallet
type EmailRequest struct {
	Address string `json:"address" binding:"required"`
	Email   string `json:"email" binding:"required"`
}

// PayoutRequest sets a new payout rate
type PayoutRequest struct {
	AdminAddress   string          `json:"admin_address" binding:"required"`
	TokenName      string          `json:"token_name"`
	PayoutPerToken decimal.Decimal `json:"payout_per_token"`
}

// ClaimResponse wraps the claim result
type ClaimResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Result  *models.ClaimResult `json:"result,omitempty"`
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidAddress),
		errors.Is(err, models.ErrInvalidEmail),
		errors.Is(err, models.ErrInvalidPayout),
		errors.Is(err, models.ErrNothingToClaim):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrEmailNotVerified),
		errors.Is(err, models.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrEscrowNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, models.ErrClaimAlreadyRecorded):
		return http.StatusConflict
	case errors.Is(err, models.ErrClaimTransactionFailed):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrTotalFetchFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		// A newer request for the same wallet superseded this one
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) fail(c *gin.Context, err error, msg string, keysAndValues ...interface{}) {
	status := statusFor(err)
	keysAndValues = append(keysAndValues, "error", err, "status", status)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, keysAndValues...)
	} else {
		s.logger.Debug(msg, keysAndValues...)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// queryAddress reads and validates an address query parameter.
func (s *HTTPServer) queryAddress(c *gin.Context, name string) (string, bool) {
	address := c.Query(name)
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": name + " is required"})
		return "", false
	}
	if err := validation.ValidateAddress(address); err != nil {
		s.logger.Debug("Invalid address", "error", err, "address", address)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid address format: " + err.Error()})
		return "", false
	}
	return address, true
}

func (s *HTTPServer) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

// getNFTs is a handler for the /nfts endpoint.
// It runs the whole fetch pipeline for the wallet.
func (s *HTTPServer) getNFTs(c *gin.Context) {
	address, ok := s.queryAddress(c, "address")
	if !ok {
		return
	}

	view, err := s.rewards.FetchEligibility(c.Request.Context(), address)
	if err != nil {
		s.fail(c, err, "Failed to fetch eligibility", "address", address)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *HTTPServer) getClaimable(c *gin.Context) {
	address, ok := s.queryAddress(c, "address")
	if !ok {
		return
	}

	claimable, err := s.rewards.GetClaimableAmount(c.Request.Context(), address)
	if err != nil {
		s.fail(c, err, "Failed to get claimable amount", "address", address)
		return
	}
	c.JSON(http.StatusOK, claimable)
}

// prepareClaim returns the entry function payload the wallet has to sign.
func (s *HTTPServer) prepareClaim(c *gin.Context) {
	var req AddressRequest
	if !s.bind(c, &req) {
		return
	}

	prep, err := s.rewards.PrepareClaim(c.Request.Context(), req.Address)
	if err != nil {
		s.fail(c, err, "Failed to prepare claim", "address", req.Address)
		return
	}
	c.JSON(http.StatusOK, prep)
}

// submitClaim confirms the submitted transaction on chain and records the
// claim.
func (s *HTTPServer) submitClaim(c *gin.Context) {
	var req ClaimRequest
	if !s.bind(c, &req) {
		return
	}
	if err := validation.ValidateAddress(req.Address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid address format: " + err.Error()})
		return
	}

	signer := &blockchain.SubmittedTransaction{
		Node:         s.node,
		Hash:         req.TransactionHash,
		Sender:       req.Address,
		PollInterval: s.claimPollInterval,
		Timeout:      s.claimWaitTimeout,
	}

	result, err := s.rewards.SubmitClaim(c.Request.Context(), req.Address, signer)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("Claim failed", "address", req.Address, "hash", req.TransactionHash, "error", err, "status", status)
		c.JSON(status, ClaimResponse{Success: false, Error: err.Error(), Result: result})
		return
	}

	s.logger.Info("Claim confirmed", "address", req.Address, "hash", result.TransactionHash, "tokens", len(result.TokenIDs), "amount", result.Amount.String())
	c.JSON(http.StatusOK, ClaimResponse{Success: true, Result: result})
}

func (s *HTTPServer) getClaimHistory(c *gin.Context) {
	address, ok := s.queryAddress(c, "address")
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	history, err := s.rewards.GetClaimHistory(c.Request.Context(), address, limit)
	if err != nil {
		s.fail(c, err, "Failed to get claim history", "address", address)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": history})
}

func (s *HTTPServer) getUser(c *gin.Context) {
	address := c.Param("address")
	if err := validation.ValidateAddress(address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid address format: " + err.Error()})
		return
	}

	user, err := s.rewards.GetUser(c.Request.Context(), address)
	if err != nil {
		s.fail(c, err, "Failed to get user", "address", address)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *HTTPServer) registerEmail(c *gin.Context) {
	var req EmailRequest
	if !s.bind(c, &req) {
		return
	}

	user, err := s.rewards.RegisterEmail(c.Request.Context(), req.Address, req.Email)
	if err != nil {
		s.fail(c, err, "Failed to register email", "address", req.Address)
		return
	}
	s.logger.Info("Email registered", "address", user.Address, "verified", user.EmailVerified)
	c.JSON(http.StatusOK, user)
}

func (s *HTTPServer) getPayout(c *gin.Context) {
	payout, err := s.rewards.GetPayoutConfig(c.Request.Context())
	if err != nil {
		s.fail(c, err, "Failed to get payout config")
		return
	}
	c.JSON(http.StatusOK, payout)
}

func (s *HTTPServer) setPayout(c *gin.Context) {
	var req PayoutRequest
	if !s.bind(c, &req) {
		return
	}

	payout, err := s.rewards.SetPayoutConfig(c.Request.Context(), req.AdminAddress, req.TokenName, req.PayoutPerToken)
	if err != nil {
		if errors.Is(err, models.ErrNotAdmin) {
			s.logger.Warn("Payout change rejected", "admin_address", req.AdminAddress)
		}
		s.fail(c, err, "Failed to set payout config")
		return
	}
	c.JSON(http.StatusOK, payout)
}

func (s *HTTPServer) getEscrow(c *gin.Context) {
	admin, ok := s.queryAddress(c, "admin_address")
	if !ok {
		return
	}

	status, err := s.rewards.EscrowStatus(c.Request.Context(), admin)
	if err != nil {
		s.fail(c, err, "Failed to get escrow status")
		return
	}
	c.JSON(http.StatusOK, status)
}
