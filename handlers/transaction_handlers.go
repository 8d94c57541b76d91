package handlers

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/winsave/winsave-api/services"
	"github.com/winsave/winsave-api/types/business"
	"go.uber.org/zap"
)

// TransactionHandler exposes the transaction lifecycle manager to the
// mini-app backend.
type TransactionHandler struct {
	executor *services.TransactionExecutor
	logger   *zap.Logger
}

// NewTransactionHandler creates a transaction handler.
func NewTransactionHandler(executor *services.TransactionExecutor, logger *zap.Logger) *TransactionHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &TransactionHandler{
		executor: executor,
		logger:   logger,
	}
}

// ExecuteTransactionRequest is the payload for submitting a transaction.
type ExecuteTransactionRequest struct {
	From          string `json:"from" binding:"required"`
	To            string `json:"to" binding:"required"`
	ValueWei      string `json:"value_wei,omitempty"`
	Data          string `json:"data,omitempty"` // hex-encoded call data
	Operation     string `json:"operation" binding:"required"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Confirmations int    `json:"confirmations,omitempty"`
	TimeoutMs     int    `json:"timeout_ms,omitempty"`
}

// TransactionResponse describes a transaction record snapshot.
type TransactionResponse struct {
	CorrelationID string             `json:"correlation_id"`
	Hash          string             `json:"hash,omitempty"`
	State         string             `json:"state"`
	Attempts      int                `json:"attempts"`
	GasProfile    GasProfileResponse `json:"gas_profile"`
}

// StatusResponse describes an idempotent status snapshot for a hash.
type StatusResponse struct {
	Hash              string `json:"hash"`
	Pending           bool   `json:"pending"`
	Outcome           string `json:"outcome,omitempty"`
	BlockNumber       uint64 `json:"block_number,omitempty"`
	GasUsed           uint64 `json:"gas_used,omitempty"`
	EffectiveGasPrice string `json:"effective_gas_price,omitempty"`
}

// ExecuteTransaction submits a transaction and starts confirmation tracking
// @Summary Execute a transaction
// @Description Validate, estimate gas for, and submit a transaction, then track confirmations asynchronously
// @Tags Transactions
// @Accept json
// @Produce json
// @Param request body ExecuteTransactionRequest true "Transaction intent"
// @Success 202 {object} TransactionResponse
// @Failure 400 {object} ErrorResponse
// @Router /transactions [post]
func (h *TransactionHandler) ExecuteTransaction(c *gin.Context) {
	var req ExecuteTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	txReq, err := h.toBusinessRequest(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	record, execErr := h.executor.Execute(c.Request.Context(), txReq, services.ExecuteOptions{
		Confirmations: req.Confirmations,
		Timeout:       time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if execErr != nil {
		h.respondClassified(c, execErr)
		return
	}

	snapshot := h.executor.Snapshot(record)
	c.JSON(http.StatusAccepted, toTransactionResponse(&snapshot))
}

// GetTransactionStatus returns a status snapshot for a hash
// @Summary Query transaction status
// @Description Idempotent status query, independent of any active confirmation watch
// @Tags Transactions
// @Produce json
// @Param hash path string true "Transaction hash"
// @Success 200 {object} StatusResponse
// @Router /transactions/{hash} [get]
func (h *TransactionHandler) GetTransactionStatus(c *gin.Context) {
	hash := c.Param("hash")
	if hash == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hash is required"})
		return
	}

	snapshot := h.executor.GetStatus(c.Request.Context(), hash)

	resp := StatusResponse{
		Hash:    snapshot.Hash,
		Pending: snapshot.Pending,
	}
	if snapshot.Result != nil {
		resp.Outcome = string(snapshot.Result.Outcome)
		resp.BlockNumber = snapshot.Result.BlockNumber
		resp.GasUsed = snapshot.Result.GasUsed
		if snapshot.Result.EffectiveGasPrice != nil {
			resp.EffectiveGasPrice = snapshot.Result.EffectiveGasPrice.String()
		}
	}

	c.JSON(http.StatusOK, resp)
}

// EstimateGasRequest is the payload for a gas profile preview.
type EstimateGasRequest struct {
	From      string `json:"from" binding:"required"`
	To        string `json:"to" binding:"required"`
	ValueWei  string `json:"value_wei,omitempty"`
	Data      string `json:"data,omitempty"`
	Operation string `json:"operation" binding:"required"`
}

// EstimateGasResponse carries the profile plus the reasonable-price flag the
// UI uses to warn (never to block).
type EstimateGasResponse struct {
	Profile    GasProfileResponse `json:"profile"`
	Reasonable bool               `json:"reasonable"`
}

// EstimateGas previews the gas profile for an intent
// @Summary Preview a gas profile
// @Tags Gas
// @Accept json
// @Produce json
// @Param request body EstimateGasRequest true "Transaction intent"
// @Success 200 {object} EstimateGasResponse
// @Failure 400 {object} ErrorResponse
// @Router /gas/estimate [post]
func (h *TransactionHandler) EstimateGas(c *gin.Context) {
	var req EstimateGasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	txReq, err := h.toBusinessRequest(ExecuteTransactionRequest{
		From:      req.From,
		To:        req.To,
		ValueWei:  req.ValueWei,
		Data:      req.Data,
		Operation: req.Operation,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	estimator := h.executor.Estimator()
	profile := estimator.Estimate(c.Request.Context(), txReq)

	c.JSON(http.StatusOK, EstimateGasResponse{
		Profile:    toGasProfileResponse(profile),
		Reasonable: estimator.WithinPriceCeiling(profile),
	})
}

func (h *TransactionHandler) toBusinessRequest(req ExecuteTransactionRequest) (business.TransactionRequest, error) {
	operation := business.OperationType(req.Operation)
	if !operation.IsValid() {
		return business.TransactionRequest{}, fmt.Errorf("unknown operation %q", req.Operation)
	}

	var value *big.Int
	if req.ValueWei != "" {
		parsed, ok := new(big.Int).SetString(req.ValueWei, 10)
		if !ok || parsed.Sign() < 0 {
			return business.TransactionRequest{}, fmt.Errorf("value_wei must be a non-negative decimal integer")
		}
		value = parsed
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	return business.TransactionRequest{
		From:          req.From,
		To:            req.To,
		Value:         value,
		Data:          common.FromHex(req.Data),
		Operation:     operation,
		CorrelationID: correlationID,
	}, nil
}

func (h *TransactionHandler) respondClassified(c *gin.Context, err error) {
	var classified *business.ClassifiedError
	if !errors.As(err, &classified) {
		h.logger.Error("Unclassified execution error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	status := http.StatusUnprocessableEntity
	switch classified.Kind {
	case business.ErrKindValidation, business.ErrKindUserRejected:
		status = http.StatusBadRequest
	case business.ErrKindNetwork:
		status = http.StatusBadGateway
	}

	c.JSON(status, ErrorResponse{
		Error: classified.Message,
		Kind:  string(classified.Kind),
	})
}

func toTransactionResponse(record *business.TransactionRecord) TransactionResponse {
	return TransactionResponse{
		CorrelationID: record.CorrelationID,
		Hash:          record.Hash,
		State:         string(record.State),
		Attempts:      record.Attempts,
		GasProfile:    toGasProfileResponse(record.GasProfile),
	}
}

func toGasProfileResponse(profile business.GasProfile) GasProfileResponse {
	resp := GasProfileResponse{GasLimit: profile.GasLimit}
	if profile.MaxFeePerGas != nil {
		resp.MaxFeePerGas = profile.MaxFeePerGas.String()
	}
	if profile.MaxPriorityFeePerGas != nil {
		resp.MaxPriorityFeePerGas = profile.MaxPriorityFeePerGas.String()
	}
	return resp
}
