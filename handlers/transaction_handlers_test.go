package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winsave/winsave-api/chain"
	"github.com/winsave/winsave-api/handlers"
	"github.com/winsave/winsave-api/logger"
	"github.com/winsave/winsave-api/server"
	"github.com/winsave/winsave-api/services"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitLogger("test")
}

func newTestRouter(t *testing.T, simCfg chain.SimulatorConfig) (*gin.Engine, *services.TransactionExecutor) {
	t.Helper()

	cfg := services.DefaultExecutorConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.DefaultTimeout = 2 * time.Second

	executor := services.NewTransactionExecutor(chain.NewSimulator(simCfg), cfg)
	t.Cleanup(executor.Close)

	txHandler := handlers.NewTransactionHandler(executor, logger.Log)
	healthHandler := handlers.NewHealthHandler("test")
	return server.NewRouter(txHandler, healthHandler), executor
}

func fastSimConfig() chain.SimulatorConfig {
	cfg := chain.DefaultSimulatorConfig()
	cfg.ConfirmLatency = 20 * time.Millisecond
	cfg.BlockTime = 20 * time.Millisecond
	return cfg
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestExecuteTransactionEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, fastSimConfig())

	w := postJSON(router, "/api/v1/transactions", handlers.ExecuteTransactionRequest{
		From:      "0x1111111111111111111111111111111111111111",
		To:        "0x2222222222222222222222222222222222222222",
		ValueWei:  "1000000000000000",
		Operation: "deposit",
	})

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp handlers.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.CorrelationID)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, resp.Hash)
	// The watch is already running when the response is written, so the state
	// is confirming unless the simulator settled first.
	assert.Contains(t, []string{"confirming", "confirmed"}, resp.State)
	assert.Equal(t, 1, resp.Attempts)
	assert.NotZero(t, resp.GasProfile.GasLimit)
}

func TestExecuteTransactionEndpointValidation(t *testing.T) {
	router, _ := newTestRouter(t, fastSimConfig())

	tests := []struct {
		name string
		body handlers.ExecuteTransactionRequest
	}{
		{
			name: "missing recipient",
			body: handlers.ExecuteTransactionRequest{
				From:      "0x1111111111111111111111111111111111111111",
				Operation: "deposit",
			},
		},
		{
			name: "unknown operation",
			body: handlers.ExecuteTransactionRequest{
				From:      "0x1111111111111111111111111111111111111111",
				To:        "0x2222222222222222222222222222222222222222",
				Operation: "teleport",
			},
		},
		{
			name: "negative value",
			body: handlers.ExecuteTransactionRequest{
				From:      "0x1111111111111111111111111111111111111111",
				To:        "0x2222222222222222222222222222222222222222",
				ValueWei:  "-5",
				Operation: "deposit",
			},
		},
		{
			name: "malformed recipient",
			body: handlers.ExecuteTransactionRequest{
				From:      "0x1111111111111111111111111111111111111111",
				To:        "nope",
				Operation: "deposit",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/api/v1/transactions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestExecuteTransactionEndpointSubmissionFailure(t *testing.T) {
	simCfg := fastSimConfig()
	simCfg.FailSubmissions = true
	router, _ := newTestRouter(t, simCfg)

	w := postJSON(router, "/api/v1/transactions", handlers.ExecuteTransactionRequest{
		From:      "0x1111111111111111111111111111111111111111",
		To:        "0x2222222222222222222222222222222222222222",
		Operation: "deposit",
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_funds", resp.Kind)
	assert.NotEmpty(t, resp.Error)
}

func TestGetTransactionStatusEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, fastSimConfig())

	w := postJSON(router, "/api/v1/transactions", handlers.ExecuteTransactionRequest{
		From:      "0x1111111111111111111111111111111111111111",
		To:        "0x2222222222222222222222222222222222222222",
		Operation: "withdraw",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var created handlers.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	statusReq := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+created.Hash, nil)
	sw := httptest.NewRecorder()
	router.ServeHTTP(sw, statusReq)
	require.Equal(t, http.StatusOK, sw.Code)

	var pending handlers.StatusResponse
	require.NoError(t, json.Unmarshal(sw.Body.Bytes(), &pending))
	assert.True(t, pending.Pending)

	// After the simulator's confirm latency the receipt is settled.
	time.Sleep(50 * time.Millisecond)

	sw = httptest.NewRecorder()
	router.ServeHTTP(sw, httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+created.Hash, nil))
	require.Equal(t, http.StatusOK, sw.Code)

	var settled handlers.StatusResponse
	require.NoError(t, json.Unmarshal(sw.Body.Bytes(), &settled))
	assert.False(t, settled.Pending)
	assert.Equal(t, "success", settled.Outcome)
	assert.NotZero(t, settled.GasUsed)
}

func TestEstimateGasEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, fastSimConfig())

	w := postJSON(router, "/api/v1/gas/estimate", handlers.EstimateGasRequest{
		From:      "0x1111111111111111111111111111111111111111",
		To:        "0x2222222222222222222222222222222222222222",
		Operation: "lottery",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.EstimateGasResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// The simulator estimates 120000 raw gas, scaled by 1.2.
	assert.Equal(t, uint64(144000), resp.Profile.GasLimit)
	assert.Equal(t, "1100000000", resp.Profile.MaxFeePerGas)
	assert.Equal(t, "1000000000", resp.Profile.MaxPriorityFeePerGas)
	assert.True(t, resp.Reasonable)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, fastSimConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "test", resp["stage"])
}
