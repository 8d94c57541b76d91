package chain_test

import (
	"context"
	"math/big"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winsave/winsave-api/chain"
	"github.com/winsave/winsave-api/types/business"
)

var hashPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

func simRequest(correlationID string) business.TransactionRequest {
	return business.TransactionRequest{
		From:          "0x1111111111111111111111111111111111111111",
		To:            "0x2222222222222222222222222222222222222222",
		Value:         big.NewInt(1000),
		Operation:     business.OperationDeposit,
		CorrelationID: correlationID,
	}
}

func simProfile() business.GasProfile {
	return business.GasProfile{
		GasLimit:             180000,
		MaxFeePerGas:         big.NewInt(2_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(100_000_000),
	}
}

func TestSimulatorHashesAreWellFormedAndDeterministic(t *testing.T) {
	ctx := context.Background()

	a := chain.NewSimulator(chain.DefaultSimulatorConfig())
	b := chain.NewSimulator(chain.DefaultSimulatorConfig())

	hashA, err := a.SendTransaction(ctx, simRequest("corr-1"), simProfile())
	require.NoError(t, err)
	hashB, err := b.SendTransaction(ctx, simRequest("corr-1"), simProfile())
	require.NoError(t, err)

	assert.Regexp(t, hashPattern, hashA)
	assert.Equal(t, hashA, hashB, "same correlation id and counter must hash identically")

	// A second submission on the same simulator gets a distinct hash even for
	// the same correlation id.
	hashA2, err := a.SendTransaction(ctx, simRequest("corr-1"), simProfile())
	require.NoError(t, err)
	assert.Regexp(t, hashPattern, hashA2)
	assert.NotEqual(t, hashA, hashA2)
}

func TestSimulatorReceiptAppearsAfterLatency(t *testing.T) {
	ctx := context.Background()
	cfg := chain.DefaultSimulatorConfig()
	cfg.ConfirmLatency = 30 * time.Millisecond
	sim := chain.NewSimulator(cfg)

	hash, err := sim.SendTransaction(ctx, simRequest("corr-latency"), simProfile())
	require.NoError(t, err)

	_, err = sim.Receipt(ctx, hash)
	assert.ErrorIs(t, err, chain.ErrNotFound)

	details, err := sim.TransactionByHash(ctx, hash)
	require.NoError(t, err)
	assert.True(t, details.Pending)

	time.Sleep(50 * time.Millisecond)

	receipt, err := sim.Receipt(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Status)
	assert.Equal(t, uint64(180000*3/4), receipt.GasUsed)
	assert.NotNil(t, receipt.EffectiveGasPrice)

	details, err = sim.TransactionByHash(ctx, hash)
	require.NoError(t, err)
	assert.False(t, details.Pending)
}

func TestSimulatorForcedFailure(t *testing.T) {
	cfg := chain.DefaultSimulatorConfig()
	cfg.FailSubmissions = true
	sim := chain.NewSimulator(cfg)

	hash, err := sim.SendTransaction(context.Background(), simRequest("corr-fail"), simProfile())
	require.Error(t, err)
	assert.Empty(t, hash)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestSimulatorRevertedReceipts(t *testing.T) {
	ctx := context.Background()
	cfg := chain.DefaultSimulatorConfig()
	cfg.ConfirmLatency = 10 * time.Millisecond
	cfg.RevertReceipts = true
	sim := chain.NewSimulator(cfg)

	hash, err := sim.SendTransaction(ctx, simRequest("corr-revert"), simProfile())
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	receipt, err := sim.Receipt(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), receipt.Status)
}

func TestSimulatorUnknownHash(t *testing.T) {
	sim := chain.NewSimulator(chain.DefaultSimulatorConfig())
	ctx := context.Background()

	_, err := sim.Receipt(ctx, "0xmissing")
	assert.ErrorIs(t, err, chain.ErrNotFound)

	_, err = sim.TransactionByHash(ctx, "0xmissing")
	assert.ErrorIs(t, err, chain.ErrNotFound)
}

func TestSimulatorStaticReads(t *testing.T) {
	cfg := chain.DefaultSimulatorConfig()
	cfg.GasEstimate = 99000
	cfg.GasPriceWei = big.NewInt(5_000_000_000)
	sim := chain.NewSimulator(cfg)
	ctx := context.Background()

	gas, err := sim.EstimateGas(ctx, simRequest("corr-static"))
	require.NoError(t, err)
	assert.Equal(t, uint64(99000), gas)

	price, err := sim.GasPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5_000_000_000), price)

	head, err := sim.BlockNumber(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, head, uint64(1))
}
