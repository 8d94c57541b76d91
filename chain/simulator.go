package chain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/winsave/winsave-api/types/business"
)

// SimulatorConfig controls the deterministic dev-mode provider.
type SimulatorConfig struct {
	// ConfirmLatency is how long a submitted transaction stays pending
	// before a receipt appears.
	ConfirmLatency time.Duration
	// BlockTime drives the simulated head height used for confirmation
	// depth.
	BlockTime time.Duration
	// GasEstimate is the raw gas returned by EstimateGas.
	GasEstimate uint64
	// GasPriceWei is the suggested gas price.
	GasPriceWei *big.Int
	// FailSubmissions makes every SendTransaction return an insufficient
	// funds error, exercising the failed path.
	FailSubmissions bool
	// RevertReceipts makes every mined receipt carry a reverted status.
	RevertReceipts bool
}

// DefaultSimulatorConfig returns the settings used by non-production stages.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		ConfirmLatency: 2 * time.Second,
		BlockTime:      2 * time.Second,
		GasEstimate:    120000,
		GasPriceWei:    big.NewInt(1_000_000_000), // 1 gwei
	}
}

type simulatedTx struct {
	request     business.TransactionRequest
	profile     business.GasProfile
	submittedAt time.Time
	blockNumber uint64
}

// Simulator implements the Provider contract without touching a chain. Hashes
// are deterministic per (correlation id, submission counter), fixed-length and
// hex-encoded, so dev flows and tests are reproducible.
type Simulator struct {
	cfg     SimulatorConfig
	startAt time.Time

	mu      sync.Mutex
	counter uint64
	txs     map[string]*simulatedTx
}

// NewSimulator creates a dev-mode provider. Whether the simulator or the real
// binding is used is decided once, at provider construction, by the host
// application's stage flag.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.ConfirmLatency <= 0 {
		cfg.ConfirmLatency = DefaultSimulatorConfig().ConfirmLatency
	}
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = DefaultSimulatorConfig().BlockTime
	}
	if cfg.GasEstimate == 0 {
		cfg.GasEstimate = DefaultSimulatorConfig().GasEstimate
	}
	if cfg.GasPriceWei == nil {
		cfg.GasPriceWei = DefaultSimulatorConfig().GasPriceWei
	}
	return &Simulator{
		cfg:     cfg,
		startAt: time.Now(),
		txs:     make(map[string]*simulatedTx),
	}
}

// EstimateGas returns the configured static estimate.
func (s *Simulator) EstimateGas(_ context.Context, _ business.TransactionRequest) (uint64, error) {
	return s.cfg.GasEstimate, nil
}

// GasPrice returns the configured static price.
func (s *Simulator) GasPrice(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.cfg.GasPriceWei), nil
}

// SendTransaction records the submission and returns a deterministic hash.
func (s *Simulator) SendTransaction(_ context.Context, req business.TransactionRequest, profile business.GasProfile) (string, error) {
	if s.cfg.FailSubmissions {
		return "", errors.New("insufficient funds for gas * price + value")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	hash := simulatedHash(req.CorrelationID, s.counter)
	s.txs[hash] = &simulatedTx{
		request:     req,
		profile:     profile,
		submittedAt: time.Now(),
		blockNumber: s.headLocked() + 1,
	}
	return hash, nil
}

// TransactionByHash reports the pending flag based on the confirm latency.
func (s *Simulator) TransactionByHash(_ context.Context, hash string) (*TransactionDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return &TransactionDetails{
		Hash:    hash,
		Pending: time.Since(tx.submittedAt) < s.cfg.ConfirmLatency,
	}, nil
}

// Receipt becomes available once the confirm latency has elapsed.
func (s *Simulator) Receipt(_ context.Context, hash string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[hash]
	if !ok {
		return nil, ErrNotFound
	}
	if time.Since(tx.submittedAt) < s.cfg.ConfirmLatency {
		return nil, ErrNotFound
	}

	status := uint64(1)
	if s.cfg.RevertReceipts {
		status = 0
	}
	gasUsed := tx.profile.GasLimit * 3 / 4
	return &Receipt{
		Hash:              hash,
		Status:            status,
		BlockNumber:       tx.blockNumber,
		GasUsed:           gasUsed,
		EffectiveGasPrice: new(big.Int).Set(s.cfg.GasPriceWei),
	}, nil
}

// BlockNumber advances with wall-clock time at the configured block time.
func (s *Simulator) BlockNumber(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headLocked(), nil
}

func (s *Simulator) headLocked() uint64 {
	return uint64(time.Since(s.startAt)/s.cfg.BlockTime) + 1
}

// simulatedHash derives a fixed-length hex hash from the correlation id and
// submission counter.
func simulatedHash(correlationID string, counter uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)
	sum := sha256.Sum256(append([]byte(correlationID), buf[:]...))
	return fmt.Sprintf("0x%s", hex.EncodeToString(sum[:]))
}
