package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/winsave/winsave-api/chain"
	"github.com/winsave/winsave-api/logger"
	"github.com/winsave/winsave-api/types/business"
	"go.uber.org/zap"
)

// ExecutorConfig enumerates the knobs of the transaction lifecycle manager.
type ExecutorConfig struct {
	GasLimitMultiplier   float64
	GasPriceMultiplier   float64
	DefaultConfirmations int
	DefaultTimeout       time.Duration
	PollInterval         time.Duration
	MaxReasonableFeeWei  *big.Int
	StaticGasProfiles    map[business.OperationType]business.GasProfile
}

// DefaultExecutorConfig returns production defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		GasLimitMultiplier:   DefaultGasLimitMultiplier,
		GasPriceMultiplier:   DefaultGasPriceMultiplier,
		DefaultConfirmations: 1,
		DefaultTimeout:       DefaultWatchTimeout,
		PollInterval:         DefaultPollInterval,
		MaxReasonableFeeWei:  new(big.Int).Set(DefaultMaxReasonableFeeWei),
		StaticGasProfiles:    DefaultStaticGasProfiles(),
	}
}

// ExecuteOptions carries per-call confirmation policy and the optional
// callback surface. Each callback is invoked at most once per terminal
// transition per Execute call, on the watcher goroutine.
type ExecuteOptions struct {
	Confirmations int
	Timeout       time.Duration

	OnSubmitted func(hash string)
	OnConfirmed func(result business.ConfirmationResult)
	OnFailed    func(err *business.ClassifiedError)
	OnTimedOut  func(hash string)
}

// validTransitions encodes the record state machine. Any state may
// additionally return to idle via an explicit reset.
var validTransitions = map[business.TransactionState][]business.TransactionState{
	business.StateIdle:       {business.StateEstimating},
	business.StateEstimating: {business.StateSubmitting},
	business.StateSubmitting: {business.StatePending, business.StateFailed},
	business.StatePending:    {business.StateConfirming},
	business.StateConfirming: {business.StateConfirmed, business.StateTimedOut},
}

// TransactionExecutor turns a caller intent into a submitted, confirmed (or
// failed) transaction: estimate, submit, then track confirmations
// asynchronously, reporting terminal state through callbacks.
//
// An executor instance and the records it creates belong to one logical
// caller. Submissions are never auto-retried: a duplicate send risks a
// double-spend, so retrying is an explicit new Execute call by the caller.
// Confirmation watching, by contrast, is independently retryable via Track
// and GetStatus.
type TransactionExecutor struct {
	provider   chain.Provider
	estimator  *GasEstimator
	watcher    *ConfirmationWatcher
	classifier *ErrorClassifier
	config     ExecutorConfig
	logger     *zap.Logger

	mu      sync.Mutex
	watches map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewTransactionExecutor wires the lifecycle manager onto a provider. The
// provider decides whether this talks to a real chain or the dev simulator;
// the executor is agnostic.
func NewTransactionExecutor(provider chain.Provider, config ExecutorConfig) *TransactionExecutor {
	defaults := DefaultExecutorConfig()
	if config.DefaultConfirmations < 1 {
		config.DefaultConfirmations = defaults.DefaultConfirmations
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = defaults.DefaultTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}

	estimator := NewGasEstimator(provider, GasEstimatorConfig{
		GasLimitMultiplier:  config.GasLimitMultiplier,
		GasPriceMultiplier:  config.GasPriceMultiplier,
		MaxReasonableFeeWei: config.MaxReasonableFeeWei,
		StaticProfiles:      config.StaticGasProfiles,
	})

	return &TransactionExecutor{
		provider:   provider,
		estimator:  estimator,
		watcher:    NewConfirmationWatcher(provider, config.PollInterval),
		classifier: NewErrorClassifier(),
		config:     config,
		logger:     logger.Log,
		watches:    make(map[string]context.CancelFunc),
	}
}

// Estimator exposes the gas estimator for profile previews.
func (e *TransactionExecutor) Estimator() *GasEstimator {
	return e.estimator
}

// Snapshot copies the record under the executor's lock, safe to read while a
// watch goroutine is still transitioning it.
func (e *TransactionExecutor) Snapshot(record *business.TransactionRecord) business.TransactionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *record
}

// Execute validates, estimates, submits, and starts confirmation tracking.
// The returned record is owned by this executor; the caller reads it but must
// not share it across executors.
//
// Estimation failures are absorbed by the estimator's static fallback.
// Submission failures are terminal for this attempt and reported both as the
// returned error and through OnFailed.
func (e *TransactionExecutor) Execute(ctx context.Context, req business.TransactionRequest, opts ExecuteOptions) (*business.TransactionRecord, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	now := time.Now()
	record := &business.TransactionRecord{
		CorrelationID: req.CorrelationID,
		Request:       req,
		State:         business.StateIdle,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := validateRequest(req); err != nil {
		classified := NewClassifiedError(business.ErrKindValidation, err)
		e.logger.Info("Rejected invalid transaction request",
			zap.String("correlation_id", req.CorrelationID),
			zap.Error(err))
		return record, classified
	}

	e.transition(record, business.StateEstimating)
	profile := e.estimator.Estimate(ctx, req)

	e.mu.Lock()
	record.GasProfile = profile
	record.Attempts++
	e.mu.Unlock()
	e.transition(record, business.StateSubmitting)

	hash, err := e.provider.SendTransaction(ctx, req, profile)
	if err != nil {
		classified := e.classifier.Classify(err)
		e.transition(record, business.StateFailed)
		e.logger.Error("Transaction submission failed",
			zap.String("correlation_id", req.CorrelationID),
			zap.String("operation", string(req.Operation)),
			zap.String("error_kind", string(classified.Kind)),
			zap.Error(err))
		if opts.OnFailed != nil {
			opts.OnFailed(classified)
		}
		return record, classified
	}

	e.mu.Lock()
	record.Hash = hash
	e.mu.Unlock()
	e.transition(record, business.StatePending)

	e.logger.Info("Transaction submitted",
		zap.String("correlation_id", req.CorrelationID),
		zap.String("operation", string(req.Operation)),
		zap.String("tx_hash", hash),
		zap.Uint64("gas_limit", profile.GasLimit))

	if opts.OnSubmitted != nil {
		opts.OnSubmitted(hash)
	}

	e.startWatch(record, opts)
	return record, nil
}

// GetStatus is an idempotent, side-effect-free snapshot of a hash, usable at
// any time and independent of any active watch. It never returns an error:
// anything short of a settled receipt reads as pending, meaning "unknown,
// query again".
func (e *TransactionExecutor) GetStatus(ctx context.Context, hash string) business.StatusSnapshot {
	receipt, err := e.provider.Receipt(ctx, hash)
	if err != nil {
		return business.StatusSnapshot{Hash: hash, Pending: true}
	}
	return business.StatusSnapshot{
		Hash:   hash,
		Result: resultFromReceipt(receipt),
	}
}

// Track re-arms confirmation watching for an already-submitted hash, e.g.
// after a previous watch timed out. It does not resubmit anything and leaves
// records untouched; results surface only through the given callbacks.
func (e *TransactionExecutor) Track(hash string, opts ExecuteOptions) error {
	if hash == "" {
		return fmt.Errorf("cannot track an empty transaction hash")
	}

	e.mu.Lock()
	if _, active := e.watches[hash]; active {
		e.mu.Unlock()
		return fmt.Errorf("a watch is already active for %s", hash)
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	e.watches[hash] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.clearWatch(hash)
		e.runWatch(watchCtx, hash, nil, opts)
	}()
	return nil
}

// Reset clears a record back to idle. It cancels any in-flight watch for the
// record's hash but does not affect on-chain state.
func (e *TransactionExecutor) Reset(record *business.TransactionRecord) {
	e.mu.Lock()
	if record.Hash != "" {
		if cancel, ok := e.watches[record.Hash]; ok {
			cancel()
			delete(e.watches, record.Hash)
		}
	}
	record.State = business.StateIdle
	record.Hash = ""
	record.GasProfile = business.GasProfile{}
	record.UpdatedAt = time.Now()
	e.mu.Unlock()
}

// CancelWatch stops the in-flight watch for a hash, if any. The watch
// resolves silently: no completion callback fires. Cancelling a hash with no
// active watch is a no-op.
func (e *TransactionExecutor) CancelWatch(hash string) {
	e.mu.Lock()
	cancel, ok := e.watches[hash]
	if ok {
		delete(e.watches, hash)
	}
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close cancels all in-flight watches and waits for their goroutines.
func (e *TransactionExecutor) Close() {
	e.mu.Lock()
	for hash, cancel := range e.watches {
		cancel()
		delete(e.watches, hash)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// startWatch launches the fire-and-track goroutine for a fresh submission.
func (e *TransactionExecutor) startWatch(record *business.TransactionRecord, opts ExecuteOptions) {
	hash := record.Hash

	e.mu.Lock()
	watchCtx, cancel := context.WithCancel(context.Background())
	e.watches[hash] = cancel
	e.mu.Unlock()

	e.transition(record, business.StateConfirming)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.clearWatch(hash)
		e.runWatch(watchCtx, hash, record, opts)
	}()
}

// runWatch drives one confirmation watch and dispatches the terminal
// callback. A nil record means a record-free re-watch (Track).
func (e *TransactionExecutor) runWatch(ctx context.Context, hash string, record *business.TransactionRecord, opts ExecuteOptions) {
	confirmations := opts.Confirmations
	if confirmations < 1 {
		confirmations = e.config.DefaultConfirmations
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}

	result, err := e.watcher.Watch(ctx, hash, confirmations, timeout)
	if err != nil {
		// Cancelled. Stop without side effects: no state change, no callback.
		return
	}

	switch result.Outcome {
	case business.OutcomeTimedOut:
		if record != nil {
			e.transition(record, business.StateTimedOut)
		}
		e.logger.Warn("Confirmation watch timed out, transaction may still confirm",
			zap.String("tx_hash", hash))
		if opts.OnTimedOut != nil {
			opts.OnTimedOut(hash)
		}
	default:
		if record != nil {
			e.transition(record, business.StateConfirmed)
		}
		e.logger.Info("Transaction settled",
			zap.String("tx_hash", hash),
			zap.String("outcome", string(result.Outcome)),
			zap.Uint64("block_number", result.BlockNumber),
			zap.Uint64("gas_used", result.GasUsed))
		if opts.OnConfirmed != nil {
			opts.OnConfirmed(*result)
		}
	}
}

func (e *TransactionExecutor) clearWatch(hash string) {
	e.mu.Lock()
	delete(e.watches, hash)
	e.mu.Unlock()
}

// transition moves the record through the state machine, ignoring (and
// logging) moves the machine does not allow. Reset is the only path back to
// idle and bypasses this guard.
func (e *TransactionExecutor) transition(record *business.TransactionRecord, next business.TransactionState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	allowed := false
	for _, s := range validTransitions[record.State] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		e.logger.Error("Ignoring invalid state transition",
			zap.String("correlation_id", record.CorrelationID),
			zap.String("from", string(record.State)),
			zap.String("to", string(next)))
		return
	}

	record.State = next
	record.UpdatedAt = time.Now()
}

// validateRequest fails fast before any network call.
func validateRequest(req business.TransactionRequest) error {
	if req.To == "" {
		return fmt.Errorf("target address is required")
	}
	if !common.IsHexAddress(req.To) {
		return fmt.Errorf("target address %q is not a valid address", req.To)
	}
	if req.From == "" {
		return fmt.Errorf("sender wallet address is required")
	}
	if !common.IsHexAddress(req.From) {
		return fmt.Errorf("sender address %q is not a valid address", req.From)
	}
	if req.Value != nil && req.Value.Sign() < 0 {
		return fmt.Errorf("value must not be negative")
	}
	if !req.Operation.IsValid() {
		return fmt.Errorf("unknown operation type %q", req.Operation)
	}
	return nil
}
