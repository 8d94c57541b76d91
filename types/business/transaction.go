package business

import (
	"math/big"
	"time"
)

// OperationType tags a transaction request with the product operation it
// performs. Static gas profiles are keyed by this tag.
type OperationType string

const (
	OperationDeposit      OperationType = "deposit"
	OperationWithdraw     OperationType = "withdraw"
	OperationApproval     OperationType = "approval"
	OperationVerification OperationType = "verification"
	OperationLottery      OperationType = "lottery"
)

// KnownOperationTypes lists every operation the executor accepts.
func KnownOperationTypes() []OperationType {
	return []OperationType{
		OperationDeposit,
		OperationWithdraw,
		OperationApproval,
		OperationVerification,
		OperationLottery,
	}
}

// IsValid reports whether the operation type is one the executor accepts.
func (o OperationType) IsValid() bool {
	switch o {
	case OperationDeposit, OperationWithdraw, OperationApproval,
		OperationVerification, OperationLottery:
		return true
	}
	return false
}

// TransactionState tracks a transaction record through the executor's
// state machine.
type TransactionState string

const (
	StateIdle       TransactionState = "idle"
	StateEstimating TransactionState = "estimating"
	StateSubmitting TransactionState = "submitting"
	StatePending    TransactionState = "pending"
	StateConfirming TransactionState = "confirming"
	StateConfirmed  TransactionState = "confirmed"
	StateFailed     TransactionState = "failed"
	StateTimedOut   TransactionState = "timed_out"
)

// IsTerminal reports whether the state ends an execute attempt. Terminal
// records only move again via an explicit reset back to idle.
func (s TransactionState) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed || s == StateTimedOut
}

// TransactionRequest describes a caller intent ("deposit X tokens").
// Immutable once created; the executor never modifies it.
type TransactionRequest struct {
	// From is the sending wallet address (hex).
	From string
	// To is the target contract or wallet address (hex).
	To string
	// Value is the native token amount in wei. Nil means zero.
	Value *big.Int
	// Data is the optional call data.
	Data []byte
	// Operation selects the static gas profile used when live estimation
	// fails.
	Operation OperationType
	// CorrelationID is an opaque caller-supplied identifier carried through
	// logs and callbacks.
	CorrelationID string
}

// GasProfile is the fee triple governing transaction cost and priority.
// All values are non-negative; MaxPriorityFeePerGas never exceeds
// MaxFeePerGas. Profiles are produced fresh per request and replaced, never
// mutated.
type GasProfile struct {
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// TransactionRecord is the executor-owned view of one execute attempt. It is
// owned exclusively by the executor instance that created it and must not be
// shared across executors.
type TransactionRecord struct {
	CorrelationID string
	Request       TransactionRequest
	GasProfile    GasProfile
	// Hash is empty until submission succeeds.
	Hash      string
	State     TransactionState
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Outcome is the terminal result of watching a transaction hash.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeReverted Outcome = "reverted"
	OutcomeTimedOut Outcome = "timed_out"
)

// ConfirmationResult reports the terminal outcome of a confirmation watch.
// BlockNumber, GasUsed and EffectiveGasPrice are set only for Success and
// Reverted outcomes.
type ConfirmationResult struct {
	Hash              string
	Outcome           Outcome
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// StatusSnapshot is the result of an idempotent status query. Pending means
// the chain has not produced a receipt yet (or the query could not reach the
// chain); callers should query again rather than treat it as failure.
type StatusSnapshot struct {
	Hash    string
	Pending bool
	Result  *ConfirmationResult
}
