package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/winsave/winsave-api/types/business"
)

// ErrNotFound is returned by TransactionByHash and Receipt when the chain has
// no record of the hash yet. A missing receipt is expected while a
// transaction is pending and is not a failure.
var ErrNotFound = errors.New("not found")

// TransactionDetails describes a transaction as the chain currently sees it.
type TransactionDetails struct {
	Hash    string
	Pending bool
	Nonce   uint64
}

// Receipt is the settled result of a mined transaction. Status follows the
// EVM convention: 1 success, 0 reverted.
type Receipt struct {
	Hash              string
	Status            uint64
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// Provider is the capability set the transaction lifecycle manager needs
// from the chain. The real RPC binding and the dev-mode simulator both
// satisfy it; the executor is agnostic to which one it is bound to.
//
// Providers are treated as stateless from this subsystem's perspective: no
// nonce or balance caching happens above this interface.
type Provider interface {
	// EstimateGas returns the raw gas units the chain expects the request to
	// consume, without any safety buffer.
	EstimateGas(ctx context.Context, req business.TransactionRequest) (uint64, error)

	// GasPrice returns the current suggested gas price in wei.
	GasPrice(ctx context.Context) (*big.Int, error)

	// SendTransaction submits the request with the given gas profile and
	// returns the transaction hash.
	SendTransaction(ctx context.Context, req business.TransactionRequest, profile business.GasProfile) (string, error)

	// TransactionByHash looks up a transaction. Returns ErrNotFound if the
	// chain does not know the hash.
	TransactionByHash(ctx context.Context, hash string) (*TransactionDetails, error)

	// Receipt looks up the receipt for a mined transaction. Returns
	// ErrNotFound while the transaction is pending or unknown.
	Receipt(ctx context.Context, hash string) (*Receipt, error)

	// BlockNumber returns the current chain head, used to measure
	// confirmation depth.
	BlockNumber(ctx context.Context) (uint64, error)
}
