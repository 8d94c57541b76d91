package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/winsave/winsave-api/chain"
	"github.com/winsave/winsave-api/logger"
	"github.com/winsave/winsave-api/types/business"
	"go.uber.org/zap"
)

const (
	// DefaultPollInterval bounds how often the chain is asked for a receipt.
	DefaultPollInterval = 2 * time.Second
	// DefaultWatchTimeout caps the wall-clock time of one watch.
	DefaultWatchTimeout = 60 * time.Second
)

// ConfirmationWatcher polls for a transaction receipt until the required
// confirmation depth is met, the timeout elapses, or the caller cancels.
//
// A timeout is not a failure: the transaction may still confirm later
// out-of-band, and status can always be re-queried independently of any watch.
type ConfirmationWatcher struct {
	provider     chain.Provider
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewConfirmationWatcher creates a watcher polling at the given interval.
// Non-positive intervals fall back to the default.
func NewConfirmationWatcher(provider chain.Provider, pollInterval time.Duration) *ConfirmationWatcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &ConfirmationWatcher{
		provider:     provider,
		pollInterval: pollInterval,
		logger:       logger.Log,
	}
}

// Watch blocks until the hash reaches the required confirmation depth, the
// timeout elapses (OutcomeTimedOut result, nil error), or ctx is cancelled
// (nil result, ctx error). Cancellation is checked at every poll tick and
// stops polling without side effects.
func (w *ConfirmationWatcher) Watch(ctx context.Context, hash string, requiredConfirmations int, timeout time.Duration) (*business.ConfirmationResult, error) {
	if timeout <= 0 {
		timeout = DefaultWatchTimeout
	}
	if requiredConfirmations < 1 {
		requiredConfirmations = 1
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := backoff.NewTicker(backoff.NewConstantBackOff(w.pollInterval))
	defer ticker.Stop()

	var receipt *chain.Receipt
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Confirmation watch cancelled",
				zap.String("tx_hash", hash))
			return nil, ctx.Err()

		case <-deadline.C:
			w.logger.Info("Confirmation watch timed out",
				zap.String("tx_hash", hash),
				zap.Duration("timeout", timeout))
			return &business.ConfirmationResult{
				Hash:    hash,
				Outcome: business.OutcomeTimedOut,
			}, nil

		case <-ticker.C:
			if receipt == nil {
				r, err := w.provider.Receipt(ctx, hash)
				if err != nil {
					if !errors.Is(err, chain.ErrNotFound) {
						// Transient lookup failures keep the watch alive; the
						// hard timeout bounds the loop regardless.
						w.logger.Debug("Receipt lookup failed, will retry",
							zap.String("tx_hash", hash),
							zap.Error(err))
					}
					continue
				}
				receipt = r
			}

			if requiredConfirmations <= 1 {
				return resultFromReceipt(receipt), nil
			}

			head, err := w.provider.BlockNumber(ctx)
			if err != nil {
				w.logger.Debug("Block number lookup failed, will retry",
					zap.String("tx_hash", hash),
					zap.Error(err))
				continue
			}
			// Inclusion counts as the first confirmation.
			if head >= receipt.BlockNumber+uint64(requiredConfirmations)-1 {
				return resultFromReceipt(receipt), nil
			}
		}
	}
}

func resultFromReceipt(receipt *chain.Receipt) *business.ConfirmationResult {
	outcome := business.OutcomeSuccess
	if receipt.Status == 0 {
		outcome = business.OutcomeReverted
	}
	return &business.ConfirmationResult{
		Hash:              receipt.Hash,
		Outcome:           outcome,
		BlockNumber:       receipt.BlockNumber,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
	}
}
