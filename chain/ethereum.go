package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/winsave/winsave-api/logger"
	"github.com/winsave/winsave-api/types/business"
	"go.uber.org/zap"
)

// RPCProvider binds the Provider contract to a real JSON-RPC endpoint via
// go-ethereum's ethclient. Submissions are signed locally with the
// configured signer; everything else is a plain read.
type RPCProvider struct {
	client  *ethclient.Client
	signer  Signer
	chainID *big.Int
	logger  *zap.Logger
}

// DialRPC connects to the RPC endpoint and captures the chain ID once. The
// signer may be nil for read-only use; SendTransaction then fails.
func DialRPC(ctx context.Context, rpcURL string, signer Signer) (*RPCProvider, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	logger.Info("Connected to chain RPC",
		zap.String("chain_id", chainID.String()))

	return &RPCProvider{
		client:  client,
		signer:  signer,
		chainID: chainID,
		logger:  logger.Log,
	}, nil
}

// EstimateGas asks the node for the raw gas units of the call.
func (p *RPCProvider) EstimateGas(ctx context.Context, req business.TransactionRequest) (uint64, error) {
	to := common.HexToAddress(req.To)
	msg := ethereum.CallMsg{
		From:  common.HexToAddress(req.From),
		To:    &to,
		Value: valueOrZero(req.Value),
		Data:  req.Data,
	}

	gas, err := p.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

// GasPrice returns the node's suggested gas price in wei.
func (p *RPCProvider) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return price, nil
}

// SendTransaction signs and broadcasts a dynamic-fee transaction built from
// the request and gas profile. The nonce comes from the node's pending pool;
// nonce races between concurrent submissions surface as provider errors and
// are classified upstream.
func (p *RPCProvider) SendTransaction(ctx context.Context, req business.TransactionRequest, profile business.GasProfile) (string, error) {
	if p.signer == nil {
		return "", fmt.Errorf("provider has no signer configured")
	}

	from := common.HexToAddress(req.From)
	nonce, err := p.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("failed to get pending nonce: %w", err)
	}

	to := common.HexToAddress(req.To)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   p.chainID,
		Nonce:     nonce,
		GasTipCap: profile.MaxPriorityFeePerGas,
		GasFeeCap: profile.MaxFeePerGas,
		Gas:       profile.GasLimit,
		To:        &to,
		Value:     valueOrZero(req.Value),
		Data:      req.Data,
	})

	signedTx, err := p.signer.SignTx(tx, p.chainID)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := p.client.SendTransaction(ctx, signedTx); err != nil {
		return "", err
	}

	hash := signedTx.Hash().Hex()
	p.logger.Info("Broadcast transaction",
		zap.String("tx_hash", hash),
		zap.String("operation", string(req.Operation)),
		zap.String("correlation_id", req.CorrelationID),
		zap.Uint64("nonce", nonce))

	return hash, nil
}

// TransactionByHash looks up a transaction, mapping the node's not-found
// answer to ErrNotFound.
func (p *RPCProvider) TransactionByHash(ctx context.Context, hash string) (*TransactionDetails, error) {
	tx, isPending, err := p.client.TransactionByHash(ctx, common.HexToHash(hash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &TransactionDetails{
		Hash:    hash,
		Pending: isPending,
		Nonce:   tx.Nonce(),
	}, nil
}

// Receipt fetches the receipt for a mined transaction. Pending and unknown
// hashes both return ErrNotFound.
func (p *RPCProvider) Receipt(ctx context.Context, hash string) (*Receipt, error) {
	receipt, err := p.client.TransactionReceipt(ctx, common.HexToHash(hash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	return &Receipt{
		Hash:              hash,
		Status:            receipt.Status,
		BlockNumber:       receipt.BlockNumber.Uint64(),
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
	}, nil
}

// BlockNumber returns the current head block number.
func (p *RPCProvider) BlockNumber(ctx context.Context) (uint64, error) {
	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return head, nil
}

// Close releases the underlying RPC connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}

func valueOrZero(value *big.Int) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	return value
}
