package services

import (
	"context"
	"math"
	"math/big"

	"github.com/winsave/winsave-api/chain"
	"github.com/winsave/winsave-api/logger"
	"github.com/winsave/winsave-api/types/business"
	"go.uber.org/zap"
)

const (
	// DefaultGasLimitMultiplier absorbs estimation variance between the
	// estimate call and inclusion.
	DefaultGasLimitMultiplier = 1.2
	// DefaultGasPriceMultiplier buys headroom against base fee movement.
	DefaultGasPriceMultiplier = 1.1
)

// DefaultMaxReasonableFeeWei is the ceiling above which a fee pair is flagged
// as unreasonable. Used to warn, never to block.
var DefaultMaxReasonableFeeWei = big.NewInt(500_000_000_000) // 500 gwei

// GasEstimatorConfig configures multipliers, the price ceiling and the static
// fallback table.
type GasEstimatorConfig struct {
	// GasLimitMultiplier scales the raw estimate, rounding up. Values below
	// 1.0 are lifted to the default.
	GasLimitMultiplier float64
	// GasPriceMultiplier scales the raw network gas price, rounding up.
	// Values below 1.0 are lifted to the default.
	GasPriceMultiplier float64
	// MaxReasonableFeeWei is the warning ceiling for WithinPriceCeiling.
	MaxReasonableFeeWei *big.Int
	// StaticProfiles is the per-operation fallback table used whenever the
	// live path fails. Every operation type must have an entry.
	StaticProfiles map[business.OperationType]business.GasProfile
}

// DefaultStaticGasProfiles returns the fallback table with safety margins
// already baked in: each limit is the operation's observed floor scaled by
// 1.2 (deposit floor 150000 -> 180000, withdraw 200000 -> 240000, approval
// 55000 -> 66000, verification 350000 -> 420000, lottery 250000 -> 300000).
func DefaultStaticGasProfiles() map[business.OperationType]business.GasProfile {
	fee := big.NewInt(2_000_000_000)    // 2 gwei
	priority := big.NewInt(100_000_000) // 0.1 gwei
	profile := func(limit uint64) business.GasProfile {
		return business.GasProfile{
			GasLimit:             limit,
			MaxFeePerGas:         new(big.Int).Set(fee),
			MaxPriorityFeePerGas: new(big.Int).Set(priority),
		}
	}
	return map[business.OperationType]business.GasProfile{
		business.OperationDeposit:      profile(180000),
		business.OperationWithdraw:     profile(240000),
		business.OperationApproval:     profile(66000),
		business.OperationVerification: profile(420000),
		business.OperationLottery:      profile(300000),
	}
}

// DefaultGasEstimatorConfig returns the production defaults.
func DefaultGasEstimatorConfig() GasEstimatorConfig {
	return GasEstimatorConfig{
		GasLimitMultiplier:  DefaultGasLimitMultiplier,
		GasPriceMultiplier:  DefaultGasPriceMultiplier,
		MaxReasonableFeeWei: new(big.Int).Set(DefaultMaxReasonableFeeWei),
		StaticProfiles:      DefaultStaticGasProfiles(),
	}
}

// GasEstimator computes a gas profile per request, combining live RPC
// estimation with the static fallback table. Estimation never fails: when the
// live path errors the static profile for the request's operation is returned
// and the fallback is logged as a non-fatal event, because a missing estimate
// must not block submission when a reasonable default exists.
type GasEstimator struct {
	provider chain.Provider
	config   GasEstimatorConfig
	logger   *zap.Logger
}

// NewGasEstimator creates a gas estimator. Multipliers below 1.0 and missing
// static entries are replaced with defaults so the fallback table stays total.
func NewGasEstimator(provider chain.Provider, config GasEstimatorConfig) *GasEstimator {
	if config.GasLimitMultiplier < 1.0 {
		config.GasLimitMultiplier = DefaultGasLimitMultiplier
	}
	if config.GasPriceMultiplier < 1.0 {
		config.GasPriceMultiplier = DefaultGasPriceMultiplier
	}
	if config.MaxReasonableFeeWei == nil {
		config.MaxReasonableFeeWei = new(big.Int).Set(DefaultMaxReasonableFeeWei)
	}
	defaults := DefaultStaticGasProfiles()
	if config.StaticProfiles == nil {
		config.StaticProfiles = defaults
	} else {
		for op, profile := range defaults {
			if _, ok := config.StaticProfiles[op]; !ok {
				config.StaticProfiles[op] = profile
			}
		}
	}

	return &GasEstimator{
		provider: provider,
		config:   config,
		logger:   logger.Log,
	}
}

// Estimate returns a usable gas profile for the request. It never returns an
// error.
func (g *GasEstimator) Estimate(ctx context.Context, req business.TransactionRequest) business.GasProfile {
	rawLimit, err := g.provider.EstimateGas(ctx, req)
	if err != nil {
		return g.fallback(req, err)
	}

	rawPrice, err := g.provider.GasPrice(ctx)
	if err != nil {
		return g.fallback(req, err)
	}
	if rawPrice == nil || rawPrice.Sign() < 0 {
		return g.fallback(req, chain.ErrNotFound)
	}

	maxFee := scaleBigCeil(rawPrice, g.config.GasPriceMultiplier)
	// The tip rides at the raw suggested price; the scaled cap absorbs base
	// fee movement. Multiplier >= 1 keeps priority <= max fee.
	priority := new(big.Int).Set(rawPrice)
	if priority.Cmp(maxFee) > 0 {
		priority = new(big.Int).Set(maxFee)
	}

	return business.GasProfile{
		GasLimit:             scaleUintCeil(rawLimit, g.config.GasLimitMultiplier),
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: priority,
	}
}

// WithinPriceCeiling reports whether the profile's fee pair stays under the
// configured reasonable price ceiling. Pure; used by the UI to warn, not to
// block.
func (g *GasEstimator) WithinPriceCeiling(profile business.GasProfile) bool {
	if profile.MaxFeePerGas == nil {
		return true
	}
	return profile.MaxFeePerGas.Cmp(g.config.MaxReasonableFeeWei) <= 0
}

func (g *GasEstimator) fallback(req business.TransactionRequest, cause error) business.GasProfile {
	profile, ok := g.config.StaticProfiles[req.Operation]
	if !ok {
		// Unknown operations are rejected by request validation; this guard
		// keeps the no-error contract if one slips through.
		profile = DefaultStaticGasProfiles()[business.OperationDeposit]
	}

	g.logger.Warn("Live gas estimation failed, using static profile",
		zap.String("operation", string(req.Operation)),
		zap.String("correlation_id", req.CorrelationID),
		zap.Uint64("static_gas_limit", profile.GasLimit),
		zap.Error(cause))

	return business.GasProfile{
		GasLimit:             profile.GasLimit,
		MaxFeePerGas:         new(big.Int).Set(profile.MaxFeePerGas),
		MaxPriorityFeePerGas: new(big.Int).Set(profile.MaxPriorityFeePerGas),
	}
}

// scaleUintCeil returns ceil(v * multiplier).
func scaleUintCeil(v uint64, multiplier float64) uint64 {
	return uint64(math.Ceil(float64(v) * multiplier))
}

// scaleBigCeil returns ceil(v * multiplier) without losing precision on
// large values.
func scaleBigCeil(v *big.Int, multiplier float64) *big.Int {
	product := new(big.Float).Mul(new(big.Float).SetInt(v), big.NewFloat(multiplier))
	result, accuracy := product.Int(nil)
	if accuracy == big.Below {
		result.Add(result, big.NewInt(1))
	}
	return result
}
