package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/winsave/winsave-api/chain"
	"github.com/winsave/winsave-api/config"
	"github.com/winsave/winsave-api/handlers"
	"github.com/winsave/winsave-api/logger"
	"github.com/winsave/winsave-api/server"
	"github.com/winsave/winsave-api/services"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// A missing .env file is fine in production where variables are set
		// directly in the environment.
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger.InitLogger(cfg.Stage)
	defer logger.Sync() //nolint:errcheck

	provider, cleanup, err := buildProvider(cfg)
	if err != nil {
		logger.Fatal("Failed to construct chain provider", zap.Error(err))
	}
	defer cleanup()

	executor := services.NewTransactionExecutor(provider, services.ExecutorConfig{
		GasLimitMultiplier:   cfg.GasLimitMultiplier,
		GasPriceMultiplier:   cfg.GasPriceMultiplier,
		DefaultConfirmations: cfg.DefaultConfirmations,
		DefaultTimeout:       cfg.ConfirmTimeout(),
		PollInterval:         cfg.PollInterval(),
		StaticGasProfiles:    services.DefaultStaticGasProfiles(),
	})
	defer executor.Close()

	txHandler := handlers.NewTransactionHandler(executor, logger.Log)
	healthHandler := handlers.NewHealthHandler(cfg.Stage)
	router := server.NewRouter(txHandler, healthHandler)

	logger.Info("Server starting",
		zap.String("port", cfg.Port),
		zap.String("stage", cfg.Stage))
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Error starting server", zap.Error(err))
	}
}

// buildProvider selects the chain binding once, at startup: the real RPC
// binding in production, the deterministic simulator everywhere else.
func buildProvider(cfg *config.Config) (chain.Provider, func(), error) {
	if !cfg.IsProduction() {
		simCfg := chain.DefaultSimulatorConfig()
		simCfg.ConfirmLatency = cfg.SimConfirmLatency()
		simCfg.FailSubmissions = cfg.SimFailSubmissions
		logger.Info("Using dev-mode chain simulator",
			zap.Duration("confirm_latency", simCfg.ConfirmLatency),
			zap.Bool("fail_submissions", simCfg.FailSubmissions))
		return chain.NewSimulator(simCfg), func() {}, nil
	}

	signer, err := chain.NewKeySigner(cfg.OperatorKey)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	provider, err := chain.DialRPC(ctx, cfg.RPCURL, signer)
	if err != nil {
		return nil, nil, err
	}
	return provider, provider.Close, nil
}
