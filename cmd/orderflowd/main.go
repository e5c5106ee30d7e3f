package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fluxtrade/orderflow/internal/config"
	"github.com/fluxtrade/orderflow/internal/orderflow"
	"github.com/fluxtrade/orderflow/internal/server"
	"github.com/fluxtrade/orderflow/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create logger from the configured level and format
	zapLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	sugar := zapLogger.Sugar()

	// Build the two scorers with their configured detector sets
	scorer := orderflow.NewMicrostructureScorer(cfg.Scorer, sugar,
		orderflow.WithImbalanceConfig(cfg.Imbalance),
		orderflow.WithAbsorptionConfig(cfg.Absorption),
		orderflow.WithDeltaConfig(cfg.Delta),
		orderflow.WithIcebergConfig(cfg.Iceberg),
		orderflow.WithSpoofingConfig(cfg.Spoofing),
		orderflow.WithHFTConfig(cfg.HFT),
		orderflow.WithStuffingConfig(cfg.Stuffing),
		orderflow.WithHiddenLiquidityConfig(cfg.Hidden),
	)
	flowScorer := orderflow.NewOrderFlowScorer(cfg.FlowScorer, sugar)

	srv := server.NewServer(zapLogger, cfg.Server, scorer, flowScorer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("order flow analysis service starting",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.LogLevel))

	if err := srv.Start(ctx); err != nil {
		zapLogger.Fatal("Server exited with error", zap.Error(err))
	}
	zapLogger.Info("order flow analysis service stopped")
}
