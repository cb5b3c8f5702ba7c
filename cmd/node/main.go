package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/oraichain/oraiswap-orderbook/params"
	"github.com/oraichain/oraiswap-orderbook/pkg/api"
	"github.com/oraichain/oraiswap-orderbook/pkg/engine"
	"github.com/oraichain/oraiswap-orderbook/pkg/storage"
	"github.com/oraichain/oraiswap-orderbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory
	cfg.Apply()

	// Setup logging (console, plus file when configured)
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Node.LogPath != "" {
		logger, err = util.NewLoggerWithFile(cfg.Node.LogPath)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Storage ----
	store, err := storage.Open(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("store_open_failed", "dir", cfg.Node.DataDir, "err", err)
	}
	defer store.Close()
	sugar.Infow("store_opened", "dir", cfg.Node.DataDir)

	// ---- Engine ----
	// The sink logs transfer intents; a chain-connected deployment plugs a
	// bank module in here instead.
	sink := engine.SinkFunc(func(p engine.Payment) {
		sugar.Infow("transfer", "address", p.Address.Hex(), "asset", p.Asset.String())
	})
	eng := engine.New(store, sink, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	apiServer := api.NewServer(eng)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.ListenAddr)
		if err := apiServer.Start(cfg.Node.ListenAddr, cfg.Node.AllowedOrigins); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started", "listen_addr", cfg.Node.ListenAddr)
	<-ctx.Done()
	sugar.Info("shutting down")
}
