package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"otcswap/config"
	"otcswap/core/state"
	"otcswap/native/otc"
	"otcswap/observability/logging"
	"otcswap/rpc"
	"otcswap/storage"
)

const envName = "OTCSWAP_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envName))
	logger := logging.Setup("otcswapd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	owner, err := cfg.Owner()
	if err != nil {
		logger.Error("Invalid owner address", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	engine := otc.NewEngine(owner)
	engine.SetState(manager)
	engine.SetTokens(otc.NewTokenRegistry())

	if rate, ok, err := cfg.InitialFeeRate(); err != nil {
		logger.Error("Invalid fee rate", slog.Any("error", err))
		os.Exit(1)
	} else if ok {
		if err := engine.SetFeeRate(owner, rate); err != nil {
			logger.Error("Failed to apply configured fee rate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	server := rpc.NewServer(engine)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting JSON-RPC server",
			slog.String("address", cfg.RPCAddress),
			slog.String("network", cfg.NetworkName))
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
	}
	if err := manager.Commit(); err != nil {
		logger.Error("Final state commit failed", slog.Any("error", err))
	}
}
