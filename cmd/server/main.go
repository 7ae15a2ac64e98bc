package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ridehail-identity/internal/config"
	"ridehail-identity/internal/logging"
	"ridehail-identity/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build")
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("listen")
	}

	log.Info().Str("addr", cfg.GRPCAddr).Str("env", cfg.Env).Str("store", cfg.StoreBackend).
		Bool("dev_otp", cfg.OTPReturnToClient).Msg("gRPC server listening")
	serveErr := app.Serve(ctx, lis)

	log.Info().Msg("shutting down gRPC server...")
	closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		log.Error().Err(err).Msg("close")
	}
	if serveErr != nil {
		log.Fatal().Err(serveErr).Msg("serve")
	}
	log.Info().Msg("gRPC server stopped")
}
