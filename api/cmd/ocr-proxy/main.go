package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tradepost-ocr/api/internal/app"
	"tradepost-ocr/api/internal/config"
	"tradepost-ocr/api/internal/handle"
	"tradepost-ocr/api/internal/httpserver"
	"tradepost-ocr/api/internal/logger"
	"tradepost-ocr/api/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer zl.Sync()

	if err := cfg.Validate(); err != nil {
		zl.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.Build(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Failed to build pipeline", zap.Error(err))
	}
	defer p.Close()

	h := handle.New(p.Guard, p.Gateway, cfg.ClientIPHeader, zl)
	r := router.New(h, zl)

	err = httpserver.Run(ctx, httpserver.Options{
		Addr:         ":" + cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, r.SetupRoutes(), zl)
	if err != nil {
		zl.Error("Server failed", zap.Error(err))
	}
}
