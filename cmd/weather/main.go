package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/portal/internal/weather"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const buildVersion = "v0.1.0"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := weather.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := slogx.New(slogx.Config{
		Service: "weather",
		Version: buildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := weather.Run(ctx, weather.NewServer(cfg, logger), logger, cfg.ShutdownGracePeriod); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
