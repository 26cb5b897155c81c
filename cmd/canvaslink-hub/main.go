package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/canvaslink/canvaslink-go/hub"
)

// config holds the hub daemon settings. Environment variables load first,
// flags override.
type config struct {
	Addr            string        `env:"CANVASLINK_HUB_ADDR" envDefault:":3055"`
	ShutdownTimeout time.Duration `env:"CANVASLINK_HUB_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	Verbose         bool          `env:"CANVASLINK_VERBOSE"`
}

func parseConfig(args []string) (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse environment: %w", err)
	}

	fs := flag.NewFlagSet("canvaslink-hub", flag.ExitOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP listen address")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown budget")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := hub.NewServer(hub.Config{
		Addr:            cfg.Addr,
		Logger:          logger,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error("relay hub failed", "error", err)
		os.Exit(1)
	}
}
