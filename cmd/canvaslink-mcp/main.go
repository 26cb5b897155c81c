package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	canvaslink "github.com/canvaslink/canvaslink-go"
	"github.com/canvaslink/canvaslink-go/mcptools"
	"github.com/canvaslink/canvaslink-go/transports/relayamqp"
)

var version = "dev"

// config holds the MCP server settings. Environment variables load first,
// flags override. The relay URL picks the transport: ws:// or wss:// joins a
// hub, amqp:// or amqps:// joins a broker-backed channel.
type config struct {
	HubURL  string        `env:"CANVASLINK_HUB_URL" envDefault:"ws://localhost:3055/ws"`
	Channel string        `env:"CANVASLINK_CHANNEL" envDefault:"default"`
	Timeout time.Duration `env:"CANVASLINK_COMMAND_TIMEOUT" envDefault:"30s"`
	Verbose bool          `env:"CANVASLINK_VERBOSE"`
}

func parseConfig(args []string) (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse environment: %w", err)
	}

	fs := flag.NewFlagSet("canvaslink-mcp", flag.ExitOnError)
	fs.StringVar(&cfg.HubURL, "hub", cfg.HubURL, "Relay hub WebSocket URL")
	fs.StringVar(&cfg.Channel, "channel", cfg.Channel, "Relay channel to drive")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-command reply timeout")
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

	// Stdout carries the MCP protocol stream, so every diagnostic goes to
	// stderr.
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	options := []canvaslink.ClientOption{
		canvaslink.WithLogger(logger),
		canvaslink.WithDefaultTimeout(cfg.Timeout),
	}
	if strings.HasPrefix(cfg.HubURL, "amqp://") || strings.HasPrefix(cfg.HubURL, "amqps://") {
		transport, err := relayamqp.NewTransport(cfg.HubURL, cfg.Channel, relayamqp.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("create amqp transport: %w", err)
		}
		options = append(options, canvaslink.WithTransport(transport))
	}

	client, err := canvaslink.NewClient(cfg.HubURL, cfg.Channel, options...)
	if err != nil {
		return fmt.Errorf("create relay client: %w", err)
	}
	defer client.Close()

	// The bridge reconnects on the next invoke, so an unreachable hub at
	// startup is not fatal.
	if err := client.Connect(ctx); err != nil {
		logger.Warn("relay hub not reachable yet, will retry on first command",
			"hub", cfg.HubURL,
			"error", err)
	}

	server, err := mcptools.NewServer(client, version, mcptools.WithServerLogger(logger))
	if err != nil {
		return fmt.Errorf("create mcp server: %w", err)
	}

	logger.Info("serving canvas tools over stdio",
		"hub", cfg.HubURL,
		"channel", cfg.Channel)
	return server.Run(ctx)
}
