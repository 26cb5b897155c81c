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

	"github.com/caarlos0/env/v11"

	"github.com/canvaslink/canvaslink-go/agent"
	"github.com/canvaslink/canvaslink-go/canvas"
	"github.com/canvaslink/canvaslink-go/relay"
	"github.com/canvaslink/canvaslink-go/transports/relayamqp"
	"github.com/canvaslink/canvaslink-go/transports/relayws"
)

// config holds the agent daemon settings. Environment variables load first,
// flags override. The relay URL picks the transport: ws:// or wss:// joins a
// hub, amqp:// or amqps:// joins a broker-backed channel.
type config struct {
	HubURL   string `env:"CANVASLINK_HUB_URL" envDefault:"ws://localhost:3055/ws"`
	Channel  string `env:"CANVASLINK_CHANNEL" envDefault:"default"`
	Document string `env:"CANVASLINK_DOCUMENT" envDefault:"Untitled"`
	Verbose  bool   `env:"CANVASLINK_VERBOSE"`
}

func parseConfig(args []string) (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse environment: %w", err)
	}

	fs := flag.NewFlagSet("canvaslink-agent", flag.ExitOnError)
	fs.StringVar(&cfg.HubURL, "hub", cfg.HubURL, "Relay hub WebSocket URL")
	fs.StringVar(&cfg.Channel, "channel", cfg.Channel, "Relay channel to serve")
	fs.StringVar(&cfg.Document, "document", cfg.Document, "Name of the canvas document")
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("canvas agent failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	doc := canvas.NewDocument(cfg.Document)

	executor := agent.NewExecutor(agent.WithExecutorLogger(logger))
	if err := agent.RegisterCanvasHandlers(executor, doc); err != nil {
		return fmt.Errorf("register canvas handlers: %w", err)
	}

	transport, err := newTransport(cfg, logger)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	worker, err := agent.New(transport, executor, agent.WithAgentLogger(logger))
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	logger.Info("canvas agent starting",
		"hub", cfg.HubURL,
		"channel", cfg.Channel,
		"document", cfg.Document)
	return worker.Run(ctx)
}

func newTransport(cfg config, logger *slog.Logger) (relay.Transport, error) {
	if strings.HasPrefix(cfg.HubURL, "amqp://") || strings.HasPrefix(cfg.HubURL, "amqps://") {
		return relayamqp.NewTransport(cfg.HubURL, cfg.Channel, relayamqp.WithLogger(logger))
	}
	return relayws.NewTransport(cfg.HubURL, cfg.Channel, relayws.WithLogger(logger))
}
