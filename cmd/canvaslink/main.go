package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	canvaslink "github.com/canvaslink/canvaslink-go"
	"github.com/canvaslink/canvaslink-go/monitor"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliConfig holds the operator defaults. Environment variables load first,
// flags override.
type cliConfig struct {
	AdminURL string `env:"CANVASLINK_HUB_ADMIN_URL" envDefault:"http://localhost:3055"`
	HubURL   string `env:"CANVASLINK_HUB_URL" envDefault:"ws://localhost:3055/ws"`
	Channel  string `env:"CANVASLINK_CHANNEL" envDefault:"default"`
}

func main() {
	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("parse environment: %v", err)
	}

	rootCmd := &cobra.Command{
		Use:   "canvaslink",
		Short: "Inspect and drive a CanvasLink relay hub",
		Long: `CanvasLink is a CLI for operating the relay hub that connects automation
clients to canvas agents. It reads the hub admin API for health and channel
membership, and can send one-off commands through the relay.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
	}

	// Global flags
	var verbose bool

	rootCmd.PersistentFlags().StringVarP(&cfg.AdminURL, "admin-url", "u", cfg.AdminURL, "Hub admin API base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// Health command
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check hub health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := monitor.NewClient(cfg.AdminURL)
			if err != nil {
				return fmt.Errorf("failed to create admin client: %w", err)
			}

			if err := client.Health(ctx); err != nil {
				return fmt.Errorf("hub is unhealthy: %w", err)
			}

			fmt.Printf("Hub at %s is healthy\n", cfg.AdminURL)
			return nil
		},
	}

	// Channels command
	channelsCmd := &cobra.Command{
		Use:   "channels",
		Short: "List active channels",
		Long:  "List every channel the hub currently tracks with its member count",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := monitor.NewClient(cfg.AdminURL)
			if err != nil {
				return fmt.Errorf("failed to create admin client: %w", err)
			}

			channels, err := client.ListChannels(ctx)
			if err != nil {
				return fmt.Errorf("failed to list channels: %w", err)
			}

			printChannels(channels)
			return nil
		},
	}

	// Watch command
	var interval int
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch channel membership in real-time",
		Long:  "Continuously poll the hub admin API and print a channel snapshot on every tick.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Handle signals
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				cancel()
			}()

			client, err := monitor.NewClient(cfg.AdminURL)
			if err != nil {
				return fmt.Errorf("failed to create admin client: %w", err)
			}

			watcher, err := monitor.NewChannelWatcher(client, time.Duration(interval)*time.Second, cliLogger(verbose))
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}

			fmt.Println("Watching hub channels... Press Ctrl+C to stop")
			fmt.Println(strings.Repeat("-", 60))

			if err := watcher.Watch(ctx, printSnapshot); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	watchCmd.Flags().IntVarP(&interval, "interval", "i", 2, "Update interval in seconds")

	// Invoke command
	var (
		channel string
		hubURL  string
		timeout time.Duration
	)
	invokeCmd := &cobra.Command{
		Use:   "invoke <command> [params-json]",
		Short: "Send one command through the relay and print the reply",
		Long: `Invoke joins the relay channel, sends a single command to whatever agent
is serving it, waits for the correlated reply, and prints it as JSON.

Example:
  canvaslink invoke create_rectangle '{"x":0,"y":0,"width":100,"height":50}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := json.RawMessage(`{}`)
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("params must be valid JSON, got %q", args[1])
				}
				params = json.RawMessage(args[1])
			}

			ctx := context.Background()
			client, err := canvaslink.NewClient(hubURL, channel, canvaslink.WithLogger(cliLogger(verbose)))
			if err != nil {
				return fmt.Errorf("failed to create relay client: %w", err)
			}
			defer client.Close()

			if err := client.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to hub: %w", err)
			}

			reply, err := client.InvokeWithTimeout(ctx, args[0], params, timeout)
			if err != nil {
				return fmt.Errorf("invoke failed: %w", err)
			}

			printReply(reply)
			return nil
		},
	}
	invokeCmd.Flags().StringVar(&hubURL, "hub", cfg.HubURL, "Relay hub WebSocket URL")
	invokeCmd.Flags().StringVarP(&channel, "channel", "c", cfg.Channel, "Relay channel to send on")
	invokeCmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "Reply timeout")

	// Add all commands
	rootCmd.AddCommand(healthCmd, channelsCmd, watchCmd, invokeCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// cliLogger keeps library diagnostics off the terminal unless asked for.
func cliLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Output formatting functions

func printChannels(channels []monitor.ChannelInfo) {
	if len(channels) == 0 {
		fmt.Println("No active channels")
		return
	}

	fmt.Printf("%-40s %-10s\n", "Channel", "Members")
	fmt.Println(strings.Repeat("-", 50))

	for _, ch := range channels {
		fmt.Printf("%-40s %-10d\n", truncate(ch.Name, 40), ch.Members)
	}
}

func printSnapshot(snap monitor.Snapshot) {
	fmt.Printf("[%s] %d channels, %d members\n",
		snap.Taken.Format("15:04:05"),
		len(snap.Channels),
		snap.TotalMembers(),
	)
	for _, ch := range snap.Channels {
		fmt.Printf("  %-40s %-10d\n", truncate(ch.Name, 40), ch.Members)
	}
}

func printReply(reply json.RawMessage) {
	if len(reply) == 0 {
		fmt.Println("(empty reply)")
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, reply, "", "  "); err != nil {
		fmt.Println(string(reply))
		return
	}
	fmt.Println(pretty.String())
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
