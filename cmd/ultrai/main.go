// Command ultrai is the interactive CLI front end: it submits one run to
// the orchestration engine through the same coordinator.Coordinator the
// HTTP control plane drives and reports the terminal outcome.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/cli"
	"github.com/ultrai-run/ultrai/pkg/config"
	"github.com/ultrai-run/ultrai/pkg/coordinator"
	"github.com/ultrai-run/ultrai/pkg/gateway"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	_ = godotenv.Load(envPath)

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	gw := gateway.NewClient(cfg.Gateway)
	store := artifact.NewStore(cfg.RunsDir)
	coord := coordinator.New(gw, store, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shell := cli.New(coord, store, cfg.Cocktails)
	os.Exit(shell.Run(ctx))
}
