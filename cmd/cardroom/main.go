package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/cardroom/cardroom/internal/game"
	"github.com/cardroom/cardroom/internal/server"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"cardroom.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" long:"addr" help:"Listen address (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	Static   string `short:"s" long:"static" help:"Static assets directory (overrides config)"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		kctx.Exit(1)
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.Static != "" {
		cfg.Server.StaticDir = CLI.Static
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		kctx.Exit(1)
	}

	addr := cfg.ListenAddr()
	if CLI.Addr != "" {
		addr = CLI.Addr
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	rules := game.Rules{
		Blinds:      cfg.Game.Blinds,
		StartChips:  cfg.Game.StartChips,
		WinnerDelay: cfg.WinnerDelay(),
	}

	logger.Info("starting card room",
		"addr", addr,
		"blinds", rules.Blinds,
		"startChips", rules.StartChips,
		"kickGrace", cfg.KickGrace())

	manager := server.NewManager(logger, quartz.NewReal(), rules, cfg.KickGrace())
	srv := server.NewServer(addr, cfg.Server.StaticDir, logger, manager)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return srv.Stop()
	})

	if err := g.Wait(); err != nil {
		logger.Error("server failed", "error", err)
		kctx.Exit(1)
	}
}
