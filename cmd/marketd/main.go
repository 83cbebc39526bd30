package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/marketd/internal/app"
	"github.com/bobmcallan/marketd/internal/common"
	"github.com/bobmcallan/marketd/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to marketd.toml (defaults to MARKETD_CONFIG, then ./marketd.toml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(common.GetFullVersion())
		return
	}

	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	if err := a.StartScheduler(); err != nil {
		a.Logger.Fatal().Err(err).Msg("Scheduler failed to start")
	}

	srv := server.NewServer(a.Config, a.Market, a.SymbolIndex, a.Logger)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	a.Logger.Info().
		Str("version", common.GetVersion()).
		Int("port", a.Config.Server.Port).
		Int("providers", len(a.Providers)).
		Msg("Server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	a.Logger.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	a.Close()
	a.Logger.Info().Msg("Server stopped")
}
