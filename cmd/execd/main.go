// Package main is the entry point for the Execution Service.
//
// Usage:
//
//	execd [flags]
//
// Flags:
//
//	-c, --config string   Path to config file (optional)
//	-v, --verbose         Enable debug logging
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codeboxed/execd/internal/activeset"
	"github.com/codeboxed/execd/internal/api"
	"github.com/codeboxed/execd/internal/config"
	"github.com/codeboxed/execd/internal/coordinator"
	"github.com/codeboxed/execd/internal/langhandler"
	"github.com/codeboxed/execd/internal/lifecycle"
	"github.com/codeboxed/execd/internal/pool"
	"github.com/codeboxed/execd/internal/provider/docker"
	"github.com/codeboxed/execd/internal/session"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "execd",
		Short: "Execution Service: the sandbox-pool manager's internal HTTP surface",
		RunE:  run,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execd: fatal error")
	}
}

func run(cmd *cobra.Command, args []string) error {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if os.Getenv("EXECD_ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.LoadExecution(configPath)
	if err != nil {
		return err
	}
	if cfg.LogJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if !verbose {
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("execd: shutdown signal received")
		cancel()
	}()

	prov, err := docker.New(docker.Config{
		Image:    cfg.DockerImage,
		MemoryMB: cfg.SandboxMemoryMB,
		CPUCores: cfg.SandboxCPUCores,
	})
	if err != nil {
		return err
	}

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Second)
	err = prov.Healthy(healthCtx)
	healthCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("execd: provider health check failed")
	}

	languages, err := langhandler.NewRegistry(cfg.SupportedLanguages)
	if err != nil {
		log.Fatal().Err(err).Msg("execd: invalid supported_languages config")
	}

	pl := pool.New(prov, cfg.MaxPoolSize)
	sessions := session.New(pl)
	active := activeset.New()
	coord := coordinator.New(prov, pl, sessions, active, languages, cfg.MaxTimeout)
	lc := lifecycle.New(pl, sessions, active, languages, cfg.InitialPoolSize)

	lc.Prewarm(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h := api.NewHandler(coord, sessions, languages, cfg.InternalAuthToken, cfg.DefaultTimeout)
	h.Register(e)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ServerAddr).Msg("execd: listening")
		serverErr <- e.Start(cfg.ServerAddr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("execd: server forced to shutdown")
		}
		lc.Shutdown(context.Background())
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("execd: server startup failed")
		}
	}

	return nil
}
