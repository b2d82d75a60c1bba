// Package main is the entry point for the public API Gateway.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codeboxed/execd/internal/config"
	"github.com/codeboxed/execd/internal/gateway"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "gatewayd",
		Short: "Public API Gateway, forwarding to the Execution Service",
		RunE:  run,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("gatewayd: fatal error")
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

	cfg, err := config.LoadGateway(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("gatewayd: shutdown signal received")
		cancel()
	}()

	client := gateway.NewClient(cfg.ExecutionServiceURL, cfg.InternalAuthToken)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: []string{"*"}}))

	h := gateway.NewHandler(client)
	h.Register(e)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ServerAddr).Msg("gatewayd: listening")
		serverErr <- e.Start(cfg.ServerAddr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("gatewayd: server forced to shutdown")
		}
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("gatewayd: server startup failed")
		}
	}

	return nil
}
