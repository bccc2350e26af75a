package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mindwell-dev/mindwell"
	"github.com/mindwell-dev/mindwell/internal/server"
	"github.com/mindwell-dev/mindwell/internal/tracing"
	"github.com/mindwell-dev/mindwell/pkg/config"
	"github.com/mindwell-dev/mindwell/pkg/guard"
	"github.com/mindwell-dev/mindwell/pkg/observability"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Port = port
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides config)")
	return cmd
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configFile, err)
	}
	return cfg, nil
}

func runServe(cfg *config.Config) error {
	log.Printf("Starting mindwell v%s on :%d", Version, cfg.Port)

	observability.InitMetrics()
	if err := tracing.InitFromEnv(); err != nil {
		log.Printf("tracing init: %v", err)
	}

	orch, err := mindwell.New(cfg, nil)
	if err != nil {
		return err
	}

	healthChecker := observability.InitHealthChecker()
	healthChecker.RegisterCheck(observability.PingCheck())
	healthChecker.RegisterCheck(observability.StorageCheck(orch.PingStorage))
	healthChecker.RegisterCheck(observability.GeneratorCheck(cfg.Generator.Provider, orch.PingGenerator))

	limiter := guard.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	api := server.New(orch, limiter)
	obsServer := observability.NewServer(cfg.Port, api.Mount)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := obsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")

		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := obsServer.Shutdown(sctx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
		if err := orch.Close(sctx); err != nil {
			log.Printf("orchestrator shutdown: %v", err)
		}
		if err := tracing.Shutdown(sctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("Stopped")
	return nil
}
