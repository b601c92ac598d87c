// Command jgrpc-server runs a publishing RPC server: it binds a TCP
// listener, registers the demo hello service, advertises itself at the
// configured directory, and shuts down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jinguan/jgrpc/config"
	"github.com/jinguan/jgrpc/example/helloservice"
	"github.com/jinguan/jgrpc/lifecycle"
	"github.com/jinguan/jgrpc/middleware"
	"github.com/jinguan/jgrpc/registry"
	"github.com/jinguan/jgrpc/server"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:   "jgrpc-server",
		Short: "Run a jgrpc server publishing the demo hello service",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, cfg.Namespace, log)
	if err != nil {
		return fmt.Errorf("connect to directory: %w", err)
	}

	srv := server.NewServer(
		server.WithIdleTimeout(cfg.IdleTimeout),
		server.WithLogger(log),
	)
	srv.Use(middleware.LoggingMiddleware(log))
	srv.Use(middleware.TimeoutMiddleware(cfg.CallTimeout))
	if cfg.RateLimit > 0 {
		srv.Use(middleware.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	}

	_, portStr, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	pub, err := lifecycle.NewPublishServer(srv, reg, cfg.AdvertiseAddr, port, log)
	if err != nil {
		return fmt.Errorf("detect own address: %w", err)
	}

	if err := pub.Publish(&helloservice.Impl{}, helloservice.InterfaceName); err != nil {
		return fmt.Errorf("publish hello service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- pub.Serve(cfg.ListenAddr) }()

	log.Infow("jgrpc-server listening", "addr", cfg.ListenAddr, "interface", helloservice.InterfaceName)

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		log.Info("shutdown signal received, draining")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainInterval*2)
		defer cancel()
		return pub.Shutdown(shutdownCtx, cfg.DrainInterval)
	}
}
