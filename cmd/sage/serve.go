package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jetgogoing/sage/pkg/config"
	"github.com/jetgogoing/sage/pkg/service"
)

// ServeCmd starts the tool server. The JSON-RPC stdio transport always
// runs (it's how an interactive assistant talks to sage as a
// subprocess); the same dispatcher is also served over HTTP whenever
// the resolved server.port is non-zero (default 17800), and HTTPPort
// overrides that port, grounded on kadirpekel/hector's
// ServeCmd/HTTPServer pairing in cmd/hector/main.go and pkg/server/http.go.
type ServeCmd struct {
	HTTPPort int  `name:"http-port" help:"Serve JSON-RPC over HTTP on this port (overrides config server.port)."`
	Watch    bool `help:"Watch config.json for changes and hot-reload the service container."`

	// Override flags, applied on top of the loaded config.json via
	// pkg/config.ApplyOverrides (mapstructure-decoded), grounded on
	// hector's zero-config CLI-flag-overrides-config pattern.
	DBHost         string  `name:"db-host" help:"Override database.host."`
	DBName         string  `name:"db-name" help:"Override database.name."`
	RetrievalCount int     `name:"retrieval-count" help:"Override retrieval.retrieval_count."`
	SimThreshold   float64 `name:"similarity-threshold" help:"Override retrieval.similarity_threshold."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	path, err := cli.configPath()
	if err != nil {
		return err
	}
	loader, err := config.NewLoader(path)
	if err != nil {
		return fmt.Errorf("create config loader: %w", err)
	}
	defer loader.Close()

	cfg, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := c.applyOverrides(cfg); err != nil {
		return fmt.Errorf("apply CLI overrides: %w", err)
	}
	if c.HTTPPort != 0 {
		cfg.Server.Port = c.HTTPPort
	}

	container := service.New(0)
	defer container.Shutdown()

	if c.Watch {
		if err := loader.Watch(ctx, func(updated *config.Config) {
			c.applyOverrides(updated)
			if c.HTTPPort != 0 {
				updated.Server.Port = c.HTTPPort
			}
			slog.Info("config changed, service container will rebuild on next request")
		}); err != nil {
			slog.Warn("config watch failed to start", "error", err)
		}
	}

	bundle, err := container.Get(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build service container: %w", err)
	}

	var httpErrCh chan error
	if cfg.Server.Port != 0 {
		httpErrCh = make(chan error, 1)
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		httpSrv := &http.Server{
			Addr:         addr,
			Handler:      bundle.ToolServer.Router(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		}
		go func() {
			slog.Info("tool server HTTP transport starting", "address", addr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				httpErrCh <- err
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()
	}

	stdioErrCh := make(chan error, 1)
	go func() {
		stdioErrCh <- bundle.ToolServer.ServeStdio(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-stdioErrCh:
		cancel()
		return err
	case err := <-httpErrCh:
		cancel()
		return err
	case <-ctx.Done():
		<-stdioErrCh
		return nil
	}
}

func (c *ServeCmd) applyOverrides(cfg *config.Config) error {
	overrides := map[string]any{}
	db := map[string]any{}
	retrieval := map[string]any{}
	if c.DBHost != "" {
		db["host"] = c.DBHost
	}
	if c.DBName != "" {
		db["name"] = c.DBName
	}
	if len(db) > 0 {
		overrides["database"] = db
	}
	if c.RetrievalCount != 0 {
		retrieval["retrieval_count"] = c.RetrievalCount
	}
	if c.SimThreshold != 0 {
		retrieval["similarity_threshold"] = c.SimThreshold
	}
	if len(retrieval) > 0 {
		overrides["retrieval"] = retrieval
	}
	return config.ApplyOverrides(cfg, overrides)
}
