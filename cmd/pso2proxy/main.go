package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/pso2go/internal/config"
	"github.com/udisondev/pso2go/internal/db"
	"github.com/udisondev/pso2go/internal/metrics"
	"github.com/udisondev/pso2go/internal/proxy"
)

const ConfigPath = "config/pso2proxy.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadProxy(config.Path(ConfigPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	slog.Info("pso2go proxy starting")
	slog.Info("config loaded", "listen", cfg.Listen, "upstream", cfg.Upstream, "variant", cfg.Variant)

	var captures []proxy.CaptureOpener
	if cfg.Capture.Dir != "" {
		captures = append(captures, proxy.FileCaptures(cfg.Capture.Dir, cfg.Capture.Compress))
		slog.Info("file capture enabled", "dir", cfg.Capture.Dir, "compress", cfg.Capture.Compress)
	}

	if cfg.Capture.Database {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		captures = append(captures, proxy.DBCaptures(database.Captures()))
	}

	var opts []proxy.ServerOption
	if len(captures) > 0 {
		opts = append(opts, proxy.WithCaptures(proxy.MultiCaptures(captures...)))
	}
	srv, err := proxy.NewServer(cfg, opts...)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
		return nil
	})

	if cfg.MetricsAddr != "" {
		metrics.Default()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		hs := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			slog.Info("metrics server started", "address", cfg.MetricsAddr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
