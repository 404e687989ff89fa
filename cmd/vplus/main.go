// Package main runs the Valheim Plus bootstrap against an in-process host.
// It loads the settings file, binds the override catalog, and keeps the map
// sync task and settings watcher running until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/VplusR/VplusReforged/bootstrap"
	"github.com/VplusR/VplusReforged/compat"
	"github.com/VplusR/VplusReforged/config"
	"github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/host"
	"github.com/VplusR/VplusReforged/httpfetch"
	"github.com/VplusR/VplusReforged/mapsync"
	"github.com/VplusR/VplusReforged/metric"
	"github.com/VplusR/VplusReforged/patches"
	"github.com/VplusR/VplusReforged/probe"
	"github.com/VplusR/VplusReforged/storage/mapstore"
)

// Build information constants
const (
	Version = bootstrap.FullVersion
	appName = "vplus"

	mapSize      = 512
	mapStoreFile = "mapsync.db"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		cliCfg.usage()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	fetcher := httpfetch.New()
	loader := config.NewLoader(cliCfg.ConfigPath,
		config.WithDefaultsSource(fetcher, bootstrap.DefaultConfigURL, httpfetch.DefaultHeaders()),
		config.WithLogger(logger))

	if cliCfg.Validate {
		if _, err := loader.Load(context.Background()); err != nil {
			return err
		}
		slog.Info("Configuration is valid", "path", loader.Path())
		return nil
	}

	logger.Info("Starting Valheim Plus runner",
		"config_path", cliCfg.ConfigPath,
		"role", cliCfg.Role,
		"steam", cliCfg.Steam)

	gameHost := host.New()
	if err := patches.DefineHost(gameHost, cliCfg.Steam); err != nil {
		return fmt.Errorf("define host: %w", err)
	}

	metricsRegistry := metric.NewMetricsRegistry()
	exploration := mapsync.NewExploration(mapSize)
	var store atomic.Pointer[mapstore.Store]

	saver := mapsync.SaverFunc(func(ctx context.Context) error {
		s := store.Load()
		if s == nil {
			return errors.WrapTransient(errors.ErrStorageUnavailable, "Runner", "SaveMapData", "store check")
		}
		return s.SaveMapData(ctx)
	})

	vplus, err := bootstrap.New(bootstrap.Options{
		Logger:    logger,
		Metrics:   metricsRegistry.CoreMetrics(),
		Role:      compat.ParseRole(cliCfg.Role),
		Binder:    gameHost,
		Probe:     probe.New(gameHost, logger),
		Loader:    loader,
		Handshake: compat.NewRegistry(),
		Fetcher:   fetcher,
		Headers:   httpfetch.DefaultHeaders(),
		DataRoot:  cliCfg.DataRoot,
		Saver:     saver,
	})
	if err != nil {
		return fmt.Errorf("create bootstrap: %w", err)
	}
	defer vplus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := vplus.OnLoad(ctx); err != nil {
		// The host keeps running, unmodified or partially modified.
		logger.Error("Startup finished with errors", "fatal", errors.IsFatal(err), "error", err)
	}

	if dir := vplus.DataDir(); dir != "" {
		s, err := openMapStore(ctx, filepath.Join(dir, mapStoreFile), exploration, logger)
		if err != nil {
			logger.Warn("Map store unavailable, map sync saves will fail", "error", err)
		} else {
			store.Store(s)
			defer func() { _ = s.Close() }()
		}
	}

	if cliCfg.MetricsPort > 0 {
		server := metric.NewServer(cliCfg.MetricsPort, "/metrics", metricsRegistry)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() { _ = server.Stop() }()
		logger.Info("Metrics server started", "address", server.Address())
	}

	if cliCfg.WatchConfig {
		watcher := config.NewWatcher(loader.Path(), func(ctx context.Context) {
			if err := vplus.Reload(ctx); err != nil {
				logger.Error("Reload failed", "error", err)
			}
		}, 500*time.Millisecond, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("Settings watcher not started", "error", err)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	logger.Info("Valheim Plus ready", "health", vplus.Health().Status, "bound", len(vplus.Applicator().Bound()))

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := vplus.UnpatchSelf(shutdownCtx); err != nil {
		logger.Error("Failed to remove overrides", "error", err)
	}
	// waits for an in-flight save; the store is closed after this
	vplus.Close()
	if s := store.Load(); s != nil {
		if err := s.SaveMapData(shutdownCtx); err != nil {
			logger.Warn("Final map save failed", "error", err)
		}
	}

	logger.Info("Valheim Plus shutdown complete")
	return nil
}

func openMapStore(ctx context.Context, path string, exploration *mapsync.Exploration, logger *slog.Logger) (*mapstore.Store, error) {
	s, err := mapstore.Open(path, exploration)
	if err != nil {
		return nil, err
	}
	restored, err := s.Load(ctx)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Info("Map exploration restored", "path", path, "tiles", restored)
	return s, nil
}
