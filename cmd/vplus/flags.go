package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// CLIConfig holds runner configuration. Environment variables supply the
// defaults; flags override them.
type CLIConfig struct {
	ConfigPath      string        `env:"VPLUS_CONFIG"           envDefault:"BepInEx/config/valheim_plus.cfg"`
	DataRoot        string        `env:"VPLUS_DATA_ROOT"        envDefault:"."`
	Role            string        `env:"VPLUS_ROLE"             envDefault:"server"`
	Steam           bool          `env:"VPLUS_STEAM"            envDefault:"false"`
	LogLevel        string        `env:"VPLUS_LOG_LEVEL"        envDefault:"info"`
	LogFormat       string        `env:"VPLUS_LOG_FORMAT"       envDefault:"json"`
	MetricsPort     int           `env:"VPLUS_METRICS_PORT"     envDefault:"0"`
	WatchConfig     bool          `env:"VPLUS_WATCH_CONFIG"     envDefault:"true"`
	ShutdownTimeout time.Duration `env:"VPLUS_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Debug       bool
	ShowVersion bool
	ShowHelp    bool
	Validate    bool

	usage func()
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)

	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath,
		"Path to the settings file (env: VPLUS_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c", cfg.ConfigPath,
		"Path to the settings file (env: VPLUS_CONFIG)")
	fs.StringVar(&cfg.DataRoot, "data-root", cfg.DataRoot,
		"Directory holding the private data directory (env: VPLUS_DATA_ROOT)")
	fs.StringVar(&cfg.Role, "role", cfg.Role,
		"Peer role: server, client (env: VPLUS_ROLE)")
	fs.BoolVar(&cfg.Steam, "steam", cfg.Steam,
		"Load the Steam subsystem into the host (env: VPLUS_STEAM)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel,
		"Log level: debug, info, warn, error (env: VPLUS_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat,
		"Log format: json, text (env: VPLUS_LOG_FORMAT)")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort,
		"Prometheus metrics port, 0 to disable (env: VPLUS_METRICS_PORT)")
	fs.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig,
		"Reload overrides when the settings file changes (env: VPLUS_WATCH_CONFIG)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout,
		"Graceful shutdown timeout (env: VPLUS_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.Debug, "debug", false, "Shorthand for --log-level=debug")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Load the settings file and exit")

	fs.Usage = func() { printDetailedHelp(fs) }
	cfg.usage = fs.Usage

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath == "" {
		return fmt.Errorf("config path is required")
	}
	if !slices.Contains([]string{"server", "client"}, cfg.Role) {
		return fmt.Errorf("invalid role: %s", cfg.Role)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Valheim Plus bootstrap runner

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run as the authoritative server with text logs
  %s --role=server --log-format=text

  # Expose Prometheus metrics
  %s --metrics-port=9090

  # Check the settings file only
  %s --config=/srv/valheim/valheim_plus.cfg --validate

Version: %s
`, os.Args[0], os.Args[0], os.Args[0], Version)
}
