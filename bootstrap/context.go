// Package bootstrap sequences the mod's startup and owns its process-wide state.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VplusR/VplusReforged/compat"
	"github.com/VplusR/VplusReforged/config"
	pkgerrors "github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/health"
	"github.com/VplusR/VplusReforged/mapsync"
	"github.com/VplusR/VplusReforged/metric"
	"github.com/VplusR/VplusReforged/override"
	"github.com/VplusR/VplusReforged/patches"
	"github.com/VplusR/VplusReforged/versioncheck"
)

// SettingsLoader reads the settings file.
type SettingsLoader interface {
	Load(ctx context.Context) (config.Settings, error)
}

// AssetLoader loads a UI asset bundle. Assets are loaded on every start
// regardless of settings.
type AssetLoader interface {
	Name() string
	Load(ctx context.Context) error
}

// Options wires the collaborators of a Context. Binder, Loader and Handshake
// are required.
type Options struct {
	Logger  *slog.Logger
	Metrics *metric.Metrics
	Role    compat.Role

	Binder override.Binder
	Probe  override.SubsystemProbe
	// Registry defaults to the shipped catalog.
	Registry *override.Registry

	Loader    SettingsLoader
	Handshake compat.Handshake

	// Fetcher is used for the release lookup. Nil leaves the latest version unknown.
	Fetcher    versioncheck.Fetcher
	ReleaseURL string
	Headers    map[string]string

	DataRoot string
	Assets   []AssetLoader

	Saver      mapsync.Saver
	SyncPeriod time.Duration
}

// Context owns the mod's process-wide state: settings, the bound override
// set, the compatibility record, the release lookup and the sync timer.
type Context struct {
	instanceID string
	logger     *slog.Logger
	metrics    *metric.Metrics
	role       compat.Role

	settings   *config.SafeSettings
	loader     SettingsLoader
	applicator *override.Applicator
	enforcer   *compat.Enforcer
	checker    *versioncheck.Checker
	task       *mapsync.Task
	monitor    *health.Monitor

	dataDir string
	assets  []AssetLoader

	syncPeriod time.Duration

	loadOnce sync.Once
	loadErr  error

	// serializes PatchAll, Reload and UnpatchSelf
	patchMu sync.Mutex
}

// New builds a Context. Nothing touches the host until OnLoad.
func New(opts Options) (*Context, error) {
	if opts.Binder == nil {
		return nil, pkgerrors.WrapFatal(errors.New("binder cannot be nil"), "Bootstrap", "New", "options validation")
	}
	if opts.Loader == nil {
		return nil, pkgerrors.WrapFatal(errors.New("settings loader cannot be nil"), "Bootstrap", "New", "options validation")
	}
	if opts.Handshake == nil {
		return nil, pkgerrors.WrapFatal(errors.New("handshake cannot be nil"), "Bootstrap", "New", "options validation")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	instanceID := uuid.NewString()
	logger = logger.With("instance", instanceID)

	c := &Context{
		instanceID: instanceID,
		logger:     logger.With("component", "bootstrap"),
		metrics:    opts.Metrics,
		role:       opts.Role,
		settings:   config.NewSafeSettings(),
		loader:     opts.Loader,
		monitor:    health.NewMonitor(),
		assets:     opts.Assets,
		syncPeriod: opts.SyncPeriod,
	}
	if opts.DataRoot != "" {
		c.dataDir = dataDir(opts.DataRoot)
	}

	registry := opts.Registry
	if registry == nil {
		registry = override.NewRegistry()
		if err := patches.Register(registry, c.settings.Get, FullVersion); err != nil {
			return nil, pkgerrors.Wrap(err, "Bootstrap", "New", "register override catalog")
		}
	}

	c.applicator = override.NewApplicator(registry, opts.Binder, opts.Probe,
		override.WithLogger(logger), override.WithMetrics(opts.Metrics))
	c.enforcer = compat.NewEnforcer(opts.Handshake, logger, opts.Metrics)

	releaseURL := opts.ReleaseURL
	if releaseURL == "" {
		releaseURL = ReleaseAPIURL
	}
	c.checker = versioncheck.NewChecker(opts.Fetcher, releaseURL, NumericVersion,
		versioncheck.WithHeaders(opts.Headers),
		versioncheck.WithLogger(logger),
		versioncheck.WithMetrics(opts.Metrics))

	c.task = mapsync.NewTask(opts.Saver, logger, opts.Metrics)
	return c, nil
}

// InstanceID identifies this process in logs.
func (c *Context) InstanceID() string { return c.instanceID }

// Settings returns the current settings.
func (c *Context) Settings() config.Settings { return c.settings.Get() }

// Health returns the combined status of the startup steps.
func (c *Context) Health() health.Status { return c.monitor.AggregateHealth("bootstrap") }

// Applicator returns the override applicator.
func (c *Context) Applicator() *override.Applicator { return c.applicator }

// Enforcer returns the compatibility enforcer.
func (c *Context) Enforcer() *compat.Enforcer { return c.enforcer }

// Checker returns the release checker.
func (c *Context) Checker() *versioncheck.Checker { return c.checker }

// SyncTask returns the map sync task.
func (c *Context) SyncTask() *mapsync.Task { return c.task }

// DataDir returns the private data directory, or "" when no data root was set.
func (c *Context) DataDir() string { return c.dataDir }

// Close stops the sync task.
func (c *Context) Close() {
	c.task.Stop()
}

func (c *Context) recordStep(step string, err error, okMessage string) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.monitor.Update(step, health.FromError(step, err, okMessage))
	if c.metrics != nil {
		c.metrics.BootstrapSteps.WithLabelValues(step, status).Inc()
	}
}
