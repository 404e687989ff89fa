package bootstrap

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	pkgerrors "github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/mapsync"
	"github.com/VplusR/VplusReforged/versioncheck"
)

// Startup step names, as reported by Health.
const (
	StepConfig       = "config"
	StepOverrides    = "overrides"
	StepVersionCheck = "version-check"
	StepDataDir      = "data-dir"
	StepAssets       = "assets"
	StepMapSync      = "map-sync"
)

func dataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// OnLoad runs the startup sequence. Only the first call does anything; later
// calls return the first call's result.
//
// A settings failure stops the sequence before the host is touched. Every
// later step runs even when an earlier one failed; their errors are logged as
// they happen and returned together.
func (c *Context) OnLoad(ctx context.Context) error {
	c.loadOnce.Do(func() {
		c.loadErr = c.onLoad(ctx)
	})
	return c.loadErr
}

func (c *Context) onLoad(ctx context.Context) error {
	c.logger.Info("Valheim Plus starting", "full_version", FullVersion)
	c.logger.Info("Trying to load the configuration file")

	if err := c.loadSettings(ctx); err != nil {
		c.recordStep(StepConfig, err, "")
		c.monitor.UpdateUnhealthy(StepConfig, "configuration not loaded")
		c.logger.Error("Error while loading configuration file", "error", err)
		return err
	}
	c.recordStep(StepConfig, nil, "loaded")
	c.logger.Info("Configuration file loaded successfully")

	var result *multierror.Error

	if err := c.PatchAll(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	if c.checker.IsUpdateAvailable(ctx) {
		c.logger.Warn("There is a newer version available of Valheim Plus",
			"latest", c.checker.Latest(), "url", RepositoryURL)
		c.recordStep(StepVersionCheck, nil, "update available: "+c.checker.Latest())
	} else {
		c.logger.Info("Valheim Plus is up to date", "full_version", FullVersion, "latest", c.checker.Latest())
		c.recordStep(StepVersionCheck, nil, "latest: "+c.checker.Latest())
		if c.checker.Latest() == versioncheck.Unknown {
			c.monitor.UpdateDegraded(StepVersionCheck, "latest version unknown")
		}
	}

	if err := c.ensureDataDir(); err != nil {
		c.logger.Error("Failed to create data directory", "path", c.dataDir, "error", err)
		result = multierror.Append(result, err)
	}

	if err := c.loadAssets(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	settings := c.settings.Get()
	armed := c.task.Arm(ctx, mapsync.Schedule{
		Period:        c.syncPeriod,
		Authoritative: c.role.Authoritative(),
		MapEnabled:    settings.Map.Enabled,
		ShareEnabled:  settings.Map.ShareMapProgression,
	})
	if armed {
		c.recordStep(StepMapSync, nil, "armed")
	} else {
		c.recordStep(StepMapSync, nil, "not armed")
	}

	return result.ErrorOrNil()
}

func (c *Context) loadSettings(ctx context.Context) error {
	settings, err := c.loader.Load(ctx)
	if err != nil {
		return err
	}
	if err := c.settings.Update(settings); err != nil {
		return pkgerrors.WrapFatal(err, "Bootstrap", "loadSettings", "validate settings")
	}
	return nil
}

// PatchAll binds every override, then installs or removes the compatibility
// record according to Server.EnforceMod. When a mandatory override failed to
// bind, any installed record is removed regardless of settings.
func (c *Context) PatchAll(ctx context.Context) error {
	c.patchMu.Lock()
	defer c.patchMu.Unlock()
	return c.patchAll(ctx)
}

// patchAll must be called with c.patchMu held.
func (c *Context) patchAll(ctx context.Context) error {
	var result *multierror.Error

	res, err := c.applicator.ApplyAll(ctx)
	if err != nil {
		c.recordStep(StepOverrides, err, "")
		result = multierror.Append(result, pkgerrors.Wrap(err, "Bootstrap", "PatchAll", "apply overrides"))
		if err := c.enforcer.SetEnforcement(false, ModGUID, ModDisplayName, NumericVersion, MinRequiredNumericVersion); err != nil {
			result = multierror.Append(result, err)
		}
		return result.ErrorOrNil()
	}
	for _, f := range res.Failed {
		result = multierror.Append(result, f.Err)
	}
	c.recordStep(StepOverrides, result.ErrorOrNil(), "all bound")

	enforce := c.settings.Get().Server.EnforceMod
	if err := c.enforcer.SetEnforcement(enforce, ModGUID, ModDisplayName, NumericVersion, MinRequiredNumericVersion); err != nil {
		c.logger.Error("Failed to update mod enforcement", "enforce", enforce, "error", err)
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// Reload re-reads the settings and re-applies every override against them.
// The sync task is left as it was armed at startup. On a settings failure the
// previous settings and bindings stay in place.
func (c *Context) Reload(ctx context.Context) error {
	c.patchMu.Lock()
	defer c.patchMu.Unlock()

	if err := c.loadSettings(ctx); err != nil {
		c.logger.Error("Reload failed, keeping previous configuration", "error", err)
		return err
	}

	if err := c.applicator.RevertAll(ctx); err != nil {
		c.logger.Warn("Some overrides failed to revert during reload", "error", err)
	}
	if err := c.patchAll(ctx); err != nil {
		return err
	}
	c.logger.Info("Configuration reloaded", "bound", len(c.applicator.Bound()))
	return nil
}

// UnpatchSelf removes every override this process bound.
func (c *Context) UnpatchSelf(ctx context.Context) error {
	c.patchMu.Lock()
	defer c.patchMu.Unlock()

	if err := c.applicator.RevertAll(ctx); err != nil {
		return pkgerrors.Wrap(err, "Bootstrap", "UnpatchSelf", "revert overrides")
	}
	return nil
}

func (c *Context) ensureDataDir() error {
	if c.dataDir == "" {
		c.recordStep(StepDataDir, nil, "no data root")
		return nil
	}
	err := os.MkdirAll(c.dataDir, 0o755)
	if err != nil {
		err = pkgerrors.WrapTransient(err, "Bootstrap", "ensureDataDir", "create data directory")
	}
	c.recordStep(StepDataDir, err, "ready")
	return err
}

func (c *Context) loadAssets(ctx context.Context) error {
	var result *multierror.Error
	for _, asset := range c.assets {
		if err := asset.Load(ctx); err != nil {
			c.logger.Error("Failed to load asset", "asset", asset.Name(), "error", err)
			result = multierror.Append(result, pkgerrors.Wrap(err, "Bootstrap", "loadAssets", "load "+asset.Name()))
		}
	}
	err := result.ErrorOrNil()
	c.recordStep(StepAssets, err, "loaded")
	return err
}
