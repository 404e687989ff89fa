package compat

import (
	"log/slog"
	"sync"

	"github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/metric"
)

// Enforcer keeps at most one record for the mod installed in the handshake
// registry. It has two states, enforced and not enforced; the guard flag
// prevents a second installation.
type Enforcer struct {
	handshake Handshake
	logger    *slog.Logger
	metrics   *metric.Metrics

	mu        sync.Mutex
	installed bool
	identity  string
}

// NewEnforcer creates an enforcer over the handshake registry. metrics may be nil.
func NewEnforcer(handshake Handshake, logger *slog.Logger, metrics *metric.Metrics) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		handshake: handshake,
		logger:    logger.With("component", "compat-enforcer"),
		metrics:   metrics,
	}
}

// SetEnforcement installs the mod's record when required is true and none is
// installed, and removes it when required is false and one is installed. The
// other two combinations are no-ops.
func (e *Enforcer) SetEnforcement(required bool, identity, displayName, currentVersion, minimumRequiredVersion string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case required && !e.installed:
		record := Record{
			Identity:               identity,
			DisplayName:            displayName,
			CurrentVersion:         currentVersion,
			MinimumRequiredVersion: minimumRequiredVersion,
			Required:               true,
		}
		if e.handshake == nil {
			return errors.WrapFatal(errors.ErrNotStarted, "Enforcer", "SetEnforcement", "handshake registry check")
		}
		if err := e.handshake.Register(record); err != nil {
			return errors.Wrap(err, "Enforcer", "SetEnforcement", "install record")
		}
		e.installed = true
		e.identity = identity
		e.logger.Info("Mod version enforcement enabled", "record", record)

	case !required && e.installed:
		if e.handshake == nil || !e.handshake.Unregister(e.identity) {
			e.logger.Debug("No compatibility record to remove", "identity", e.identity)
		}
		e.logger.Info("Mod version enforcement disabled", "identity", e.identity)
		e.installed = false
		e.identity = ""
	}

	if e.metrics != nil {
		if e.installed {
			e.metrics.EnforcementActive.Set(1)
		} else {
			e.metrics.EnforcementActive.Set(0)
		}
	}
	return nil
}

// Enforced reports whether the mod's record is currently installed.
func (e *Enforcer) Enforced() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.installed
}
