// Package probe reports which optional host subsystems are loaded.
package probe

import (
	"log/slog"
	"strings"
)

// ModuleLister lists the modules currently loaded in the host.
type ModuleLister interface {
	LoadedModules() ([]string, error)
}

// Probe answers presence questions about optional host subsystems.
// A failing or panicking lister is reported as "absent".
type Probe struct {
	lister ModuleLister
	logger *slog.Logger
}

// New creates a probe over the given lister.
func New(lister ModuleLister, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{lister: lister, logger: logger.With("component", "probe")}
}

// IsSubsystemPresent reports whether any loaded module name contains name.
func (p *Probe) IsSubsystemPresent(name string) (present bool) {
	if p == nil || p.lister == nil || name == "" {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("Module listing panicked, treating subsystem as absent",
				"subsystem", name, "panic", r)
			present = false
		}
	}()

	modules, err := p.lister.LoadedModules()
	if err != nil {
		p.logger.Debug("Module listing failed, treating subsystem as absent",
			"subsystem", name, "error", err)
		return false
	}

	for _, module := range modules {
		if strings.Contains(module, name) {
			return true
		}
	}
	return false
}
