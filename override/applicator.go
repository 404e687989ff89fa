package override

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/host"
	"github.com/VplusR/VplusReforged/metric"
)

// Binder attaches patches to host functions. *host.Host satisfies it.
type Binder interface {
	Bind(target host.Target, patch host.Patch) (host.Unbinder, error)
}

// SubsystemProbe reports whether an optional host subsystem is loaded.
type SubsystemProbe interface {
	IsSubsystemPresent(name string) bool
}

// Phase names the pass a declaration was bound in.
type Phase string

const (
	PhaseDeclarative Phase = "declarative"
	PhaseManual      Phase = "manual"
)

// Failure records a declarative override that could not be bound.
type Failure struct {
	Key Key
	Err error
}

// Result summarizes one ApplyAll call.
type Result struct {
	Bound        []Key
	AlreadyBound int
	Skipped      []Key
	Failed       []Failure
}

// Applicator binds the registry's overrides to the host and reverts them.
// It owns the bound set.
type Applicator struct {
	registry *Registry
	binder   Binder
	probe    SubsystemProbe
	logger   *slog.Logger
	metrics  *metric.Metrics

	mu    sync.Mutex
	bound map[Key]host.Unbinder
	order []Key
}

// Option configures an Applicator
type Option func(*Applicator)

// WithMetrics records bind outcomes on the given metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(a *Applicator) {
		a.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Applicator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewApplicator creates an applicator over the registry. probe may be nil, in
// which case every subsystem-conditional override is skipped.
func NewApplicator(registry *Registry, binder Binder, probe SubsystemProbe, opts ...Option) *Applicator {
	a := &Applicator{
		registry: registry,
		binder:   binder,
		probe:    probe,
		logger:   slog.Default(),
		bound:    make(map[Key]host.Unbinder),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "override-applicator")
	return a
}

// ApplyAll binds the declarative set, then the manual list in order.
// Declarations that are already bound are left alone. A declarative failure is
// recorded and the pass continues; a manual failure stops the pass and is
// returned as a fatal error.
func (a *Applicator) ApplyAll(ctx context.Context) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var result Result

	for _, d := range a.registry.Declarations() {
		if err := ctx.Err(); err != nil {
			return result, errors.WrapTransient(err, "Applicator", "ApplyAll", "declarative pass")
		}
		if err := a.applyOne(d, PhaseDeclarative, &result); err != nil {
			result.Failed = append(result.Failed, Failure{Key: d.Key(), Err: err})
			a.logger.Warn("Override bind failed, continuing",
				"override", d.ID, "target", d.Target.String(), "kind", d.Kind.String(), "error", err)
		}
	}

	for _, d := range a.registry.Manual() {
		if err := ctx.Err(); err != nil {
			return result, errors.WrapTransient(err, "Applicator", "ApplyAll", "manual pass")
		}
		if err := a.applyOne(d, PhaseManual, &result); err != nil {
			a.logger.Error("Mandatory override bind failed, host is only partially modified",
				"override", d.ID, "target", d.Target.String(), "kind", d.Kind.String(),
				"bound", len(a.order), "error", err)
			return result, errors.WrapFatal(err, "Applicator", "ApplyAll", "manual override "+d.ID)
		}
	}

	a.logger.Info("Overrides applied",
		"bound", len(result.Bound),
		"already_bound", result.AlreadyBound,
		"skipped", len(result.Skipped),
		"failed", len(result.Failed))
	return result, nil
}

// applyOne must be called with a.mu held.
func (a *Applicator) applyOne(d Declaration, phase Phase, result *Result) error {
	key := d.Key()
	if _, exists := a.bound[key]; exists {
		result.AlreadyBound++
		return nil
	}

	if d.Subsystem != "" && (a.probe == nil || !a.probe.IsSubsystemPresent(d.Subsystem)) {
		a.logger.Info("Optional subsystem absent, skipping override",
			"override", d.ID, "subsystem", d.Subsystem)
		result.Skipped = append(result.Skipped, key)
		if a.metrics != nil {
			a.metrics.OverridesSkipped.WithLabelValues(d.Subsystem).Inc()
		}
		return nil
	}

	unbinder, err := a.binder.Bind(d.Target, d.patch())
	if err != nil {
		if a.metrics != nil {
			a.metrics.OverrideFailures.WithLabelValues(string(phase), d.Kind.String()).Inc()
		}
		return err
	}

	a.bound[key] = unbinder
	a.order = append(a.order, key)
	result.Bound = append(result.Bound, key)
	if a.metrics != nil {
		a.metrics.OverridesBound.Set(float64(len(a.order)))
	}
	a.logger.Debug("Override bound", "override", d.ID, "target", d.Target.String(), "phase", string(phase))
	return nil
}

// RevertAll unbinds every bound override in reverse bind order. The bound set
// is empty on return; unbind failures are aggregated into the returned error.
func (a *Applicator) RevertAll(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var result *multierror.Error
	for i := len(a.order) - 1; i >= 0; i-- {
		key := a.order[i]
		if err := a.bound[key].Unbind(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "Applicator", "RevertAll", "unbind "+key.String()))
		}
	}

	reverted := len(a.order)
	a.bound = make(map[Key]host.Unbinder)
	a.order = nil

	if a.metrics != nil {
		a.metrics.OverridesBound.Set(0)
		a.metrics.Reverts.Inc()
	}
	a.logger.Info("Overrides reverted", "count", reverted)
	return result.ErrorOrNil()
}

// Bound returns the bound set in bind order.
func (a *Applicator) Bound() []Key {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.order)
}

// IsBound reports whether the declaration with the given key is bound.
func (a *Applicator) IsBound(key Key) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, exists := a.bound[key]
	return exists
}
