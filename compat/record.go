// Package compat implements the peer version-compatibility protocol: the
// process-wide registry of required mod versions that the peer handshake
// exchanges, and the enforcer that installs or removes the mod's own record.
package compat

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/versioncheck"
)

// Record declares that peers must run a compatible version of a mod.
type Record struct {
	Identity               string `json:"identity"`
	DisplayName            string `json:"display_name"`
	CurrentVersion         string `json:"current_version"`
	MinimumRequiredVersion string `json:"minimum_required_version"`
	Required               bool   `json:"required"`
}

// Handshake is the installable record registry of the peer handshake subsystem.
type Handshake interface {
	Register(record Record) error
	Unregister(identity string) bool
}

// Registry is the in-process handshake registry, keyed by identity.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewRegistry creates an empty record registry
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]Record)}
}

// Register installs a record. An identity may be installed once.
func (r *Registry) Register(record Record) error {
	if record.Identity == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "identity validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.Identity]; exists {
		return errors.WrapInvalid(errors.ErrDuplicateRecord, "Registry", "Register", "duplicate check for "+record.Identity)
	}
	r.records[record.Identity] = record
	return nil
}

// Unregister removes exactly the record with the given identity and reports
// whether one was removed. A nil or empty registry removes nothing.
func (r *Registry) Unregister(identity string) bool {
	if r == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[identity]; !exists {
		return false
	}
	delete(r.records, identity)
	return true
}

// Lookup returns the record installed for identity.
func (r *Registry) Lookup(identity string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[identity]
	return record, ok
}

// Records returns the installed records sorted by identity.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, id := range slices.Sorted(maps.Keys(r.records)) {
		out = append(out, r.records[id])
	}
	return out
}

// Verify checks a peer's records against the locally required ones. Every
// required local record must be matched by a peer record with the same identity
// whose current version is at least the local minimum.
func (r *Registry) Verify(peer []Record) error {
	byIdentity := make(map[string]Record, len(peer))
	for _, p := range peer {
		byIdentity[p.Identity] = p
	}

	for _, local := range r.Records() {
		if !local.Required {
			continue
		}
		remote, ok := byIdentity[local.Identity]
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("%s is not installed on peer: %w", local.DisplayName, errors.ErrIncompatiblePeer),
				"Registry", "Verify", "peer record lookup")
		}
		cmp, err := versioncheck.Compare(remote.CurrentVersion, local.MinimumRequiredVersion)
		if err != nil {
			if remote.CurrentVersion == local.MinimumRequiredVersion {
				continue
			}
			return errors.WrapInvalid(
				fmt.Errorf("%s version %q is not comparable to %q: %w",
					local.DisplayName, remote.CurrentVersion, local.MinimumRequiredVersion, errors.ErrIncompatiblePeer),
				"Registry", "Verify", "version compare")
		}
		if cmp < 0 {
			return errors.WrapInvalid(
				fmt.Errorf("%s version %s is older than required %s: %w",
					local.DisplayName, remote.CurrentVersion, local.MinimumRequiredVersion, errors.ErrIncompatiblePeer),
				"Registry", "Verify", "version compare")
		}
	}
	return nil
}

// LogValue renders a record for slog.
func (rec Record) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("identity", rec.Identity),
		slog.String("current", rec.CurrentVersion),
		slog.String("minimum", rec.MinimumRequiredVersion),
		slog.Bool("required", rec.Required),
	)
}
