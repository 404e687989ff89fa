package override

import (
	"slices"
	"sync"

	"github.com/VplusR/VplusReforged/errors"
)

// Registry holds every override the mod declares. Declarative overrides are
// bound in registration order; manual overrides form a fixed ordered list
// bound strictly after the declarative pass.
type Registry struct {
	mu          sync.RWMutex
	declarative []Declaration
	manual      []Declaration
	ids         map[string]struct{}
	next        int
}

// NewRegistry creates a new empty override registry
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Register adds a declarative override.
func (r *Registry) Register(d Declaration) error {
	return r.add(d, false)
}

// RegisterManual appends an override to the ordered manual list.
func (r *Registry) RegisterManual(d Declaration) error {
	return r.add(d, true)
}

func (r *Registry) add(d Declaration, manual bool) error {
	if err := d.Validate(); err != nil {
		return errors.WrapInvalid(err, "Registry", "Register", "declaration validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ids[d.ID]; exists {
		return errors.WrapInvalid(errors.ErrDuplicateOverride, "Registry", "Register", "duplicate check for "+d.ID)
	}
	r.ids[d.ID] = struct{}{}
	d.order = r.next
	r.next++

	if manual {
		r.manual = append(r.manual, d)
	} else {
		r.declarative = append(r.declarative, d)
	}
	return nil
}

// Declarations returns the declarative overrides in registration order.
func (r *Registry) Declarations() []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.declarative)
}

// Manual returns the manual overrides in their fixed order.
func (r *Registry) Manual() []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.manual)
}

// Len returns the total number of registered overrides.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.declarative) + len(r.manual)
}
