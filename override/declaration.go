package override

import (
	"fmt"

	"github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/host"
)

// Kind is the way an override attaches to its target.
type Kind int

const (
	// KindPrefix runs before the target and may skip its body
	KindPrefix Kind = iota
	// KindPostfix runs after the target
	KindPostfix
	// KindTranspiler rewrites the target's instruction stream
	KindTranspiler
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindPrefix:
		return "prefix"
	case KindPostfix:
		return "postfix"
	case KindTranspiler:
		return "transpiler"
	default:
		return "unknown"
	}
}

// Declaration describes one override. It is immutable once registered.
type Declaration struct {
	ID       string
	Target   host.Target
	Kind     Kind
	Priority int

	// Subsystem, when set, names an optional host module that must be loaded
	// for this override to be bound.
	Subsystem string

	Prefix     host.Prefix
	Postfix    host.Postfix
	Transpiler host.Rewrite

	// position in the registry, set on registration
	order int
}

// Key identifies a declaration in the bound set.
type Key struct {
	ID     string
	Target string
	Kind   Kind
}

// String returns "id@Type.Method(params)/kind".
func (k Key) String() string {
	return fmt.Sprintf("%s@%s/%s", k.ID, k.Target, k.Kind)
}

// Key returns the declaration's identity.
func (d Declaration) Key() Key {
	return Key{ID: d.ID, Target: d.Target.String(), Kind: d.Kind}
}

// Validate checks that the declaration is complete and that the hook matches its kind.
func (d Declaration) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("empty id: %w", errors.ErrInvalidOverride)
	}
	if d.Target.Type == "" || d.Target.Method == "" {
		return fmt.Errorf("%s: empty target: %w", d.ID, errors.ErrInvalidOverride)
	}

	var ok bool
	switch d.Kind {
	case KindPrefix:
		ok = d.Prefix != nil && d.Postfix == nil && d.Transpiler == nil
	case KindPostfix:
		ok = d.Postfix != nil && d.Prefix == nil && d.Transpiler == nil
	case KindTranspiler:
		ok = d.Transpiler != nil && d.Prefix == nil && d.Postfix == nil
	}
	if !ok {
		return fmt.Errorf("%s: hook does not match kind %s: %w", d.ID, d.Kind, errors.ErrInvalidOverride)
	}
	return nil
}

func (d Declaration) patch() host.Patch {
	return host.Patch{
		ID:       d.ID,
		Priority: d.Priority,
		Order:    d.order,
		Prefix:   d.Prefix,
		Postfix:  d.Postfix,
		Rewrite:  d.Transpiler,
	}
}
