package host

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/VplusR/VplusReforged/errors"
)

// Target identifies a host function by owning type, method name and parameter
// signature. Host symbols are not a public contract, so all three are matched.
type Target struct {
	Type   string
	Method string
	Params []string
}

// Symbol returns "Type.Method".
func (t Target) Symbol() string {
	return t.Type + "." + t.Method
}

// String returns "Type.Method(p1,p2)".
func (t Target) String() string {
	return t.Symbol() + "(" + strings.Join(t.Params, ",") + ")"
}

// Frame carries one invocation through the hook chain.
type Frame struct {
	Instance any
	Args     []any
	Result   any
}

// Prefix runs before the function body. Returning false skips the body.
type Prefix func(*Frame) bool

// Postfix runs after the function body, even when a prefix skipped it.
type Postfix func(*Frame)

// Instruction is one step of a function body.
type Instruction struct {
	Op   string
	Exec func(*Frame)
}

// Program is the instruction stream of a function body.
type Program []Instruction

// Index returns the position of the first instruction with the given op, or -1.
func (p Program) Index(op string) int {
	return slices.IndexFunc(p, func(in Instruction) bool { return in.Op == op })
}

// Rewrite transforms a function's instruction stream. It receives a copy and
// may return a modified slice.
type Rewrite func(Program) Program

// Patch is the set of hooks attached by one binding. Exactly one hook is set.
// Patches compose by Priority descending, then Order ascending; bind order
// breaks any remaining tie.
type Patch struct {
	ID       string
	Priority int
	Order    int
	Prefix   Prefix
	Postfix  Postfix
	Rewrite  Rewrite
}

// Unbinder detaches a previously bound patch.
type Unbinder interface {
	Unbind() error
}

type chain struct {
	prefixes  []Prefix
	postfixes []Postfix
	program   Program
}

type entry struct {
	patch Patch
	seq   uint64
}

// Function is a single host function with its hook chain.
type Function struct {
	target   Target
	original Program

	active atomic.Pointer[chain]

	mu      sync.Mutex
	entries []*entry
	seq     uint64
}

// Target returns the function's descriptor.
func (f *Function) Target() Target {
	return f.target
}

// Invoke calls the function through its current hook chain. Hooks see a copy
// of args; the caller's slice is never modified.
func (f *Function) Invoke(instance any, args ...any) any {
	c := f.active.Load()
	frame := &Frame{Instance: instance, Args: slices.Clone(args)}

	runBody := true
	for _, prefix := range c.prefixes {
		if !prefix(frame) {
			runBody = false
		}
	}
	if runBody {
		for _, in := range c.program {
			if in.Exec != nil {
				in.Exec(frame)
			}
		}
	}
	for _, postfix := range c.postfixes {
		postfix(frame)
	}
	return frame.Result
}

// PatchIDs returns the IDs of the attached patches in composition order.
func (f *Function) PatchIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.entries))
	for _, e := range f.ordered() {
		ids = append(ids, e.patch.ID)
	}
	return ids
}

// ordered must be called with f.mu held.
func (f *Function) ordered() []*entry {
	sorted := slices.Clone(f.entries)
	slices.SortStableFunc(sorted, func(a, b *entry) int {
		if c := cmp.Compare(b.patch.Priority, a.patch.Priority); c != 0 {
			return c
		}
		if c := cmp.Compare(a.patch.Order, b.patch.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return sorted
}

// rebuild must be called with f.mu held.
func (f *Function) rebuild() {
	c := &chain{program: slices.Clone(f.original)}
	for _, e := range f.ordered() {
		switch {
		case e.patch.Prefix != nil:
			c.prefixes = append(c.prefixes, e.patch.Prefix)
		case e.patch.Postfix != nil:
			c.postfixes = append(c.postfixes, e.patch.Postfix)
		case e.patch.Rewrite != nil:
			c.program = e.patch.Rewrite(slices.Clone(c.program))
		}
	}
	f.active.Store(c)
}

func (f *Function) attach(p Patch) *entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	e := &entry{patch: p, seq: f.seq}
	f.entries = append(f.entries, e)
	f.rebuild()
	return e
}

func (f *Function) detach(e *entry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := slices.Index(f.entries, e)
	if idx < 0 {
		return false
	}
	f.entries = slices.Delete(f.entries, idx, idx+1)
	f.rebuild()
	return true
}

// Binding is an attached patch. Unbind is safe to call more than once.
type Binding struct {
	fn    *Function
	entry *entry
	once  sync.Once
}

// Unbind detaches the patch. The second and later calls return ErrNotBound.
func (b *Binding) Unbind() error {
	err := errors.WrapInvalid(errors.ErrNotBound, "Binding", "Unbind", "detach "+b.entry.patch.ID)
	b.once.Do(func() {
		if b.fn.detach(b.entry) {
			err = nil
		}
	})
	return err
}

// Host is a table of bindable functions plus the set of loaded modules.
type Host struct {
	mu        sync.RWMutex
	functions map[string]*Function
	modules   []string
}

// New creates an empty host.
func New() *Host {
	return &Host{functions: make(map[string]*Function)}
}

// Define adds a function to the host. Defining the same symbol twice is an error.
func (h *Host) Define(target Target, program Program) (*Function, error) {
	if target.Type == "" || target.Method == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Host", "Define", "target validation")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.functions[target.Symbol()]; exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("function %s already defined", target.Symbol()),
			"Host", "Define", "duplicate function check")
	}

	fn := &Function{target: target, original: slices.Clone(program)}
	fn.active.Store(&chain{program: slices.Clone(program)})
	h.functions[target.Symbol()] = fn
	return fn, nil
}

// Lookup resolves a target to its function. The parameter signature must match exactly.
func (h *Host) Lookup(target Target) (*Function, error) {
	h.mu.RLock()
	fn, exists := h.functions[target.Symbol()]
	h.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%s: %w", target, errors.ErrTargetNotFound)
	}
	if !slices.Equal(fn.target.Params, target.Params) {
		return nil, fmt.Errorf("%s has signature %s: %w", target, fn.target, errors.ErrSignatureMismatch)
	}
	return fn, nil
}

// Bind attaches a patch to the target function as one atomic step.
func (h *Host) Bind(target Target, patch Patch) (Unbinder, error) {
	hooks := 0
	for _, set := range []bool{patch.Prefix != nil, patch.Postfix != nil, patch.Rewrite != nil} {
		if set {
			hooks++
		}
	}
	if hooks != 1 {
		return nil, errors.WrapInvalid(errors.ErrInvalidOverride, "Host", "Bind", "hook validation")
	}

	fn, err := h.Lookup(target)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Host", "Bind", "target lookup")
	}

	return &Binding{fn: fn, entry: fn.attach(patch)}, nil
}

// LoadModule marks an optional subsystem as loaded.
func (h *Host) LoadModule(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !slices.Contains(h.modules, name) {
		h.modules = append(h.modules, name)
	}
}

// LoadedModules returns the names of the loaded modules.
func (h *Host) LoadedModules() ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.modules), nil
}
