package host

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VplusR/VplusReforged/errors"
)

func addTarget() Target {
	return Target{Type: "Calc", Method: "Add", Params: []string{"int", "int"}}
}

func defineAdd(t *testing.T, h *Host) *Function {
	t.Helper()
	fn, err := h.Define(addTarget(), Program{
		{Op: "add", Exec: func(f *Frame) { f.Result = f.Args[0].(int) + f.Args[1].(int) }},
	})
	require.NoError(t, err)
	return fn
}

func TestHost_DefineAndInvoke(t *testing.T) {
	h := New()
	fn := defineAdd(t, h)

	assert.Equal(t, 5, fn.Invoke(nil, 2, 3))

	_, err := h.Define(addTarget(), nil)
	assert.True(t, errors.IsInvalid(err))
}

func TestHost_Lookup(t *testing.T) {
	h := New()
	defineAdd(t, h)

	_, err := h.Lookup(Target{Type: "Calc", Method: "Sub", Params: []string{"int", "int"}})
	assert.ErrorIs(t, err, errors.ErrTargetNotFound)

	_, err = h.Lookup(Target{Type: "Calc", Method: "Add", Params: []string{"int"}})
	assert.ErrorIs(t, err, errors.ErrSignatureMismatch)
}

func TestHost_PrefixSkipsBody(t *testing.T) {
	h := New()
	fn := defineAdd(t, h)

	b, err := h.Bind(addTarget(), Patch{ID: "skip", Prefix: func(f *Frame) bool {
		f.Result = -1
		return false
	}})
	require.NoError(t, err)
	assert.Equal(t, -1, fn.Invoke(nil, 2, 3))

	require.NoError(t, b.Unbind())
	assert.Equal(t, 5, fn.Invoke(nil, 2, 3))
	assert.ErrorIs(t, b.Unbind(), errors.ErrNotBound)
}

func TestHost_CompositionOrder(t *testing.T) {
	h := New()
	fn := defineAdd(t, h)

	var order []string
	record := func(id string) Postfix {
		return func(*Frame) { order = append(order, id) }
	}

	for _, p := range []Patch{
		{ID: "low", Priority: 0, Postfix: record("low")},
		{ID: "high", Priority: 10, Postfix: record("high")},
		{ID: "low-second", Priority: 0, Postfix: record("low-second")},
	} {
		_, err := h.Bind(addTarget(), p)
		require.NoError(t, err)
	}

	fn.Invoke(nil, 1, 1)
	assert.Equal(t, []string{"high", "low", "low-second"}, order)
	assert.Equal(t, []string{"high", "low", "low-second"}, fn.PatchIDs())
}

func TestHost_RewriteProgram(t *testing.T) {
	h := New()
	fn := defineAdd(t, h)

	b, err := h.Bind(addTarget(), Patch{ID: "double", Rewrite: func(p Program) Program {
		return append(p, Instruction{Op: "double", Exec: func(f *Frame) { f.Result = f.Result.(int) * 2 }})
	}})
	require.NoError(t, err)
	assert.Equal(t, 10, fn.Invoke(nil, 2, 3))

	require.NoError(t, b.Unbind())
	assert.Equal(t, 5, fn.Invoke(nil, 2, 3))
}

func TestHost_BindRequiresExactlyOneHook(t *testing.T) {
	h := New()
	defineAdd(t, h)

	_, err := h.Bind(addTarget(), Patch{ID: "none"})
	assert.ErrorIs(t, err, errors.ErrInvalidOverride)

	_, err = h.Bind(addTarget(), Patch{
		ID:      "both",
		Prefix:  func(*Frame) bool { return true },
		Postfix: func(*Frame) {},
	})
	assert.ErrorIs(t, err, errors.ErrInvalidOverride)
}

func TestHost_ConcurrentInvokeDuringBind(t *testing.T) {
	h := New()
	fn := defineAdd(t, h)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				result := fn.Invoke(nil, 2, 3)
				assert.Contains(t, []any{5, 0}, result)
			}
		}
	}()

	for i := 0; i < 100; i++ {
		b, err := h.Bind(addTarget(), Patch{ID: "zero", Prefix: func(f *Frame) bool {
			f.Result = 0
			return false
		}})
		require.NoError(t, err)
		require.NoError(t, b.Unbind())
	}
	close(stop)
	wg.Wait()
}

func TestHost_Modules(t *testing.T) {
	h := New()
	h.LoadModule("assembly_steamworks")
	h.LoadModule("assembly_steamworks")

	modules, err := h.LoadedModules()
	require.NoError(t, err)
	assert.Equal(t, []string{"assembly_steamworks"}, modules)
}

func TestHost_OrderBreaksPriorityTies(t *testing.T) {
	h := New()
	fn := defineAdd(t, h)

	for _, p := range []Patch{
		{ID: "second", Order: 2, Postfix: func(*Frame) {}},
		{ID: "first", Order: 1, Postfix: func(*Frame) {}},
		{ID: "top", Priority: 5, Order: 9, Postfix: func(*Frame) {}},
	} {
		_, err := h.Bind(addTarget(), p)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"top", "first", "second"}, fn.PatchIDs())
}

func TestHost_InvokeDoesNotModifyCallerArgs(t *testing.T) {
	h := New()
	fn := defineAdd(t, h)

	_, err := h.Bind(addTarget(), Patch{ID: "rewrite-args", Prefix: func(f *Frame) bool {
		f.Args[0] = 100
		return true
	}})
	require.NoError(t, err)

	args := []any{2, 3}
	assert.Equal(t, 103, fn.Invoke(nil, args...))
	assert.Equal(t, []any{2, 3}, args)
}
