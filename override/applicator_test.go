package override

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/host"
	"github.com/VplusR/VplusReforged/metric"
)

type staticProbe map[string]bool

func (p staticProbe) IsSubsystemPresent(name string) bool { return p[name] }

var (
	weightTarget = host.Target{Type: "Player", Method: "GetMaxCarryWeight"}
	lobbyTarget  = host.Target{Type: "ZPlayFabMatchmaking", Method: "CreateLobby"}
	steamTarget  = host.Target{Type: "SteamGameServer", Method: "SetMaxPlayerCount", Params: []string{"int"}}
)

func newTestHost(t *testing.T) *host.Host {
	t.Helper()
	h := host.New()
	_, err := h.Define(weightTarget, host.Program{
		{Op: "base", Exec: func(f *host.Frame) { f.Result = 300 }},
	})
	require.NoError(t, err)
	_, err = h.Define(lobbyTarget, host.Program{
		{Op: "ldc.max", Exec: func(f *host.Frame) { f.Result = 10 }},
	})
	require.NoError(t, err)
	_, err = h.Define(steamTarget, host.Program{
		{Op: "set", Exec: func(f *host.Frame) { f.Result = f.Args[0] }},
	})
	require.NoError(t, err)
	return h
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(Declaration{
		ID: "carry-weight", Target: weightTarget, Kind: KindPostfix,
		Postfix: func(f *host.Frame) { f.Result = f.Result.(int) + 150 },
	}))
	require.NoError(t, r.Register(Declaration{
		ID: "steam-max-players", Target: steamTarget, Kind: KindPrefix, Subsystem: "assembly_steamworks",
		Prefix: func(f *host.Frame) bool {
			f.Args[0] = 64
			return true
		},
	}))
	require.NoError(t, r.RegisterManual(Declaration{
		ID: "lobby-size", Target: lobbyTarget, Kind: KindTranspiler,
		Transpiler: func(p host.Program) host.Program {
			return append(p, host.Instruction{Op: "ldc.max", Exec: func(f *host.Frame) { f.Result = 64 }})
		},
	}))
	return r
}

func invoke(t *testing.T, h *host.Host, target host.Target, args ...any) any {
	t.Helper()
	fn, err := h.Lookup(target)
	require.NoError(t, err)
	return fn.Invoke(nil, args...)
}

func TestApplicator_ApplyRevertCycle(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	a := NewApplicator(newTestRegistry(t), h, staticProbe{"assembly_steamworks": true})

	result, err := a.ApplyAll(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Bound, 3)
	assert.Empty(t, result.Failed)
	first := a.Bound()

	assert.Equal(t, 450, invoke(t, h, weightTarget))
	assert.Equal(t, 64, invoke(t, h, lobbyTarget))
	assert.Equal(t, 64, invoke(t, h, steamTarget, 10))

	require.NoError(t, a.RevertAll(ctx))
	assert.Empty(t, a.Bound())
	assert.Equal(t, 300, invoke(t, h, weightTarget))
	assert.Equal(t, 10, invoke(t, h, lobbyTarget))
	assert.Equal(t, 10, invoke(t, h, steamTarget, 10))

	_, err = a.ApplyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, a.Bound())
}

func TestApplicator_ApplyAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)
	a := NewApplicator(newTestRegistry(t), h, staticProbe{"assembly_steamworks": true})

	_, err := a.ApplyAll(ctx)
	require.NoError(t, err)

	result, err := a.ApplyAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Bound)
	assert.Equal(t, 3, result.AlreadyBound)
	assert.Len(t, a.Bound(), 3)

	// a second application would stack the postfix
	assert.Equal(t, 450, invoke(t, h, weightTarget))

	fn, err := h.Lookup(weightTarget)
	require.NoError(t, err)
	assert.Equal(t, []string{"carry-weight"}, fn.PatchIDs())
}

func TestApplicator_SkipsAbsentSubsystem(t *testing.T) {
	h := newTestHost(t)
	a := NewApplicator(newTestRegistry(t), h, staticProbe{})

	result, err := a.ApplyAll(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "steam-max-players", result.Skipped[0].ID)
	assert.Len(t, result.Bound, 2)
	assert.Equal(t, 10, invoke(t, h, steamTarget, 10))
	assert.Equal(t, 450, invoke(t, h, weightTarget))
}

func TestApplicator_NilProbeSkipsConditional(t *testing.T) {
	a := NewApplicator(newTestRegistry(t), newTestHost(t), nil)

	result, err := a.ApplyAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Skipped, 1)
}

func TestApplicator_DeclarativeFailureIsIsolated(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(Declaration{
		ID: "missing", Target: host.Target{Type: "Ship", Method: "GetSailForce"}, Kind: KindPostfix,
		Postfix: func(*host.Frame) {},
	}))
	require.NoError(t, r.Register(Declaration{
		ID: "wrong-signature", Target: host.Target{Type: "Player", Method: "GetMaxCarryWeight", Params: []string{"bool"}},
		Kind: KindPostfix, Postfix: func(*host.Frame) {},
	}))

	registry := metric.NewMetricsRegistry()
	a := NewApplicator(r, newTestHost(t), staticProbe{"assembly_steamworks": true},
		WithMetrics(registry.CoreMetrics()))

	result, err := a.ApplyAll(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Failed, 2)
	assert.ErrorIs(t, result.Failed[0].Err, errors.ErrTargetNotFound)
	assert.ErrorIs(t, result.Failed[1].Err, errors.ErrSignatureMismatch)
	assert.Len(t, result.Bound, 3)
}

func TestApplicator_ManualFailureIsFatal(t *testing.T) {
	h := host.New()
	_, err := h.Define(weightTarget, host.Program{{Op: "base", Exec: func(f *host.Frame) { f.Result = 300 }}})
	require.NoError(t, err)

	r := NewRegistry()
	require.NoError(t, r.Register(Declaration{
		ID: "carry-weight", Target: weightTarget, Kind: KindPostfix,
		Postfix: func(f *host.Frame) { f.Result = f.Result.(int) + 150 },
	}))
	require.NoError(t, r.RegisterManual(Declaration{
		ID: "lobby-size", Target: lobbyTarget, Kind: KindTranspiler,
		Transpiler: func(p host.Program) host.Program { return p },
	}))

	a := NewApplicator(r, h, nil)
	result, err := a.ApplyAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, errors.ErrTargetNotFound)
	assert.Len(t, result.Bound, 1)
	assert.True(t, a.IsBound(r.Declarations()[0].Key()))
}

func TestApplicator_ManualBoundAfterDeclarative(t *testing.T) {
	h := newTestHost(t)
	r := NewRegistry()

	require.NoError(t, r.RegisterManual(Declaration{
		ID: "manual-rewrite", Target: lobbyTarget, Kind: KindTranspiler,
		Transpiler: func(p host.Program) host.Program { return p },
	}))
	require.NoError(t, r.Register(Declaration{
		ID: "declared-rewrite", Target: lobbyTarget, Kind: KindTranspiler,
		Transpiler: func(p host.Program) host.Program { return p },
	}))

	a := NewApplicator(r, h, nil)
	_, err := a.ApplyAll(context.Background())
	require.NoError(t, err)

	bound := a.Bound()
	require.Len(t, bound, 2)
	assert.Equal(t, "declared-rewrite", bound[0].ID)
	assert.Equal(t, "manual-rewrite", bound[1].ID)
}

func TestApplicator_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewApplicator(newTestRegistry(t), newTestHost(t), nil)
	_, err := a.ApplyAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, a.Bound())
}

func TestApplicator_RevertAllOnEmptySet(t *testing.T) {
	a := NewApplicator(NewRegistry(), host.New(), nil)
	assert.NoError(t, a.RevertAll(context.Background()))
	assert.Empty(t, a.Bound())
}

func TestApplicator_CompositionFollowsRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t)

	r := NewRegistry()
	require.NoError(t, r.Register(Declaration{
		ID: "steam-bonus", Target: weightTarget, Kind: KindPostfix, Subsystem: "assembly_steamworks",
		Postfix: func(*host.Frame) {},
	}))
	require.NoError(t, r.Register(Declaration{
		ID: "carry-weight", Target: weightTarget, Kind: KindPostfix,
		Postfix: func(*host.Frame) {},
	}))

	probe := staticProbe{}
	a := NewApplicator(r, h, probe)
	fn, err := h.Lookup(weightTarget)
	require.NoError(t, err)

	_, err = a.ApplyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"carry-weight"}, fn.PatchIDs())

	probe["assembly_steamworks"] = true
	_, err = a.ApplyAll(ctx)
	require.NoError(t, err)
	incremental := fn.PatchIDs()
	assert.Equal(t, []string{"steam-bonus", "carry-weight"}, incremental)

	require.NoError(t, a.RevertAll(ctx))
	_, err = a.ApplyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, incremental, fn.PatchIDs())
}
