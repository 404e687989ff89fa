package override

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/host"
)

func prefixDecl(id string, target host.Target) Declaration {
	return Declaration{
		ID:     id,
		Target: target,
		Kind:   KindPrefix,
		Prefix: func(*host.Frame) bool { return true },
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	target := host.Target{Type: "Player", Method: "GetMaxCarryWeight"}

	require.NoError(t, r.Register(prefixDecl("a", target)))
	require.NoError(t, r.Register(prefixDecl("b", target)))
	require.NoError(t, r.RegisterManual(prefixDecl("m", target)))

	assert.Equal(t, 3, r.Len())
	decls := r.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, "a", decls[0].ID)
	assert.Equal(t, "b", decls[1].ID)
	assert.Equal(t, "m", r.Manual()[0].ID)
}

func TestRegistry_RejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	target := host.Target{Type: "Player", Method: "GetMaxCarryWeight"}

	require.NoError(t, r.Register(prefixDecl("a", target)))
	err := r.RegisterManual(prefixDecl("a", target))
	assert.ErrorIs(t, err, errors.ErrDuplicateOverride)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistry_RejectsInvalidDeclarations(t *testing.T) {
	target := host.Target{Type: "Player", Method: "GetMaxCarryWeight"}

	tests := []struct {
		name string
		decl Declaration
	}{
		{"empty id", prefixDecl("", target)},
		{"empty target", prefixDecl("x", host.Target{})},
		{"missing hook", Declaration{ID: "x", Target: target, Kind: KindPostfix}},
		{"hook kind mismatch", Declaration{
			ID: "x", Target: target, Kind: KindTranspiler,
			Prefix: func(*host.Frame) bool { return true },
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := NewRegistry().Register(test.decl)
			assert.ErrorIs(t, err, errors.ErrInvalidOverride)
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "prefix", KindPrefix.String())
	assert.Equal(t, "postfix", KindPostfix.String())
	assert.Equal(t, "transpiler", KindTranspiler.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
