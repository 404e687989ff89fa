package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VplusR/VplusReforged/errors"
)

func TestRegistry_RegisterAndUnregister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Record{Identity: "b"}))
	require.NoError(t, r.Register(Record{Identity: "a"}))
	assert.ErrorIs(t, r.Register(Record{Identity: "a"}), errors.ErrDuplicateRecord)
	assert.True(t, errors.IsInvalid(r.Register(Record{})))

	records := r.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Identity)

	_, ok := r.Lookup("b")
	assert.True(t, ok)

	assert.True(t, r.Unregister("a"))
	assert.False(t, r.Unregister("a"))
	assert.False(t, r.Unregister("missing"))
}

func TestRegistry_Verify(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Record{
		Identity:               testGUID,
		DisplayName:            testName,
		CurrentVersion:         "0.9.9.16",
		MinimumRequiredVersion: "0.9.9.16",
		Required:               true,
	}))
	require.NoError(t, r.Register(Record{Identity: "optional.mod", MinimumRequiredVersion: "2.0"}))

	tests := []struct {
		name    string
		peer    []Record
		wantErr bool
	}{
		{"same version", []Record{{Identity: testGUID, CurrentVersion: "0.9.9.16"}}, false},
		{"newer version", []Record{{Identity: testGUID, CurrentVersion: "0.9.10"}}, false},
		{"older version", []Record{{Identity: testGUID, CurrentVersion: "0.9.9.15"}}, true},
		{"missing mod", []Record{{Identity: "optional.mod", CurrentVersion: "2.0"}}, true},
		{"unparseable version", []Record{{Identity: testGUID, CurrentVersion: "dev"}}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := r.Verify(test.peer)
			if test.wantErr {
				assert.ErrorIs(t, err, errors.ErrIncompatiblePeer)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRole(t *testing.T) {
	assert.True(t, ParseRole("server").Authoritative())
	assert.False(t, ParseRole("client").Authoritative())
	assert.False(t, ParseRole("").Authoritative())
	assert.Equal(t, "server", RoleServer.String())
	assert.Equal(t, "unknown", Role(7).String())
}
