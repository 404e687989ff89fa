package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VplusR/VplusReforged/errors"
)

const sampleSettings = `
[Server]
enabled=true
enforceMod=true
maxPlayers=20

[Map]
enabled=true
shareMapProgression=false
`

type fetchFunc func(ctx context.Context, url string, headers map[string]string) (string, error)

func (f fetchFunc) DownloadText(ctx context.Context, url string, headers map[string]string) (string, error) {
	return f(ctx, url, headers)
}

func writeSettings(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "valheim_plus.cfg")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestParse(t *testing.T) {
	settings, err := Parse([]byte(sampleSettings))
	require.NoError(t, err)

	assert.True(t, settings.Server.Enabled)
	assert.True(t, settings.Server.EnforceMod)
	assert.Equal(t, 20, settings.Server.MaxPlayers)
	assert.True(t, settings.Map.Enabled)
	assert.False(t, settings.Map.ShareMapProgression)
	assert.False(t, settings.ShareMap())
}

func TestParse_DefaultsForMissingKeys(t *testing.T) {
	settings, err := Parse([]byte("[Map]\nenabled=true\n"))
	require.NoError(t, err)

	assert.Equal(t, 10, settings.Server.MaxPlayers)
	assert.False(t, settings.Server.EnforceMod)
	assert.True(t, settings.Map.Enabled)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("[Server]\nmaxPlayers=500\n"))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = Parse([]byte("[Server]\nmaxPlayers=lots\n"))
	assert.Error(t, err)
}

func TestLoader_Load(t *testing.T) {
	path := writeSettings(t, sampleSettings)

	settings, err := NewLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, settings.Server.EnforceMod)
}

func TestLoader_DownloadsDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "valheim_plus.cfg")
	var gotURL string
	fetcher := fetchFunc(func(_ context.Context, url string, _ map[string]string) (string, error) {
		gotURL = url
		return sampleSettings, nil
	})

	settings, err := NewLoader(path, WithDefaultsSource(fetcher, "https://example.invalid/valheim_plus.cfg", nil)).
		Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/valheim_plus.cfg", gotURL)
	assert.Equal(t, 20, settings.Server.MaxPlayers)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleSettings, string(written))
}

func TestLoader_FailuresWrapConfigLoad(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "valheim_plus.cfg")
	failing := fetchFunc(func(context.Context, string, map[string]string) (string, error) {
		return "", stderrors.New("network unreachable")
	})

	tests := []struct {
		name   string
		loader *Loader
	}{
		{"missing without source", NewLoader(missing)},
		{"missing with failing source", NewLoader(missing, WithDefaultsSource(failing, "https://example.invalid", nil))},
		{"wrong extension", NewLoader(filepath.Join(t.TempDir(), "settings.json"))},
		{"bad values", NewLoader(writeSettings(t, "[Server]\nmaxPlayers=0\n"))},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := test.loader.Load(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrConfigLoad)
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestSafeSettings(t *testing.T) {
	ss := NewSafeSettings()
	assert.False(t, ss.Loaded())
	assert.Equal(t, Defaults(), ss.Get())

	updated := Defaults()
	updated.Server.EnforceMod = true
	require.NoError(t, ss.Update(updated))
	assert.True(t, ss.Loaded())
	assert.True(t, ss.Get().Server.EnforceMod)

	bad := Defaults()
	bad.Server.MaxPlayers = 0
	assert.Error(t, ss.Update(bad))
	assert.True(t, ss.Get().Server.EnforceMod)
}
