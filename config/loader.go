package config

import (
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"

	"github.com/VplusR/VplusReforged/errors"
)

// Fetcher downloads text from a URL.
type Fetcher interface {
	DownloadText(ctx context.Context, url string, headers map[string]string) (string, error)
}

// Loader reads the settings file, falling back to the remote defaults when it is missing.
type Loader struct {
	path    string
	fetcher Fetcher
	url     string
	headers map[string]string
	logger  *slog.Logger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithDefaultsSource sets where the default settings text is downloaded from
func WithDefaultsSource(fetcher Fetcher, url string, headers map[string]string) LoaderOption {
	return func(l *Loader) {
		l.fetcher = fetcher
		l.url = url
		l.headers = headers
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader for the settings file at path
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{path: path, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "config")
	return l
}

// Path returns the settings file path
func (l *Loader) Path() string {
	return l.path
}

// Load reads and parses the settings file. Every failure wraps ErrConfigLoad.
func (l *Loader) Load(ctx context.Context) (Settings, error) {
	data, err := safeReadFile(l.path)
	if stderrors.Is(err, fs.ErrNotExist) {
		l.logger.Info("Settings file not found, downloading defaults", "path", l.path, "url", l.url)
		data, err = l.downloadDefaults(ctx)
	}
	if err != nil {
		return Settings{}, errors.WrapFatal(stderrors.Join(errors.ErrConfigLoad, err), "Loader", "Load", "read settings")
	}

	settings, err := Parse(data)
	if err != nil {
		return Settings{}, errors.WrapFatal(stderrors.Join(errors.ErrConfigLoad, err), "Loader", "Load", "parse settings")
	}
	return settings, nil
}

func (l *Loader) downloadDefaults(ctx context.Context) ([]byte, error) {
	if l.fetcher == nil || l.url == "" {
		return nil, errors.ErrConfigNotFound
	}

	text, err := l.fetcher.DownloadText(ctx, l.url, l.headers)
	if err != nil {
		l.logger.Error("Error downloading latest config", "url", l.url, "error", err)
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(l.path, []byte(text), 0o644); err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// Parse parses settings text. Keys absent from the text keep their defaults.
func Parse(data []byte) (Settings, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return Settings{}, errors.WrapInvalid(stderrors.Join(errors.ErrParsingFailed, err), "config", "Parse", "ini decode")
	}

	settings := Defaults()
	if err := file.Section("Server").StrictMapTo(&settings.Server); err != nil {
		return Settings{}, errors.WrapInvalid(err, "config", "Parse", "map [Server]")
	}
	if err := file.Section("Map").StrictMapTo(&settings.Map); err != nil {
		return Settings{}, errors.WrapInvalid(err, "config", "Parse", "map [Map]")
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
