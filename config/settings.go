package config

import (
	"fmt"
	"sync"

	"github.com/VplusR/VplusReforged/errors"
)

// ServerSettings is the [Server] section
type ServerSettings struct {
	Enabled    bool `ini:"enabled"`
	EnforceMod bool `ini:"enforceMod"`
	MaxPlayers int  `ini:"maxPlayers"`
}

// MapSettings is the [Map] section
type MapSettings struct {
	Enabled             bool `ini:"enabled"`
	ShareMapProgression bool `ini:"shareMapProgression"`
}

// Settings is the read-only settings tree consumed by the core
type Settings struct {
	Server ServerSettings
	Map    MapSettings
}

// Defaults returns the settings used for keys absent from the file
func Defaults() Settings {
	return Settings{
		Server: ServerSettings{MaxPlayers: 10},
	}
}

// Validate checks value ranges
func (s Settings) Validate() error {
	if s.Server.MaxPlayers < 1 || s.Server.MaxPlayers > 127 {
		return errors.WrapInvalid(
			fmt.Errorf("server.maxPlayers %d out of range 1-127: %w", s.Server.MaxPlayers, errors.ErrInvalidConfig),
			"Settings", "Validate", "range check")
	}
	return nil
}

// ShareMap reports whether map progression sharing is fully enabled
func (s Settings) ShareMap() bool {
	return s.Map.Enabled && s.Map.ShareMapProgression
}

// SafeSettings provides thread-safe access to the current settings
type SafeSettings struct {
	mu       sync.RWMutex
	settings Settings
	loaded   bool
}

// NewSafeSettings creates an empty, not yet loaded, settings holder
func NewSafeSettings() *SafeSettings {
	return &SafeSettings{settings: Defaults()}
}

// Get returns a copy of the current settings
func (ss *SafeSettings) Get() Settings {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.settings
}

// Loaded reports whether Update has succeeded at least once
func (ss *SafeSettings) Loaded() bool {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.loaded
}

// Update replaces the settings after validation
func (ss *SafeSettings) Update(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.settings = s
	ss.loaded = true
	return nil
}
