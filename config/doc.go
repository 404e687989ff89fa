// Package config loads the mod's settings file.
//
// The settings file is INI formatted (valheim_plus.cfg). The core reads only a
// handful of keys:
//
//	[Server]
//	enabled=true
//	enforceMod=true
//	maxPlayers=10
//
//	[Map]
//	enabled=true
//	shareMapProgression=true
//
// # Loading
//
// Loader reads the file from disk. When the file does not exist, the remote
// default configuration is downloaded and written in its place before parsing.
//
//	loader := config.NewLoader(path, config.WithDefaultsSource(fetcher, url))
//	settings, err := loader.Load(ctx)
//
// # Thread-Safe Access
//
// SafeSettings wraps the current settings with an RWMutex; Get returns a copy.
//
// # Watching
//
// Watcher observes the settings file with fsnotify and calls its handler once
// per debounced burst of writes, which is how hot reload is triggered.
package config
