// Package patches holds the shipped override catalog.
//
// Every override is listed explicitly in Register. Adding an override means
// adding a declaration here; nothing is discovered at runtime.
package patches

import (
	"errors"
	"fmt"

	"github.com/VplusR/VplusReforged/config"
	pkgerrors "github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/host"
	"github.com/VplusR/VplusReforged/override"
)

// SteamSubsystem is the module name the Steam-only overrides depend on.
const SteamSubsystem = "assembly_steamworks"

// OpLobbyMaxPlayers is the lobby body instruction that loads the player cap.
const OpLobbyMaxPlayers = "ldc.max_players"

// Targets of the shipped overrides.
var (
	VersionStringTarget   = host.Target{Type: "Version", Method: "GetVersionString"}
	SteamMaxPlayersTarget = host.Target{
		Type: "SteamGameServer", Method: "SetMaxPlayerCount", Params: []string{"int"},
	}
	LobbyTarget = host.Target{
		Type: "ZPlayFabMatchmaking", Method: "CreateLobby", Params: []string{"bool"},
	}
)

// SettingsFunc returns the current settings. It is called on every hook
// invocation so overrides see reloaded values.
type SettingsFunc func() config.Settings

// Register adds the shipped overrides to the registry. version is appended to
// the host's version string.
func Register(registry *override.Registry, settings SettingsFunc, version string) error {
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"Patches", "Register", "registry validation")
	}
	if settings == nil {
		return pkgerrors.WrapFatal(
			errors.New("settings source cannot be nil"),
			"Patches", "Register", "settings validation")
	}

	if err := registry.Register(override.Declaration{
		ID:      "version-string",
		Target:  VersionStringTarget,
		Kind:    override.KindPostfix,
		Postfix: versionSuffix(version),
	}); err != nil {
		return pkgerrors.WrapInvalid(err, "Patches", "Register", "version string override registration")
	}

	if err := registry.Register(override.Declaration{
		ID:        "steam-max-players",
		Target:    SteamMaxPlayersTarget,
		Kind:      override.KindPrefix,
		Subsystem: SteamSubsystem,
		Prefix:    steamMaxPlayers(settings),
	}); err != nil {
		return pkgerrors.WrapInvalid(err, "Patches", "Register", "steam max players override registration")
	}

	// Bound after the declarative pass; failure here is fatal.
	if err := registry.RegisterManual(override.Declaration{
		ID:         "playfab-lobby-max-players",
		Target:     LobbyTarget,
		Kind:       override.KindTranspiler,
		Transpiler: lobbyMaxPlayers(settings),
	}); err != nil {
		return pkgerrors.WrapInvalid(err, "Patches", "Register", "lobby override registration")
	}

	return nil
}

func versionSuffix(version string) host.Postfix {
	return func(f *host.Frame) {
		if s, ok := f.Result.(string); ok {
			f.Result = fmt.Sprintf("%s@%s", s, version)
		}
	}
}

// steamMaxPlayers replaces the requested player count with the configured cap
// when the server section is enabled.
func steamMaxPlayers(settings SettingsFunc) host.Prefix {
	return func(f *host.Frame) bool {
		s := settings()
		if s.Server.Enabled && len(f.Args) > 0 {
			f.Args[0] = s.Server.MaxPlayers
		}
		return true
	}
}

// lobbyMaxPlayers rewrites the instruction loading the lobby cap so it reads
// the configured value at call time.
func lobbyMaxPlayers(settings SettingsFunc) host.Rewrite {
	return func(p host.Program) host.Program {
		idx := p.Index(OpLobbyMaxPlayers)
		if idx < 0 {
			return p
		}
		original := p[idx].Exec
		p[idx] = host.Instruction{
			Op: OpLobbyMaxPlayers,
			Exec: func(f *host.Frame) {
				s := settings()
				if !s.Server.Enabled {
					if original != nil {
						original(f)
					}
					return
				}
				f.Result = s.Server.MaxPlayers
			},
		}
		return p
	}
}
