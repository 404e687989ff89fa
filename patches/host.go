package patches

import (
	"github.com/VplusR/VplusReforged/errors"
	"github.com/VplusR/VplusReforged/host"
)

// Stock values of the built-in host functions.
const (
	StockVersion    = "0.217.46"
	StockMaxPlayers = 10
)

// DefineHost installs stock versions of the catalog's target functions into h.
// The runner and tests use it in place of a real game process. withSteam also
// marks the Steam subsystem as loaded.
func DefineHost(h *host.Host, withSteam bool) error {
	functions := []struct {
		target  host.Target
		program host.Program
	}{
		{VersionStringTarget, host.Program{
			{Op: "ldstr.version", Exec: func(f *host.Frame) { f.Result = StockVersion }},
		}},
		{SteamMaxPlayersTarget, host.Program{
			{Op: "call.set_max_players", Exec: func(f *host.Frame) {
				if len(f.Args) > 0 {
					f.Result = f.Args[0]
				}
			}},
		}},
		{LobbyTarget, host.Program{
			{Op: OpLobbyMaxPlayers, Exec: func(f *host.Frame) { f.Result = StockMaxPlayers }},
		}},
	}

	for _, fn := range functions {
		if _, err := h.Define(fn.target, fn.program); err != nil {
			return errors.Wrap(err, "Patches", "DefineHost", "define "+fn.target.Symbol())
		}
	}
	if withSteam {
		h.LoadModule(SteamSubsystem + ", Version=15.0.1.0")
	}
	return nil
}
