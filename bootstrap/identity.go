package bootstrap

// Mod identity. ModGUID and ModDisplayName are sent to peers during the
// handshake and must not change between releases.
const (
	ModGUID        = "org.bepinex.plugins.valheim_plus"
	ModDisplayName = "Valheim Plus"

	// NumericVersion is the version compared against peers and releases.
	NumericVersion = "0.9.9.16"
	VersionExtra   = "-dev"
	FullVersion    = NumericVersion + VersionExtra

	MinRequiredNumericVersion = NumericVersion

	// DataDirName is the private data directory under the data root.
	DataDirName = "vplus-data"
)

// Remote endpoints.
const (
	RepositoryURL    = "https://github.com/Grantapher/ValheimPlus/releases/latest"
	ReleaseAPIURL    = "https://api.github.com/repos/grantapher/valheimPlus/releases/latest"
	DefaultConfigURL = "https://raw.githubusercontent.com/grantapher/ValheimPlus/0.9.9.15-alpha6/valheim_plus.cfg"
)
