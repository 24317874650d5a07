package config

const (
	defaultPlexSignInURL      = "https://plex.tv/users/sign_in.xml"
	defaultPlexTimeoutSeconds = 30
	defaultAction             = ActionCopy
	defaultCount              = 3
	defaultOversample         = OversampleFail
	defaultManifestName       = "symlinks.txt"
	defaultStateDir           = "~/.local/state/plexrotate"
	defaultEnvFile            = ".env"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Plex: Plex{
			SignInURL:      defaultPlexSignInURL,
			TimeoutSeconds: defaultPlexTimeoutSeconds,
		},
		Rotation: Rotation{
			Action:       defaultAction,
			Count:        defaultCount,
			Oversample:   defaultOversample,
			ManifestName: defaultManifestName,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			EnvFile:  defaultEnvFile,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
