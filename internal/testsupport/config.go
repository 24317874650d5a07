package testsupport

import (
	"path/filepath"
	"testing"

	"plexrotate/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The source folder is created empty; the destination is left for the
// rotation to create.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Plex.Login = "viewer"
	cfgVal.Plex.Password = "secret"
	cfgVal.Plex.Protocol = "http"
	cfgVal.Plex.Address = "127.0.0.1"
	cfgVal.Plex.Port = 32400
	cfgVal.Plex.LibrarySectionID = 1
	cfgVal.Rotation.SourceDir = filepath.Join(base, "source")
	cfgVal.Rotation.DestinationDir = filepath.Join(base, "rotation")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.EnvFile = filepath.Join(base, ".env")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	MakeDirs(t, cfgVal.Rotation.SourceDir)

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAction sets the rotation action on the test config.
func WithAction(action string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Rotation.Action = action
	}
}

// WithCount sets how many directories the test rotation picks.
func WithCount(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Rotation.Count = count
	}
}

// WithSeed pins the sampler seed for reproducible picks.
func WithSeed(seed int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Rotation.Seed = seed
	}
}

// WithSourceMovies creates one directory per name in the source folder, each
// holding a small movie file.
func WithSourceMovies(names ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, name := range names {
			WriteFile(b.t, filepath.Join(b.cfg.Rotation.SourceDir, name, name+".mkv"), 64)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
