package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Rotation actions.
const (
	ActionCopy    = "copy"
	ActionSymlink = "symlink"
)

// Oversample policies applied when fewer source directories exist than requested.
const (
	OversampleFail  = "fail"
	OversampleClamp = "clamp"
)

// Plex contains plex.tv credentials and the media server address.
type Plex struct {
	Login            string `toml:"login"`
	Password         string `toml:"password"`
	Protocol         string `toml:"protocol"`
	Address          string `toml:"address"`
	Port             int    `toml:"port"`
	LibrarySectionID int    `toml:"library_section_id"`
	SignInURL        string `toml:"sign_in_url"`
	ClientIdentifier string `toml:"client_identifier"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Rotation contains the source pool, the curated destination, and how many
// directories to rotate in per run.
type Rotation struct {
	SourceDir      string `toml:"source_dir"`
	DestinationDir string `toml:"destination_dir"`
	Action         string `toml:"action"`
	Count          int    `toml:"count"`
	Oversample     string `toml:"oversample"`
	ManifestName   string `toml:"manifest_name"`
	Seed           int64  `toml:"seed"`
	ShowLibraries  bool   `toml:"show_libraries"`
}

// Paths contains local state locations.
type Paths struct {
	StateDir string `toml:"state_dir"`
	EnvFile  string `toml:"env_file"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	ToFile bool   `toml:"to_file"`
}

// Config encapsulates all configuration values for plexrotate.
//
// Configuration sections by subsystem:
//   - Plex: sign-in credentials, server address, and target library section
//   - Rotation: source pool, destination, action, and sample size
//   - Paths: lock/log state directory and .env location
//   - Logging: log format and level
type Config struct {
	Plex     Plex     `toml:"plex"`
	Rotation Rotation `toml:"rotation"`
	Paths    Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/plexrotate/config.toml")
}

// Load locates and parses a configuration file, layers the .env file and the
// process environment on top, then normalizes and validates what is present.
// A missing file is not an error; defaults plus environment are used.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnvironment(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("plexrotate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory used for the run lock and logs.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// ServerURL returns the media server base URL without a trailing slash, or ""
// until protocol, address and port are all set.
func (c *Config) ServerURL() string {
	host := strings.TrimSpace(c.Plex.Address)
	if host == "" || c.Plex.Protocol == "" || c.Plex.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s://%s", c.Plex.Protocol, net.JoinHostPort(host, strconv.Itoa(c.Plex.Port)))
}

// RequestTimeout returns the per-request HTTP timeout for Plex calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Plex.TimeoutSeconds) * time.Second
}

// LockPath returns the file used to keep rotations from overlapping.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "rotate.lock")
}

// LogPath returns the log file written when logging.to_file is enabled.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.StateDir, "plexrotate.log")
}

// ManifestPath returns where symlink mode records the links it created.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Rotation.DestinationDir, c.Rotation.ManifestName)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
