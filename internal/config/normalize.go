package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/subosito/gotenv"
)

// Environment keys recognized on top of the TOML file.
const (
	EnvPlexLogin        = "PLEX_LOGIN"
	EnvPlexPassword     = "PLEX_PASSWORD"
	EnvPlexProtocol     = "PLEX_SERVER_PROTOCOL"
	EnvPlexAddress      = "PLEX_SERVER_ADDRESS"
	EnvPlexPort         = "PLEX_SERVER_PORT"
	EnvLibrarySectionID = "PLEX_LIBRARY_SECTION_ID"
	EnvSourceFolder     = "SOURCE_FOLDER"
	EnvDestination      = "DESTINATION_FOLDER"
	EnvActionType       = "ACTION_TYPE"
	EnvWantedCount      = "AMOUNT_OF_WANTED_MOVIES"
)

// applyEnvironment overlays the .env file and then the process environment.
// Empty values are treated as unset.
func (c *Config) applyEnvironment() error {
	dotenv, err := readDotEnv(c.Paths.EnvFile)
	if err != nil {
		return err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
		if value, ok := dotenv[key]; ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
		return "", false
	}

	textFields := []struct {
		key    string
		target *string
	}{
		{EnvPlexLogin, &c.Plex.Login},
		{EnvPlexPassword, &c.Plex.Password},
		{EnvPlexProtocol, &c.Plex.Protocol},
		{EnvPlexAddress, &c.Plex.Address},
		{EnvSourceFolder, &c.Rotation.SourceDir},
		{EnvDestination, &c.Rotation.DestinationDir},
		{EnvActionType, &c.Rotation.Action},
	}
	for _, entry := range textFields {
		if value, ok := lookup(entry.key); ok {
			*entry.target = value
		}
	}

	intFields := []struct {
		key    string
		target *int
	}{
		{EnvPlexPort, &c.Plex.Port},
		{EnvLibrarySectionID, &c.Plex.LibrarySectionID},
		{EnvWantedCount, &c.Rotation.Count},
	}
	for _, entry := range intFields {
		value, ok := lookup(entry.key)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: expected an integer, got %q", entry.key, value)
		}
		*entry.target = parsed
	}
	return nil
}

func readDotEnv(path string) (gotenv.Env, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("paths.env_file: %w", err)
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat env file: %w", err)
	}
	env, err := gotenv.Read(expanded)
	if err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", expanded, err)
	}
	return env, nil
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlex()
	c.normalizeRotation()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Rotation.SourceDir, err = expandPath(strings.TrimSpace(c.Rotation.SourceDir)); err != nil {
		return fmt.Errorf("rotation.source_dir: %w", err)
	}
	if c.Rotation.DestinationDir, err = expandPath(strings.TrimSpace(c.Rotation.DestinationDir)); err != nil {
		return fmt.Errorf("rotation.destination_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlex() {
	c.Plex.Login = strings.TrimSpace(c.Plex.Login)
	c.Plex.Protocol = strings.ToLower(strings.TrimSpace(c.Plex.Protocol))
	address := strings.TrimSpace(c.Plex.Address)
	// Accept "http://host" style addresses; the scheme comes from protocol.
	if idx := strings.Index(address, "://"); idx >= 0 {
		address = address[idx+3:]
	}
	c.Plex.Address = strings.TrimRight(address, "/")
	c.Plex.SignInURL = strings.TrimSpace(c.Plex.SignInURL)
	if c.Plex.SignInURL == "" {
		c.Plex.SignInURL = defaultPlexSignInURL
	}
	c.Plex.ClientIdentifier = strings.TrimSpace(c.Plex.ClientIdentifier)
	if c.Plex.TimeoutSeconds <= 0 {
		c.Plex.TimeoutSeconds = defaultPlexTimeoutSeconds
	}
}

func (c *Config) normalizeRotation() {
	c.Rotation.Action = strings.ToLower(strings.TrimSpace(c.Rotation.Action))
	if c.Rotation.Action == "" {
		c.Rotation.Action = defaultAction
	}
	c.Rotation.Oversample = strings.ToLower(strings.TrimSpace(c.Rotation.Oversample))
	if c.Rotation.Oversample == "" {
		c.Rotation.Oversample = defaultOversample
	}
	c.Rotation.ManifestName = strings.TrimSpace(c.Rotation.ManifestName)
	if c.Rotation.ManifestName == "" {
		c.Rotation.ManifestName = defaultManifestName
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
