package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"plexrotate/internal/services"
)

// Validate checks the values that are present. Required-but-missing fields are
// reported by the Require* helpers so commands that only need a subset (such as
// "token") can run with a partial configuration.
func (c *Config) Validate() error {
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validateRotation(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlex() error {
	switch c.Plex.Protocol {
	case "", "http", "https":
	default:
		return invalid("plex.protocol must be http or https, got %q", c.Plex.Protocol)
	}
	if c.Plex.Port < 0 || c.Plex.Port > 65535 {
		return invalid("plex.port must be between 1 and 65535, got %d", c.Plex.Port)
	}
	if c.Plex.LibrarySectionID < 0 {
		return invalid("plex.library_section_id must be positive")
	}
	if c.Plex.TimeoutSeconds <= 0 {
		return invalid("plex.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRotation() error {
	switch c.Rotation.Action {
	case ActionCopy, ActionSymlink:
	default:
		return invalid("rotation.action must be %q or %q, got %q", ActionCopy, ActionSymlink, c.Rotation.Action)
	}
	if c.Rotation.Count <= 0 {
		return invalid("rotation.count must be positive")
	}
	switch c.Rotation.Oversample {
	case OversampleFail, OversampleClamp:
	default:
		return invalid("rotation.oversample must be %q or %q, got %q", OversampleFail, OversampleClamp, c.Rotation.Oversample)
	}
	if strings.ContainsRune(c.Rotation.ManifestName, filepath.Separator) || c.Rotation.ManifestName == "." || c.Rotation.ManifestName == ".." {
		return invalid("rotation.manifest_name must be a plain file name, got %q", c.Rotation.ManifestName)
	}
	src, dst := c.Rotation.SourceDir, c.Rotation.DestinationDir
	if src != "" && dst != "" {
		if src == dst {
			return invalid("rotation.source_dir and rotation.destination_dir must differ")
		}
		if rel, err := filepath.Rel(dst, src); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return invalid("rotation.source_dir must not live inside rotation.destination_dir; every run empties the destination")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalid("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// RequireSignIn asserts the plex.tv credentials are set.
func (c *Config) RequireSignIn() error {
	return requireFields([]requiredField{
		{"plex.login", EnvPlexLogin, c.Plex.Login != ""},
		{"plex.password", EnvPlexPassword, c.Plex.Password != ""},
	})
}

// RequireServer asserts the credentials and the media server address are set.
func (c *Config) RequireServer() error {
	return requireFields([]requiredField{
		{"plex.login", EnvPlexLogin, c.Plex.Login != ""},
		{"plex.password", EnvPlexPassword, c.Plex.Password != ""},
		{"plex.protocol", EnvPlexProtocol, c.Plex.Protocol != ""},
		{"plex.address", EnvPlexAddress, c.Plex.Address != ""},
		{"plex.port", EnvPlexPort, c.Plex.Port != 0},
	})
}

// RequireRotation asserts every field a rotation run needs is set.
func (c *Config) RequireRotation() error {
	return requireFields([]requiredField{
		{"plex.login", EnvPlexLogin, c.Plex.Login != ""},
		{"plex.password", EnvPlexPassword, c.Plex.Password != ""},
		{"plex.protocol", EnvPlexProtocol, c.Plex.Protocol != ""},
		{"plex.address", EnvPlexAddress, c.Plex.Address != ""},
		{"plex.port", EnvPlexPort, c.Plex.Port != 0},
		{"plex.library_section_id", EnvLibrarySectionID, c.Plex.LibrarySectionID > 0},
		{"rotation.source_dir", EnvSourceFolder, c.Rotation.SourceDir != ""},
		{"rotation.destination_dir", EnvDestination, c.Rotation.DestinationDir != ""},
	})
}

type requiredField struct {
	key     string
	env     string
	present bool
}

func requireFields(fields []requiredField) error {
	var missing []string
	for _, field := range fields {
		if field.present {
			continue
		}
		missing = append(missing, fmt.Sprintf("%s (%s)", field.key, field.env))
	}
	if len(missing) == 0 {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/plexrotate/config.toml"
	}
	message := fmt.Sprintf("%s must be set in the environment, a .env file, or %s (create with 'plexrotate config init')", strings.Join(missing, ", "), defaultPath)
	return services.Wrap(services.ErrConfiguration, "config", "", message, nil)
}

func invalid(format string, args ...any) error {
	return services.Wrap(services.ErrConfiguration, "config", "", fmt.Sprintf(format, args...), nil)
}
