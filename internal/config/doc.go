// Package config loads, normalizes, and validates plexrotate configuration.
//
// Values come from four layers: built-in defaults, an optional TOML file
// (~/.config/plexrotate/config.toml or ./plexrotate.toml), an optional .env file,
// and the process environment. The environment keys match the .env layout of
// earlier shell deployments (PLEX_LOGIN, SOURCE_FOLDER, ...) so existing .env
// files keep working. Load only checks values that are present; commands call
// the Require* helpers to assert the fields they need before touching the
// network or the filesystem.
package config
