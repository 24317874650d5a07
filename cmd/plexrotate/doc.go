// Package main hosts the plexrotate CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once per invocation (flags over
// environment over .env over config.toml), builds the logger and Plex client,
// and hands the work to internal/rotation. Commands only translate flags and
// render results; the pipeline itself lives in the internal packages.
package main
