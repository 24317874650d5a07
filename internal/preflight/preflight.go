package preflight

import (
	"context"
	"fmt"
	"strings"

	"plexrotate/internal/config"
	"plexrotate/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Directories checks the source and destination folders of a rotation.
func Directories(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Source folder", cfg.Rotation.SourceDir, AccessRead),
		CheckDestination("Destination folder", cfg.Rotation.DestinationDir),
	}
}

// RunAll executes the directory checks plus, when the server is fully
// configured, media server reachability.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := Directories(cfg)
	if serverURL := cfg.ServerURL(); serverURL != "" {
		results = append(results, CheckServer(ctx, serverURL, cfg.RequestTimeout()))
	}
	return results
}

// Err folds failed results into a single filesystem error, or nil when every
// check passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrFilesystem, "preflight", "", strings.Join(failed, "; "), nil)
}
