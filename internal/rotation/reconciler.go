package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"plexrotate/internal/logging"
	"plexrotate/internal/services"
)

// RemoveFunc deletes one destination entry. dir reports whether the entry is
// a real directory (symlinks to directories are not).
type RemoveFunc func(path string, dir bool) error

// Reconciler empties the destination folder before a rotation.
type Reconciler struct {
	logger *slog.Logger
	remove RemoveFunc
}

// NewReconciler constructs a Reconciler that removes entries from disk.
func NewReconciler(logger *slog.Logger) *Reconciler {
	return NewReconcilerWithRemover(logger, removeEntry)
}

// NewReconcilerWithRemover allows injecting the removal step (used in tests).
func NewReconcilerWithRemover(logger *slog.Logger, remove RemoveFunc) *Reconciler {
	if remove == nil {
		remove = removeEntry
	}
	return &Reconciler{logger: logging.NewComponentLogger(logger, "reconciler"), remove: remove}
}

func removeEntry(path string, dir bool) error {
	if dir {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}

// Purge creates dest when missing and deletes every immediate child. Links are
// removed without touching their targets. It returns the number of entries
// removed, and ErrDestinationNotEmpty if anything is left afterwards.
func (r *Reconciler) Purge(ctx context.Context, dest string) (int, error) {
	logger := logging.WithContext(ctx, r.logger)

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, services.Wrap(services.ErrFilesystem, "purge", "create destination", dest, err)
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		return 0, services.Wrap(services.ErrFilesystem, "purge", "list destination", dest, err)
	}

	var removed int
	var failures []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		path := filepath.Join(dest, entry.Name())
		if err := r.remove(path, entry.IsDir()); err != nil {
			logger.Warn("failed to remove destination entry",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "purge_entry_failed"),
				logging.String(logging.FieldImpact, "run aborts if the entry survives"),
			)
			failures = append(failures, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		removed++
	}

	remaining, err := os.ReadDir(dest)
	if err != nil {
		return removed, services.Wrap(services.ErrFilesystem, "purge", "verify destination", dest, err)
	}
	if len(remaining) > 0 {
		cause := ErrDestinationNotEmpty
		if joined := errors.Join(failures...); joined != nil {
			cause = fmt.Errorf("%w: %w", ErrDestinationNotEmpty, joined)
		}
		message := fmt.Sprintf("%s still holds %d entries (%s)", dest, len(remaining), sampleNames(remaining, 5))
		return removed, services.Wrap(services.ErrFilesystem, "purge", "verify destination", message, cause)
	}

	logger.Info("destination purged", logging.String("path", dest), logging.Int("removed", removed))
	return removed, nil
}

func sampleNames(entries []os.DirEntry, limit int) string {
	names := make([]string, 0, limit)
	for i, entry := range entries {
		if i == limit {
			names = append(names, "...")
			break
		}
		names = append(names, entry.Name())
	}
	return strings.Join(names, ", ")
}
