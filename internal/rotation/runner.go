package rotation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"plexrotate/internal/config"
	"plexrotate/internal/logging"
	"plexrotate/internal/preflight"
	"plexrotate/internal/services"
	"plexrotate/internal/services/plex"
)

// MediaServer is the subset of the Plex client a rotation needs.
type MediaServer interface {
	SignIn(ctx context.Context) (plex.Session, error)
	Sections(ctx context.Context, token string) ([]plex.Section, error)
	Refresh(ctx context.Context, token string, sectionID int) error
}

// Result reports what a run did. It is returned alongside errors so callers
// can show how far a failed run got.
type Result struct {
	RunID        string
	State        State
	DryRun       bool
	Username     string
	Sections     []plex.Section
	SectionsErr  error
	Candidates   int
	Picked       []string
	Items        []Item
	ManifestPath string
	BytesCopied  int64
	Duration     time.Duration
}

// RunnerOption customises Runner construction.
type RunnerOption func(*Runner)

// WithReconciler replaces the destination reconciler.
func WithReconciler(r *Reconciler) RunnerOption {
	return func(run *Runner) {
		run.reconciler = r
	}
}

// WithProgress sends progress bars to out when interactive is set.
func WithProgress(out io.Writer, interactive bool) RunnerOption {
	return func(run *Runner) {
		run.progressOut = out
		run.interactive = interactive
	}
}

// WithDryRun stops the run after sampling, before anything is purged.
func WithDryRun(enabled bool) RunnerOption {
	return func(run *Runner) {
		run.dryRun = enabled
	}
}

// Runner drives one rotation from sign-in to the final refresh.
type Runner struct {
	cfg          *config.Config
	server       MediaServer
	logger       *slog.Logger
	reconciler   *Reconciler
	sampler      *Sampler
	materializer *Materializer
	progressOut  io.Writer
	interactive  bool
	dryRun       bool
}

// NewRunner wires the pipeline for cfg against server.
func NewRunner(cfg *config.Config, server MediaServer, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	run := &Runner{
		cfg:    cfg,
		server: server,
		logger: logging.NewComponentLogger(logger, "rotation"),
	}
	for _, opt := range opts {
		opt(run)
	}
	if run.reconciler == nil {
		run.reconciler = NewReconciler(logger)
	}
	run.sampler = NewSampler(logger, cfg.Rotation.Seed, cfg.Rotation.Oversample)
	run.materializer = NewMaterializer(logger, run.progressOut, run.interactive)
	return run
}

// Run executes the rotation. Any error is terminal and names the state it
// occurred in.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.NewString(), State: StateInit, DryRun: r.dryRun}
	ctx = services.WithRequestID(ctx, result.RunID)

	err := r.run(ctx, result)
	result.Duration = time.Since(start)

	logger := logging.WithContext(services.WithStage(ctx, result.State.String()), r.logger)
	if err != nil {
		logger.Error("rotation failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Duration("elapsed", result.Duration),
		)
		return result, fmt.Errorf("rotation failed in state %s: %w", result.State, err)
	}
	logger.Info("rotation finished",
		logging.Int("picked", len(result.Picked)),
		logging.Bool("dry_run", result.DryRun),
		logging.Duration("elapsed", result.Duration),
	)
	return result, nil
}

func (r *Runner) run(ctx context.Context, result *Result) error {
	cfg := r.cfg
	if err := cfg.RequireRotation(); err != nil {
		return err
	}
	if err := preflight.Err(preflight.Directories(cfg)); err != nil {
		return err
	}

	unlock, err := r.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	var reserved []string
	if cfg.Rotation.Action == config.ActionSymlink {
		reserved = append(reserved, cfg.Rotation.ManifestName)
	}
	candidates, err := r.sampler.Candidates(cfg.Rotation.SourceDir, cfg.Rotation.DestinationDir, reserved...)
	if err != nil {
		return err
	}
	result.Candidates = len(candidates)
	if _, err := r.sampler.Size(len(candidates), cfg.Rotation.Count); err != nil {
		return err
	}

	session, err := r.server.SignIn(ctx)
	if err != nil {
		return err
	}
	result.Username = session.Username
	r.advance(ctx, result, StateAuthenticated)

	if cfg.Rotation.ShowLibraries {
		sections, err := r.server.Sections(ctx, session.Token)
		if err != nil {
			result.SectionsErr = err
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failed to retrieve libraries information",
				"libraries_unavailable",
				logging.Error(err),
			)
		} else {
			result.Sections = sections
			r.advance(ctx, result, StateLibrariesListed)
		}
	}

	if r.dryRun {
		picked, err := r.sampler.Sample(candidates, cfg.Rotation.Count)
		if err != nil {
			return err
		}
		result.Picked = picked
		r.advance(ctx, result, StateSampled)
		return nil
	}

	if _, err := r.reconciler.Purge(ctx, cfg.Rotation.DestinationDir); err != nil {
		return err
	}
	r.advance(ctx, result, StateDestinationEmpty)

	if err := r.server.Refresh(ctx, session.Token, cfg.Plex.LibrarySectionID); err != nil {
		return err
	}
	r.advance(ctx, result, StatePreRefreshed)

	picked, err := r.sampler.Sample(candidates, cfg.Rotation.Count)
	if err != nil {
		return err
	}
	result.Picked = picked
	r.advance(ctx, result, StateSampled)

	outcome, err := r.materializer.Materialize(ctx, Request{
		SourceDir:      cfg.Rotation.SourceDir,
		DestinationDir: cfg.Rotation.DestinationDir,
		Action:         cfg.Rotation.Action,
		ManifestName:   cfg.Rotation.ManifestName,
		Names:          picked,
	})
	result.Items = outcome.Items
	result.BytesCopied = outcome.BytesCopied
	result.ManifestPath = outcome.ManifestPath
	if err != nil {
		return err
	}
	r.advance(ctx, result, StateMaterialized)

	if err := r.server.Refresh(ctx, session.Token, cfg.Plex.LibrarySectionID); err != nil {
		return err
	}
	r.advance(ctx, result, StatePostRefreshed)
	r.advance(ctx, result, StateDone)
	return nil
}

func (r *Runner) advance(ctx context.Context, result *Result, state State) {
	result.State = state
	logging.WithContext(services.WithStage(ctx, state.String()), r.logger).Info("state reached")
}

// acquireLock takes the single-run lock in the state directory. The lock
// lives outside the destination because every run empties it.
func (r *Runner) acquireLock() (func(), error) {
	if err := r.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "lock", "create state dir", r.cfg.Paths.StateDir, err)
	}
	lock := flock.New(r.cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "lock", "acquire", r.cfg.LockPath(), err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "lock", "acquire", r.cfg.LockPath(), ErrRotationInProgress)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release rotation lock",
				logging.Error(err),
				logging.String(logging.FieldEventType, "lock_release_failed"),
				logging.String(logging.FieldImpact, "next run may report a rotation in progress"),
			)
		}
	}, nil
}
