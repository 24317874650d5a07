package rotation_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"plexrotate/internal/config"
	"plexrotate/internal/rotation"
	"plexrotate/internal/services"
	"plexrotate/internal/services/plex"
	"plexrotate/internal/testsupport"
)

var movies = []string{"Alien (1979)", "Brazil (1985)", "Heat (1995)", "Ran (1985)", "Tampopo (1985)"}

func TestRunSymlinkEndToEnd(t *testing.T) {
	var signIns, refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/users/sign_in.xml":
			signIns.Add(1)
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<user username="viewer"><authentication-token>tok</authentication-token></user>`)
		case r.URL.Path == "/library/sections/4/refresh":
			if r.URL.Query().Get("X-Plex-Token") != "tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			refreshes.Add(1)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithAction(config.ActionSymlink),
		testsupport.WithCount(3),
		testsupport.WithSourceMovies(movies...),
	)
	cfg.Plex.LibrarySectionID = 4
	client := plex.NewClient(plex.Settings{
		SignInURL: srv.URL + "/users/sign_in.xml",
		ServerURL: srv.URL,
		Login:     cfg.Plex.Login,
		Password:  cfg.Plex.Password,
		Timeout:   5 * time.Second,
	})

	result, err := rotation.NewRunner(cfg, client, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.State != rotation.StateDone {
		t.Fatalf("expected DONE, got %s", result.State)
	}
	if signIns.Load() != 1 || refreshes.Load() != 2 {
		t.Fatalf("expected 1 sign-in and 2 refreshes, got %d and %d", signIns.Load(), refreshes.Load())
	}

	dest := cfg.Rotation.DestinationDir
	names := testsupport.ListNames(t, dest)
	if len(names) != 4 || !slices.Contains(names, "symlinks.txt") {
		t.Fatalf("expected 3 links plus manifest, got %v", names)
	}

	manifest, err := os.ReadFile(filepath.Join(dest, "symlinks.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasSuffix(string(manifest), "\n") {
		t.Fatal("manifest must not end with a newline")
	}
	lines := strings.Split(string(manifest), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 manifest lines, got %d", len(lines))
	}
	for _, line := range lines {
		target, err := os.Readlink(line)
		if err != nil {
			t.Fatalf("manifest entry %q is not a symlink: %v", line, err)
		}
		if target != filepath.Join(cfg.Rotation.SourceDir, filepath.Base(line)) {
			t.Fatalf("link %q points at %q", line, target)
		}
	}
}

func TestRunTwicePurgesPreviousRotation(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithCount(2),
		testsupport.WithSourceMovies(movies...),
	)
	server := &fakeServer{}

	first, err := rotation.NewRunner(cfg, server, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := rotation.NewRunner(cfg, server, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(first.Picked) != 2 {
		t.Fatalf("unexpected first pick %v", first.Picked)
	}

	names := testsupport.ListNames(t, cfg.Rotation.DestinationDir)
	got := slices.Sorted(slices.Values(names))
	want := slices.Sorted(slices.Values(second.Picked))
	if !slices.Equal(got, want) {
		t.Fatalf("destination holds %v, expected only the second pick %v", got, want)
	}
	if server.refreshCount() != 4 {
		t.Fatalf("expected 4 refreshes over two runs, got %d", server.refreshCount())
	}
}

func TestRunCopyModeIsIndependentOfSource(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithCount(3),
		testsupport.WithSourceMovies(movies...),
	)

	result, err := rotation.NewRunner(cfg, &fakeServer{}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.ManifestPath != "" {
		t.Fatalf("copy mode must not write a manifest, got %q", result.ManifestPath)
	}
	if _, err := os.Stat(filepath.Join(cfg.Rotation.DestinationDir, "symlinks.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("unexpected manifest in copy mode: %v", err)
	}
	if result.BytesCopied != 3*64 {
		t.Fatalf("expected %d bytes copied, got %d", 3*64, result.BytesCopied)
	}

	for _, name := range result.Picked {
		if err := os.RemoveAll(filepath.Join(cfg.Rotation.SourceDir, name)); err != nil {
			t.Fatal(err)
		}
		copied := filepath.Join(cfg.Rotation.DestinationDir, name, name+".mkv")
		info, err := os.Lstat(copied)
		if err != nil {
			t.Fatalf("copy of %s vanished with its source: %v", name, err)
		}
		if !info.Mode().IsRegular() {
			t.Fatalf("expected a regular file at %s, got %v", copied, info.Mode())
		}
	}
}

func TestRunAbortsBeforeRefreshWhenPurgeFails(t *testing.T) {
	cases := []struct {
		name   string
		remove rotation.RemoveFunc
	}{
		{"silent failure", func(string, bool) error { return nil }},
		{"permission denied", func(string, bool) error { return os.ErrPermission }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithSourceMovies(movies...))
			testsupport.MakeDirs(t, filepath.Join(cfg.Rotation.DestinationDir, "stale"))
			server := &fakeServer{}

			runner := rotation.NewRunner(cfg, server, nil,
				rotation.WithReconciler(rotation.NewReconcilerWithRemover(nil, tc.remove)))
			result, err := runner.Run(context.Background())
			if !errors.Is(err, rotation.ErrDestinationNotEmpty) {
				t.Fatalf("expected ErrDestinationNotEmpty, got %v", err)
			}
			if !errors.Is(err, services.ErrFilesystem) {
				t.Fatalf("expected filesystem marker, got %v", err)
			}
			if server.refreshCount() != 0 {
				t.Fatalf("expected no refresh, got %d", server.refreshCount())
			}
			if result.State != rotation.StateAuthenticated {
				t.Fatalf("expected failure in AUTHENTICATED, got %s", result.State)
			}
			if !strings.Contains(err.Error(), "AUTHENTICATED") {
				t.Fatalf("expected state in error %q", err.Error())
			}
		})
	}
}

func TestRunInsufficientCandidatesLeavesDestination(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithCount(3),
		testsupport.WithSourceMovies(movies[:2]...),
	)
	keep := filepath.Join(cfg.Rotation.DestinationDir, "keep")
	testsupport.MakeDirs(t, keep)
	server := &fakeServer{}

	_, err := rotation.NewRunner(cfg, server, nil).Run(context.Background())
	if !errors.Is(err, rotation.ErrInsufficientCandidates) {
		t.Fatalf("expected ErrInsufficientCandidates, got %v", err)
	}
	if server.signIns != 0 {
		t.Fatal("expected the run to stop before signing in")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("destination was touched: %v", err)
	}
}

func TestRunClampPolicyTakesEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithCount(3),
		testsupport.WithSourceMovies(movies[:2]...),
	)
	cfg.Rotation.Oversample = config.OversampleClamp

	result, err := rotation.NewRunner(cfg, &fakeServer{}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Picked) != 2 {
		t.Fatalf("expected both folders, got %v", result.Picked)
	}
}

func TestRunSymlinkNeverPicksManifestName(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithAction(config.ActionSymlink),
		testsupport.WithCount(3),
		testsupport.WithSourceMovies(movies[0], "symlinks.txt"),
	)
	cfg.Rotation.Oversample = config.OversampleClamp

	result, err := rotation.NewRunner(cfg, &fakeServer{}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Candidates != 1 || !slices.Equal(result.Picked, []string{movies[0]}) {
		t.Fatalf("expected only %q picked, got %v of %d", movies[0], result.Picked, result.Candidates)
	}
	info, err := os.Lstat(result.ManifestPath)
	if err != nil || !info.Mode().IsRegular() {
		t.Fatalf("expected a regular manifest file, got %v", err)
	}
}

func TestRunSectionsFailureOnlyWarns(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSourceMovies(movies...))
	cfg.Rotation.ShowLibraries = true
	server := &fakeServer{sectionsErr: plex.ErrUnexpectedContent}

	result, err := rotation.NewRunner(cfg, server, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !errors.Is(result.SectionsErr, plex.ErrUnexpectedContent) {
		t.Fatalf("expected sections error on result, got %v", result.SectionsErr)
	}
	if server.refreshCount() != 2 {
		t.Fatalf("expected 2 refreshes, got %d", server.refreshCount())
	}
}

func TestRunListsSections(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSourceMovies(movies...))
	cfg.Rotation.ShowLibraries = true
	server := &fakeServer{sections: []plex.Section{{Key: "1", Title: "Movies", Type: "movie"}}}

	result, err := rotation.NewRunner(cfg, server, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Sections) != 1 || result.Sections[0].Title != "Movies" {
		t.Fatalf("unexpected sections %v", result.Sections)
	}
}

func TestRunSignInFailureIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSourceMovies(movies...))
	keep := filepath.Join(cfg.Rotation.DestinationDir, "keep")
	testsupport.MakeDirs(t, keep)
	server := &fakeServer{signInErr: services.Wrap(services.ErrAuthentication, "plex", "sign in", "rejected", nil)}

	result, err := rotation.NewRunner(cfg, server, nil).Run(context.Background())
	if !errors.Is(err, services.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if result.State != rotation.StateInit {
		t.Fatalf("expected failure in INIT, got %s", result.State)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("destination was touched: %v", err)
	}
}

func TestRunPostRefreshFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSourceMovies(movies...))
	server := &fakeServer{refreshErrs: []error{nil, plex.ErrRefresh}}

	result, err := rotation.NewRunner(cfg, server, nil).Run(context.Background())
	if !errors.Is(err, plex.ErrRefresh) {
		t.Fatalf("expected ErrRefresh, got %v", err)
	}
	if result.State != rotation.StateMaterialized {
		t.Fatalf("expected failure after MATERIALIZED, got %s", result.State)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected materialized items to be reported, got %d", len(result.Items))
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSourceMovies(movies...))
	server := &fakeServer{}

	result, err := rotation.NewRunner(cfg, server, nil, rotation.WithDryRun(true)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !result.DryRun || len(result.Picked) != 3 {
		t.Fatalf("unexpected dry-run result %+v", result)
	}
	if server.refreshCount() != 0 {
		t.Fatalf("dry run must not refresh, got %d", server.refreshCount())
	}
	if _, err := os.Stat(cfg.Rotation.DestinationDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run must not create the destination: %v", err)
	}
}

func TestRunFailsWhenLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSourceMovies(movies...))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-acquire lock: %v %v", ok, err)
	}
	defer held.Unlock()

	server := &fakeServer{}
	_, err = rotation.NewRunner(cfg, server, nil).Run(context.Background())
	if !errors.Is(err, rotation.ErrRotationInProgress) {
		t.Fatalf("expected ErrRotationInProgress, got %v", err)
	}
	if server.signIns != 0 {
		t.Fatal("expected no sign-in while locked")
	}
}

func TestRunRequiresConfiguration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Plex.Login = ""

	_, err := rotation.NewRunner(cfg, &fakeServer{}, nil).Run(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "PLEX_LOGIN") {
		t.Fatalf("expected missing key in %q", err.Error())
	}
}
