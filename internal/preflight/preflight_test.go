package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"plexrotate/internal/config"
	"plexrotate/internal/services"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir, AccessReadWrite)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"), AccessRead)
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f, AccessRead)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDestination_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "rotation")
	result := CheckDestination("dest", path)
	if !result.Passed {
		t.Fatalf("expected pass when an ancestor is writable, got: %s", result.Detail)
	}
}

func TestCheckDestination_Unconfigured(t *testing.T) {
	if CheckDestination("dest", "").Passed {
		t.Fatal("expected failure for empty path")
	}
}

func TestCheckServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identity" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := CheckServer(context.Background(), srv.URL, time.Second); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckServer(context.Background(), "", time.Second); result.Passed {
		t.Fatal("expected failure for missing address")
	}
}

func TestCheckServer_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	if result := CheckServer(context.Background(), url, time.Second); result.Passed {
		t.Fatal("expected failure for closed server")
	}
}

func TestDirectories_NilConfig(t *testing.T) {
	if results := Directories(nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestDirectoriesAndErr(t *testing.T) {
	cfg := config.Default()
	cfg.Rotation.SourceDir = t.TempDir()
	cfg.Rotation.DestinationDir = filepath.Join(t.TempDir(), "rotation")

	results := Directories(&cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if err := Err(results); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	cfg.Rotation.SourceDir = filepath.Join(t.TempDir(), "missing")
	err := Err(Directories(&cfg))
	if !errors.Is(err, services.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
}

func TestRunAll_SkipsServerWithoutAddress(t *testing.T) {
	cfg := config.Default()
	cfg.Rotation.SourceDir = t.TempDir()
	cfg.Rotation.DestinationDir = t.TempDir()

	results := RunAll(context.Background(), &cfg)
	if len(results) != 2 {
		t.Fatalf("expected directory checks only, got %d", len(results))
	}
}
