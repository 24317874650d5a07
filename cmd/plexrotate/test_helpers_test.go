package main

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"plexrotate/internal/config"
	"plexrotate/internal/testsupport"
)

type fakePlex struct {
	server       *httptest.Server
	refreshes    atomic.Int32
	sectionsFail atomic.Bool
}

func newFakePlex(t *testing.T) *fakePlex {
	t.Helper()
	fp := &fakePlex{}
	fp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/users/sign_in.xml":
			user, pass, _ := r.BasicAuth()
			if user != "viewer" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<user username="viewer"><authentication-token>cli-token</authentication-token></user>`)
		case r.URL.Query().Get("X-Plex-Token") != "cli-token":
			w.WriteHeader(http.StatusUnauthorized)
		case r.URL.Path == "/library/sections":
			if fp.sectionsFail.Load() {
				w.Header().Set("Content-Type", "text/html")
				fmt.Fprint(w, "<html>maintenance</html>")
				return
			}
			w.Header().Set("Content-Type", "text/xml;charset=utf-8")
			fmt.Fprint(w, `<MediaContainer><Directory key="2" title="Rotation" type="movie"><Location path="/data/rotation"/></Directory></MediaContainer>`)
		case strings.HasSuffix(r.URL.Path, "/refresh"):
			fp.refreshes.Add(1)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(fp.server.Close)
	return fp
}

type cliTestEnv struct {
	cfg        *config.Config
	plex       *fakePlex
	configPath string
}

// setupCLITestEnv writes a config file pointing at a fake Plex server and a
// source folder holding five movies. Recognized environment keys are blanked
// so the host cannot leak into the run.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	for _, key := range []string{
		config.EnvPlexLogin, config.EnvPlexPassword, config.EnvPlexProtocol,
		config.EnvPlexAddress, config.EnvPlexPort, config.EnvLibrarySectionID,
		config.EnvSourceFolder, config.EnvDestination, config.EnvActionType,
		config.EnvWantedCount,
	} {
		t.Setenv(key, "")
	}

	fp := newFakePlex(t)
	cfg := testsupport.NewConfig(t, testsupport.WithSourceMovies(
		"Alien (1979)", "Brazil (1985)", "Heat (1995)", "Ran (1985)", "Tampopo (1985)",
	))
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", base)
	t.Chdir(base)

	serverURL, err := url.Parse(fp.server.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, port, err := net.SplitHostPort(serverURL.Host)
	if err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[plex]
login = "viewer"
password = "secret"
protocol = "http"
address = %q
port = %s
library_section_id = 2
sign_in_url = %q

[rotation]
source_dir = %q
destination_dir = %q

[paths]
state_dir = %q
env_file = %q

[logging]
level = "error"
`, host, port, fp.server.URL+"/users/sign_in.xml",
		cfg.Rotation.SourceDir, cfg.Rotation.DestinationDir, cfg.Paths.StateDir, cfg.Paths.EnvFile)
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{cfg: cfg, plex: fp, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
