package rotation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"plexrotate/internal/config"
	"plexrotate/internal/fileutil"
	"plexrotate/internal/logging"
	"plexrotate/internal/services"
)

// Request describes one materialization pass.
type Request struct {
	SourceDir      string
	DestinationDir string
	Action         string
	ManifestName   string
	Names          []string
}

// Item is one folder placed in the destination.
type Item struct {
	Name        string
	Source      string
	Destination string
	Bytes       int64
}

// Outcome summarizes a materialization pass.
type Outcome struct {
	Items        []Item
	ManifestPath string
	BytesCopied  int64
}

// Materializer copies or links sampled folders into the destination.
type Materializer struct {
	logger      *slog.Logger
	out         io.Writer
	interactive bool
}

// NewMaterializer builds a Materializer. Progress bars are drawn on out only
// when interactive is set.
func NewMaterializer(logger *slog.Logger, out io.Writer, interactive bool) *Materializer {
	if out == nil {
		out = io.Discard
	}
	return &Materializer{
		logger:      logging.NewComponentLogger(logger, "materializer"),
		out:         out,
		interactive: interactive,
	}
}

// Materialize places every requested name into the destination. The first
// failure aborts the pass; items already placed stay where they are.
func (m *Materializer) Materialize(ctx context.Context, req Request) (Outcome, error) {
	switch req.Action {
	case config.ActionCopy:
		return m.copyAll(ctx, req)
	case config.ActionSymlink:
		return m.linkAll(ctx, req)
	default:
		return Outcome{}, services.Wrap(services.ErrConfiguration, "materialize", "", fmt.Sprintf("unsupported action %q", req.Action), nil)
	}
}

func (m *Materializer) copyAll(ctx context.Context, req Request) (Outcome, error) {
	logger := logging.WithContext(ctx, m.logger)

	var total int64
	for _, name := range req.Names {
		size, err := fileutil.TreeSize(filepath.Join(req.SourceDir, name))
		if err != nil {
			return Outcome{}, services.Wrap(services.ErrFilesystem, "materialize", "measure", name, err)
		}
		total += size
	}
	logger.Info("copy started",
		logging.Int("folders", len(req.Names)),
		logging.String("total", humanize.Bytes(uint64(total))),
	)
	bar := m.newBar(len(req.Names), "copying")
	defer bar.Finish()

	var outcome Outcome
	for _, name := range req.Names {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		item := Item{
			Name:        name,
			Source:      filepath.Join(req.SourceDir, name),
			Destination: filepath.Join(req.DestinationDir, name),
		}
		bar.Describe(name)
		n, err := fileutil.CopyTree(item.Source, item.Destination, nil)
		outcome.BytesCopied += n
		if err != nil {
			return outcome, services.Wrap(services.ErrFilesystem, "materialize", "copy", name, err)
		}
		item.Bytes = n
		outcome.Items = append(outcome.Items, item)
		_ = bar.Add(1)
		logger.Info("folder copied",
			logging.String("name", name),
			logging.String("size", humanize.Bytes(uint64(n))),
		)
	}
	logger.Info("copy finished",
		logging.Int("folders", len(outcome.Items)),
		logging.String("total", humanize.Bytes(uint64(outcome.BytesCopied))),
	)
	return outcome, nil
}

func (m *Materializer) linkAll(ctx context.Context, req Request) (Outcome, error) {
	logger := logging.WithContext(ctx, m.logger)

	bar := m.newBar(len(req.Names), "linking")
	defer bar.Finish()

	var outcome Outcome
	links := make([]string, 0, len(req.Names))
	for _, name := range req.Names {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		item := Item{
			Name:        name,
			Source:      filepath.Join(req.SourceDir, name),
			Destination: filepath.Join(req.DestinationDir, name),
		}
		if err := os.Symlink(item.Source, item.Destination); err != nil {
			return outcome, services.Wrap(services.ErrFilesystem, "materialize", "symlink", name, err)
		}
		links = append(links, item.Destination)
		outcome.Items = append(outcome.Items, item)
		_ = bar.Add(1)
		logger.Debug("folder linked", logging.String("name", name), logging.String("target", item.Source))
	}

	manifest := filepath.Join(req.DestinationDir, req.ManifestName)
	if err := os.WriteFile(manifest, []byte(strings.Join(links, "\n")), 0o644); err != nil {
		return outcome, services.Wrap(services.ErrFilesystem, "materialize", "write manifest", manifest, err)
	}
	outcome.ManifestPath = manifest
	logger.Info("links created", logging.Int("folders", len(links)), logging.String("manifest", manifest))
	return outcome, nil
}

// newBar advances one unit per folder.
func (m *Materializer) newBar(items int, description string) *progressbar.ProgressBar {
	if !m.interactive {
		return progressbar.DefaultSilent(int64(items), description)
	}
	return progressbar.NewOptions(items,
		progressbar.OptionSetWriter(m.out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
