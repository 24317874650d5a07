package rotation

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"plexrotate/internal/config"
	"plexrotate/internal/logging"
	"plexrotate/internal/services"
)

// Sampler picks source folders uniformly at random without replacement.
type Sampler struct {
	logger *slog.Logger
	rng    *rand.Rand
	policy string
}

// NewSampler builds a Sampler. A zero seed draws from a random source; any
// other value makes picks reproducible for the same candidate list.
func NewSampler(logger *slog.Logger, seed int64, policy string) *Sampler {
	var src rand.Source
	if seed == 0 {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	} else {
		src = rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)
	}
	if policy == "" {
		policy = config.OversampleFail
	}
	return &Sampler{
		logger: logging.NewComponentLogger(logger, "sampler"),
		rng:    rand.New(src),
		policy: policy,
	}
}

// Candidates lists the immediate subdirectories of source in collation order.
// Symlinks that resolve to directories count; hidden entries, exclude
// (normally the destination) and any reserved name do not. Reserved names are
// files the rotation writes into the destination itself.
func (s *Sampler) Candidates(source, exclude string, reserved ...string) ([]string, error) {
	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "sample", "list source", source, err)
	}
	exclude = filepath.Clean(exclude)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || slices.Contains(reserved, name) {
			continue
		}
		path := filepath.Join(source, name)
		if exclude != "." && path == exclude {
			continue
		}
		switch {
		case entry.IsDir():
		case entry.Type()&os.ModeSymlink != 0:
			info, err := os.Stat(path)
			if err != nil || !info.IsDir() {
				continue
			}
		default:
			continue
		}
		names = append(names, name)
	}
	collate.New(language.Und).SortStrings(names)
	return names, nil
}

// Size resolves how many folders a run draws when available candidates exist
// and requested were asked for.
func (s *Sampler) Size(available, requested int) (int, error) {
	if requested <= 0 {
		return 0, services.Wrap(services.ErrValidation, "sample", "", fmt.Sprintf("count must be positive, got %d", requested), nil)
	}
	if available == 0 {
		return 0, services.Wrap(services.ErrValidation, "sample", "", "source folder has no subdirectories", ErrInsufficientCandidates)
	}
	if requested <= available {
		return requested, nil
	}
	if s.policy == config.OversampleClamp {
		logging.WarnWithContext(s.logger, "fewer source folders than requested",
			"sample_clamped",
			logging.Int("requested", requested),
			logging.Int("available", available),
			logging.String(logging.FieldImpact, "every source folder is rotated in"),
		)
		return available, nil
	}
	message := fmt.Sprintf("requested %d but the source holds %d", requested, available)
	return 0, services.Wrap(services.ErrValidation, "sample", "", message, ErrInsufficientCandidates)
}

// Sample draws count distinct names from candidates, subject to the
// oversample policy. candidates is not modified.
func (s *Sampler) Sample(candidates []string, count int) ([]string, error) {
	size, err := s.Size(len(candidates), count)
	if err != nil {
		return nil, err
	}
	picks := slices.Clone(candidates)
	for i := range size {
		j := i + s.rng.IntN(len(picks)-i)
		picks[i], picks[j] = picks[j], picks[i]
	}
	return picks[:size], nil
}
