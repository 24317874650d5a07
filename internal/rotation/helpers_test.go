package rotation_test

import (
	"context"
	"sync"

	"plexrotate/internal/services/plex"
)

type fakeServer struct {
	mu          sync.Mutex
	signInErr   error
	sectionsErr error
	refreshErrs []error
	sections    []plex.Section

	signIns      int
	refreshCalls []int
}

func (f *fakeServer) SignIn(context.Context) (plex.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signIns++
	if f.signInErr != nil {
		return plex.Session{}, f.signInErr
	}
	return plex.Session{Token: "tok", Username: "viewer"}, nil
}

func (f *fakeServer) Sections(context.Context, string) ([]plex.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sectionsErr != nil {
		return nil, f.sectionsErr
	}
	return f.sections, nil
}

func (f *fakeServer) Refresh(_ context.Context, _ string, sectionID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.refreshCalls)
	f.refreshCalls = append(f.refreshCalls, sectionID)
	if call < len(f.refreshErrs) {
		return f.refreshErrs[call]
	}
	return nil
}

func (f *fakeServer) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refreshCalls)
}
