package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/imagiseum/gallery/internal/queue"
	"github.com/imagiseum/gallery/internal/repository/memory"
)

type fakeFiles struct {
	mu       sync.Mutex
	files    map[string][]byte
	writeErr error
	dirs     int
}

func newFakeFiles() *fakeFiles { return &fakeFiles{files: map[string][]byte{}} }

func (f *fakeFiles) EnsureDirectory(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs++
	return nil
}

func (f *fakeFiles) WriteFile(_ context.Context, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.files[name] = append([]byte(nil), data...)
	return nil
}

func (f *fakeFiles) DeleteFile(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
	return nil
}

func (f *fakeFiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

type recorder struct {
	mu          sync.Mutex
	events      []queue.ImageEvent
	invalidated int
}

func (r *recorder) PublishImageEvent(_ context.Context, ev queue.ImageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Invalidate(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated++
	return nil
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	store   *memory.Store
	creds   *Credentials
	catalog *Catalog
	search  *Search
	files   *fakeFiles
	rec     *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.NewStore()
	files := newFakeFiles()
	rec := &recorder{}
	return &fixture{
		store:   st,
		creds:   NewCredentials(st.Users, bcrypt.MinCost),
		catalog: NewCatalog(st.Images, files, "/uploads", WithEvents(rec), WithCache(rec)),
		search:  NewSearch(st.Images),
		files:   files,
		rec:     rec,
	}
}

func (f *fixture) user(t *testing.T, name, email string) Identity {
	t.Helper()
	u, err := f.creds.Register(context.Background(), name, email, "secret1")
	require.NoError(t, err)
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email}
}

func (f *fixture) image(t *testing.T, owner Identity, name string, tags ...string) uint64 {
	t.Helper()
	img, err := f.catalog.Create(context.Background(), owner, NewImage{Name: name, Tags: tags, Data: []byte("png")})
	require.NoError(t, err)
	return img.ID
}

var errBoom = errors.New("boom")
