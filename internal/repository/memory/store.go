// Package memory provides in-process implementations of the user and image
// stores. They apply the same semantics as the MySQL repositories (unique
// email, newest-first ordering, superset tag filters, popularity fold) and
// back the memory store driver and the service and handler tests.
package memory

import (
	"sync"
	"time"

	"github.com/imagiseum/gallery/internal/model"
)

type state struct {
	mu        sync.RWMutex
	users     map[uint64]model.User
	emails    map[string]uint64
	images    map[uint64]model.Image
	nextUser  uint64
	nextImage uint64
	now       func() time.Time
}

// Store bundles a user and an image store over shared state, so image
// lookups can join in owner summaries.
type Store struct {
	Users  *Users
	Images *Images
	st     *state
}

// NewStore returns an empty store using the wall clock for timestamps.
func NewStore() *Store {
	st := &state{
		users:  map[uint64]model.User{},
		emails: map[string]uint64{},
		images: map[uint64]model.Image{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	return &Store{Users: &Users{st: st}, Images: &Images{st: st}, st: st}
}

// SetClock replaces the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.st.mu.Lock()
	s.st.now = now
	s.st.mu.Unlock()
}

func cloneImage(img model.Image) model.Image {
	img.Tags = append([]string{}, img.Tags...)
	if img.Owner != nil {
		o := *img.Owner
		img.Owner = &o
	}
	return img
}
