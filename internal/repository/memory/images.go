package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/imagiseum/gallery/internal/model"
	"github.com/imagiseum/gallery/internal/repository"
	"github.com/imagiseum/gallery/internal/tags"
)

// Images is the in-memory image store.
type Images struct{ st *state }

func (s *Images) Create(_ context.Context, img *model.Image) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.users[img.UserID]; !ok {
		return repository.ErrNotFound
	}
	s.st.nextImage++
	now := s.st.now()
	img.ID = s.st.nextImage
	img.CreatedAt, img.UpdatedAt = now, now
	if img.Tags == nil {
		img.Tags = []string{}
	}
	img.Owner = nil
	s.st.images[img.ID] = cloneImage(*img)
	return nil
}

// withOwner must be called with the lock held.
func (s *Images) withOwner(img model.Image) model.Image {
	img = cloneImage(img)
	if u, ok := s.st.users[img.UserID]; ok {
		sum := u.Summary()
		img.Owner = &sum
	}
	return img
}

func (s *Images) GetByID(_ context.Context, id uint64) (model.Image, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	img, ok := s.st.images[id]
	if !ok {
		return model.Image{}, repository.ErrNotFound
	}
	return s.withOwner(img), nil
}

func (s *Images) Update(_ context.Context, id uint64, patch model.ImagePatch) (model.Image, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	img, ok := s.st.images[id]
	if !ok {
		return model.Image{}, repository.ErrNotFound
	}
	patch.Apply(&img)
	img.UpdatedAt = s.st.now()
	s.st.images[id] = img
	return s.withOwner(img), nil
}

func (s *Images) Delete(_ context.Context, id uint64) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.images[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.st.images, id)
	return nil
}

func (s *Images) PathInUse(_ context.Context, path string) (bool, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	for _, img := range s.st.images {
		if img.Path == path {
			return true, nil
		}
	}
	return false, nil
}

func (s *Images) ListByOwner(_ context.Context, userID uint64) ([]model.Image, error) {
	return s.filter(func(img model.Image) bool { return img.UserID == userID }), nil
}

func (s *Images) Search(_ context.Context, q model.ImageQuery) ([]model.Image, error) {
	term := strings.ToLower(strings.TrimSpace(q.Search))
	filter := tags.Normalize(q.Tags)
	return s.filter(func(img model.Image) bool {
		if term != "" &&
			!strings.Contains(strings.ToLower(img.Name), term) &&
			!strings.Contains(strings.ToLower(img.UsedPrompt), term) &&
			!strings.Contains(strings.ToLower(img.Description), term) {
			return false
		}
		return tags.ContainsAll(img.Tags, filter)
	}), nil
}

func (s *Images) PopularTags(_ context.Context) ([]model.TagCount, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	sets := make([][]string, 0, len(s.st.images))
	for _, img := range s.st.images {
		sets = append(sets, img.Tags)
	}
	return tags.Tally(sets), nil
}

// filter returns matching images ordered newest first, ties broken by the
// later insert first.
func (s *Images) filter(keep func(model.Image) bool) []model.Image {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	out := []model.Image{}
	for _, img := range s.st.images {
		if keep(img) {
			out = append(out, s.withOwner(img))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
