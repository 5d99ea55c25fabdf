package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/imagiseum/gallery/internal/model"
	"github.com/imagiseum/gallery/internal/tags"
)

// Search runs the gallery listing and the tag popularity ranking. It is
// read-only.
type Search struct {
	images ImageStore
}

// NewSearch returns a Search over images.
func NewSearch(images ImageStore) *Search {
	return &Search{images: images}
}

// List returns the images matching term and holding every tag of
// tagFilter, newest first. An empty term and an empty filter match all.
func (s *Search) List(ctx context.Context, term string, tagFilter []string) ([]model.Image, error) {
	q := model.ImageQuery{
		Search: strings.TrimSpace(term),
		Tags:   tags.Normalize(tagFilter),
	}
	imgs, err := s.images.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search images: %w", err)
	}
	return imgs, nil
}

// PopularTags ranks tags by the number of images carrying them, ties in
// ascending name order, across all images.
func (s *Search) PopularTags(ctx context.Context) ([]model.TagCount, error) {
	counts, err := s.images.PopularTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate tags: %w", err)
	}
	return counts, nil
}
