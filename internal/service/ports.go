// Package service implements the access-control and query core of the
// gallery: credentials, bearer tokens, the authorization guard, the image
// catalog and the search and tag engine. Stores and side-effect
// collaborators are consumed through the interfaces below.
package service

import (
	"context"

	"github.com/imagiseum/gallery/internal/model"
	"github.com/imagiseum/gallery/internal/queue"
)

// UserStore persists user identities. Implementations return
// repository.ErrNotFound and repository.ErrEmailExists.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateProfile(ctx context.Context, id uint64, name, email *string) (model.User, error)
}

// ImageStore persists image records and answers gallery queries.
type ImageStore interface {
	Create(ctx context.Context, img *model.Image) error
	GetByID(ctx context.Context, id uint64) (model.Image, error)
	Update(ctx context.Context, id uint64, patch model.ImagePatch) (model.Image, error)
	Delete(ctx context.Context, id uint64) error
	PathInUse(ctx context.Context, path string) (bool, error)
	ListByOwner(ctx context.Context, userID uint64) ([]model.Image, error)
	Search(ctx context.Context, q model.ImageQuery) ([]model.Image, error)
	PopularTags(ctx context.Context) ([]model.TagCount, error)
}

// FileStore is the storage collaborator holding image binaries.
type FileStore interface {
	EnsureDirectory(ctx context.Context, dir string) error
	WriteFile(ctx context.Context, name string, data []byte) error
	DeleteFile(ctx context.Context, name string) error
}

// EventPublisher announces committed image mutations.
type EventPublisher interface {
	PublishImageEvent(ctx context.Context, ev queue.ImageEvent) error
}

// CacheInvalidator drops cached gallery responses.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type nopPublisher struct{}

func (nopPublisher) PublishImageEvent(context.Context, queue.ImageEvent) error { return nil }

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context) error { return nil }
