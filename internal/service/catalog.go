package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/imagiseum/gallery/internal/model"
	"github.com/imagiseum/gallery/internal/queue"
	"github.com/imagiseum/gallery/internal/repository"
	"github.com/imagiseum/gallery/internal/tags"
	"github.com/imagiseum/gallery/internal/utils"
)

// NewImage is the input of Catalog.Create. Field shapes are validated at
// the HTTP boundary before it is built.
type NewImage struct {
	Name        string
	Description string
	UsedPrompt  string
	Tags        []string
	Data        []byte
}

// Catalog owns image records: creation with the backing file, public
// reads, and owner-only updates and deletes.
type Catalog struct {
	images    ImageStore
	files     FileStore
	urlPrefix string
	events    EventPublisher
	cache     CacheInvalidator
	log       *slog.Logger
	now       func() time.Time
}

// CatalogOption customizes a Catalog.
type CatalogOption func(*Catalog)

// WithEvents publishes image lifecycle events through p.
func WithEvents(p EventPublisher) CatalogOption {
	return func(c *Catalog) {
		if p != nil {
			c.events = p
		}
	}
}

// WithCache invalidates cached gallery responses after every mutation.
func WithCache(inv CacheInvalidator) CatalogOption {
	return func(c *Catalog) {
		if inv != nil {
			c.cache = inv
		}
	}
}

// WithLogger sets the logger used for best-effort side effects.
func WithLogger(l *slog.Logger) CatalogOption {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCatalogClock replaces the time source used for file names and events.
func WithCatalogClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) { c.now = now }
}

// NewCatalog returns a Catalog storing binaries in files. urlPrefix is the
// public path under which stored files are served (e.g. /uploads).
func NewCatalog(images ImageStore, files FileStore, urlPrefix string, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		images:    images,
		files:     files,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		events:    nopPublisher{},
		cache:     nopInvalidator{},
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Create writes the binary first and inserts the record second, so a failed
// write never leaves a record behind. If the insert fails the file is
// removed again on a best-effort basis. A write failure is safe to retry.
func (c *Catalog) Create(ctx context.Context, owner Identity, in NewImage) (model.Image, error) {
	if owner.ID == 0 {
		return model.Image{}, ErrUnauthenticated
	}
	filename, err := utils.NewImageFilename(c.now())
	if err != nil {
		return model.Image{}, fmt.Errorf("generate filename: %w", err)
	}
	if err := c.files.EnsureDirectory(ctx, "."); err != nil {
		return model.Image{}, fmt.Errorf("ensure upload dir: %w", err)
	}
	if err := c.files.WriteFile(ctx, filename, in.Data); err != nil {
		return model.Image{}, fmt.Errorf("write image: %w", err)
	}

	img := model.Image{
		UserID:      owner.ID,
		Path:        c.urlPrefix + "/" + filename,
		Name:        strings.TrimSpace(in.Name),
		UsedPrompt:  strings.TrimSpace(in.UsedPrompt),
		Description: strings.TrimSpace(in.Description),
		Tags:        tags.Normalize(in.Tags),
	}
	if err := c.images.Create(ctx, &img); err != nil {
		if derr := c.files.DeleteFile(ctx, filename); derr != nil {
			c.log.Warn("remove orphaned image file", "file", filename, "error", derr)
		}
		return model.Image{}, fmt.Errorf("insert image: %w", err)
	}

	c.afterMutation(ctx, queue.ImageCreated, img)
	return img, nil
}

// Get returns one image with its owner summary. No authorization applies.
func (c *Catalog) Get(ctx context.Context, id uint64) (model.Image, error) {
	img, err := c.images.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Image{}, ErrNotFound
		}
		return model.Image{}, fmt.Errorf("load image: %w", err)
	}
	return img, nil
}

// ListByOwner returns the images of userID, newest first.
func (c *Catalog) ListByOwner(ctx context.Context, userID uint64) ([]model.Image, error) {
	imgs, err := c.images.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list owner images: %w", err)
	}
	return imgs, nil
}

// Update applies patch to the image if caller owns it. Omitted fields are
// left untouched; owner and id can never change. The path may be echoed back
// but not pointed at another file.
func (c *Catalog) Update(ctx context.Context, id uint64, caller Identity, patch model.ImagePatch) (model.Image, error) {
	if patch.Empty() {
		return model.Image{}, ErrEmptyPatch
	}
	img, err := c.Get(ctx, id)
	if err != nil {
		return model.Image{}, err
	}
	if err := CheckOwnership(img, caller); err != nil {
		return model.Image{}, err
	}

	if patch.Path != nil {
		if *patch.Path != img.Path {
			return model.Image{}, ErrPathImmutable
		}
		patch.Path = nil
	}
	patch.Name = trimmed(patch.Name)
	patch.UsedPrompt = trimmed(patch.UsedPrompt)
	patch.Description = trimmed(patch.Description)
	if patch.Tags != nil {
		norm := tags.Normalize(*patch.Tags)
		patch.Tags = &norm
	}

	updated, err := c.images.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Image{}, ErrNotFound
		}
		return model.Image{}, fmt.Errorf("update image: %w", err)
	}
	c.afterMutation(ctx, queue.ImageUpdated, updated)
	return updated, nil
}

// Delete removes the image record if caller owns it, then removes the
// backing file on a best-effort basis. A file still referenced by another
// record is kept.
func (c *Catalog) Delete(ctx context.Context, id uint64, caller Identity) error {
	img, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := CheckOwnership(img, caller); err != nil {
		return err
	}
	if err := c.images.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete image: %w", err)
	}

	if name, ok := c.storedName(img.Path); ok {
		shared, err := c.images.PathInUse(ctx, img.Path)
		switch {
		case err != nil:
			c.log.Warn("check image path references", "image_id", id, "path", img.Path, "error", err)
		case shared:
			c.log.Info("image file still referenced, kept", "image_id", id, "path", img.Path)
		default:
			if err := c.files.DeleteFile(ctx, name); err != nil {
				c.log.Warn("remove image file", "image_id", id, "file", name, "error", err)
			}
		}
	}
	c.afterMutation(ctx, queue.ImageDeleted, img)
	return nil
}

// storedName maps a public path back to the file name inside the store.
// Paths outside the upload prefix are not ours to delete.
func (c *Catalog) storedName(p string) (string, bool) {
	if !strings.HasPrefix(p, c.urlPrefix+"/") {
		return "", false
	}
	name := path.Base(path.Clean("/" + strings.TrimPrefix(p, c.urlPrefix)))
	if name == "/" || name == "." {
		return "", false
	}
	return name, true
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func (c *Catalog) afterMutation(ctx context.Context, kind string, img model.Image) {
	if err := c.cache.Invalidate(ctx); err != nil {
		c.log.Warn("invalidate gallery cache", "error", err)
	}
	ev := queue.ImageEvent{
		Kind:       kind,
		ImageID:    img.ID,
		UserID:     img.UserID,
		Name:       img.Name,
		Path:       img.Path,
		Tags:       img.Tags,
		OccurredAt: c.now().UTC().Format(time.RFC3339),
	}
	if err := c.events.PublishImageEvent(ctx, ev); err != nil {
		c.log.Warn("publish image event", "kind", kind, "image_id", img.ID, "error", err)
	}
}
