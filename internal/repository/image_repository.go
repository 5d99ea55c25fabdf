package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/imagiseum/gallery/internal/model"
)

// ImageRepo encapsulates the queries over `images` and `image_tags`.
// Tags are kept in their own table so that tag filters and the popularity
// ranking run as plain indexed SQL.
type ImageRepo struct {
	db *sql.DB
}

// NewImageRepo constructs an ImageRepo with the provided DB handle.
func NewImageRepo(db *sql.DB) *ImageRepo {
	return &ImageRepo{db: db}
}

// imageSelect returns one row per image with the owner joined in and the
// tags folded into a comma separated list (tags never contain commas).
const imageSelect = `SELECT i.id, i.user_id, i.path, i.name, i.used_prompt, i.description,
		(SELECT GROUP_CONCAT(t.tag ORDER BY t.position SEPARATOR ',') FROM image_tags t WHERE t.image_id = i.id) AS tags,
		i.created_at, i.updated_at, u.name, u.email
	FROM images i
	JOIN users u ON u.id = i.user_id`

const newestFirst = " ORDER BY i.created_at DESC, i.id DESC"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(s rowScanner) (model.Image, error) {
	var (
		img   model.Image
		tags  sql.NullString
		owner model.UserSummary
	)
	if err := s.Scan(&img.ID, &img.UserID, &img.Path, &img.Name, &img.UsedPrompt, &img.Description,
		&tags, &img.CreatedAt, &img.UpdatedAt, &owner.Name, &owner.Email); err != nil {
		return model.Image{}, err
	}
	img.Tags = []string{}
	if tags.Valid && tags.String != "" {
		img.Tags = strings.Split(tags.String, ",")
	}
	owner.ID = img.UserID
	img.Owner = &owner
	return img, nil
}

func (r *ImageRepo) queryImages(ctx context.Context, query string, args ...any) ([]model.Image, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts the image and its tags in one transaction and fills in the
// generated ID and timestamps.
func (r *ImageRepo) Create(ctx context.Context, img *model.Image) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO images (user_id, path, name, used_prompt, description) VALUES (?,?,?,?,?)",
		img.UserID, img.Path, img.Name, img.UsedPrompt, img.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	img.ID = uint64(id)

	if err := insertTags(ctx, tx, img.ID, img.Tags); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM images WHERE id=?", img.ID).Scan(&img.CreatedAt, &img.UpdatedAt); err != nil {
		return err
	}
	if img.Tags == nil {
		img.Tags = []string{}
	}
	return tx.Commit()
}

func insertTags(ctx context.Context, tx *sql.Tx, imageID uint64, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	values := make([]string, 0, len(tags))
	args := make([]any, 0, 3*len(tags))
	for i, t := range tags {
		values = append(values, "(?,?,?)")
		args = append(args, imageID, t, i)
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO image_tags (image_id, tag, position) VALUES "+strings.Join(values, ","), args...)
	return err
}

// GetByID fetches one image with its owner summary.
func (r *ImageRepo) GetByID(ctx context.Context, id uint64) (model.Image, error) {
	img, err := scanImage(r.db.QueryRowContext(ctx, imageSelect+" WHERE i.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Image{}, ErrNotFound
	}
	return img, err
}

// ListByOwner returns the images of one user, newest first.
func (r *ImageRepo) ListByOwner(ctx context.Context, userID uint64) ([]model.Image, error) {
	return r.queryImages(ctx, imageSelect+" WHERE i.user_id = ?"+newestFirst, userID)
}

// Update writes only the fields set in patch. Each column is overwritten
// independently, so concurrent updates resolve last-write-wins per field.
// A tag patch replaces the whole tag set.
func (r *ImageRepo) Update(ctx context.Context, id uint64, patch model.ImagePatch) (model.Image, error) {
	sets := []string{"updated_at=CURRENT_TIMESTAMP(6)"}
	args := []any{}
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+"=?")
			args = append(args, *v)
		}
	}
	add("path", patch.Path)
	add("name", patch.Name)
	add("used_prompt", patch.UsedPrompt)
	add("description", patch.Description)
	args = append(args, id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Image{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// MySQL reports 0 affected rows for unchanged values, so existence is
	// settled by the GetByID below rather than RowsAffected.
	if _, err := tx.ExecContext(ctx, "UPDATE images SET "+strings.Join(sets, ", ")+" WHERE id=?", args...); err != nil {
		return model.Image{}, err
	}
	if patch.Tags != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM image_tags WHERE image_id=?", id); err != nil {
			return model.Image{}, err
		}
		if err := insertTags(ctx, tx, id, *patch.Tags); err != nil {
			return model.Image{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Image{}, err
	}
	return r.GetByID(ctx, id)
}

// PathInUse reports whether any image row still points at path.
func (r *ImageRepo) PathInUse(ctx context.Context, path string) (bool, error) {
	var inUse bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM images WHERE path=?)", path).Scan(&inUse)
	return inUse, err
}

// Delete removes the image row; image_tags rows go with it through the
// ON DELETE CASCADE foreign key.
func (r *ImageRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM images WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
