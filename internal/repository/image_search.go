package repository

import (
	"context"
	"strings"

	"github.com/imagiseum/gallery/internal/model"
	"github.com/imagiseum/gallery/internal/tags"
)

// Search lists images matching q, newest first. The free-text term is a
// case-insensitive substring match against name, used_prompt and
// description; the tag filter keeps images holding every requested tag.
func (r *ImageRepo) Search(ctx context.Context, q model.ImageQuery) ([]model.Image, error) {
	where := []string{}
	args := []any{}

	if term := strings.TrimSpace(q.Search); term != "" {
		like := "%" + escapeLike(strings.ToLower(term)) + "%"
		where = append(where, "(LOWER(i.name) LIKE ? OR LOWER(i.used_prompt) LIKE ? OR LOWER(i.description) LIKE ?)")
		args = append(args, like, like, like)
	}

	if filter := tags.Normalize(q.Tags); len(filter) > 0 {
		ph := strings.TrimSuffix(strings.Repeat("?,", len(filter)), ",")
		where = append(where, `i.id IN (SELECT t.image_id FROM image_tags t
			WHERE t.tag IN (`+ph+`)
			GROUP BY t.image_id
			HAVING COUNT(DISTINCT t.tag) = ?)`)
		for _, t := range filter {
			args = append(args, t)
		}
		args = append(args, len(filter))
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	return r.queryImages(ctx, imageSelect+" WHERE "+cond+newestFirst, args...)
}

// PopularTags counts the images carrying each distinct tag across the whole
// catalog. (image_id, tag) is the primary key of image_tags, so COUNT(*)
// is a count of images.
func (r *ImageRepo) PopularTags(ctx context.Context) ([]model.TagCount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tag, COUNT(*) AS cnt
		FROM image_tags
		GROUP BY tag
		ORDER BY cnt DESC, tag ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TagCount{}
	for rows.Next() {
		var tc model.TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
