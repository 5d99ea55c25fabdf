package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagiseum/gallery/internal/model"
)

func names(imgs []model.Image) []string {
	out := make([]string, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, img.Name)
	}
	return out
}

func TestSearch_TagFilterIsIntersection(t *testing.T) {
	f := newFixture(t)
	ada := f.user(t, "Ada", "ada@example.com")
	f.image(t, ada, "A", "sun", "sky")
	ctx := context.Background()

	for _, filter := range [][]string{{"sun"}, {"sun", "sky"}, {"SKY"}} {
		got, err := f.search.List(ctx, "", filter)
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, names(got), filter)
	}

	got, err := f.search.List(ctx, "", []string{"sun", "ocean"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_TermConjoinedWithTags(t *testing.T) {
	f := newFixture(t)
	ada := f.user(t, "Ada", "ada@example.com")
	a := f.image(t, ada, "Sunset", "warm")
	f.image(t, ada, "Sunset", "cold")

	got, err := f.search.List(context.Background(), "Sunset", []string{"warm"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a, got[0].ID)
}

func TestSearch_TermMatchesAnyTextFieldCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ada := f.user(t, "Ada", "ada@example.com")
	ctx := context.Background()

	_, err := f.catalog.Create(ctx, ada, NewImage{Name: "One", UsedPrompt: "a RED fox", Data: []byte("x")})
	require.NoError(t, err)
	_, err = f.catalog.Create(ctx, ada, NewImage{Name: "Two", Description: "reddish sky", Data: []byte("x")})
	require.NoError(t, err)
	_, err = f.catalog.Create(ctx, ada, NewImage{Name: "Redwood", Data: []byte("x")})
	require.NoError(t, err)
	_, err = f.catalog.Create(ctx, ada, NewImage{Name: "Blue", Data: []byte("x")})
	require.NoError(t, err)

	got, err := f.search.List(ctx, "red", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"One", "Two", "Redwood"}, names(got))

	all, err := f.search.List(ctx, "  ", nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSearch_NewestFirstTiesByInsertOrder(t *testing.T) {
	f := newFixture(t)
	ada := f.user(t, "Ada", "ada@example.com")

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	f.store.SetClock(func() time.Time { return clock })

	f.image(t, ada, "old")
	clock = base.Add(time.Minute)
	f.image(t, ada, "tie-first")
	f.image(t, ada, "tie-second")
	clock = base.Add(-time.Minute)
	f.image(t, ada, "oldest")

	got, err := f.search.List(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tie-second", "tie-first", "old", "oldest"}, names(got))
}

func TestSearch_PopularTags(t *testing.T) {
	f := newFixture(t)
	ada := f.user(t, "Ada", "ada@example.com")
	bob := f.user(t, "Bob", "bob@example.com")
	f.image(t, ada, "1", "sun", "moon", "star")
	f.image(t, ada, "2", "sun", "moon")
	f.image(t, bob, "3", "sun", "moon")

	got, err := f.search.PopularTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.TagCount{
		{Name: "moon", Count: 3},
		{Name: "sun", Count: 3},
		{Name: "star", Count: 1},
	}, got)
}

func TestSearch_PopularTagsReflectsDeletes(t *testing.T) {
	f := newFixture(t)
	ada := f.user(t, "Ada", "ada@example.com")
	id := f.image(t, ada, "1", "sun")
	f.image(t, ada, "2", "sun")

	require.NoError(t, f.catalog.Delete(context.Background(), id, ada))
	got, err := f.search.PopularTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.TagCount{{Name: "sun", Count: 1}}, got)
}
