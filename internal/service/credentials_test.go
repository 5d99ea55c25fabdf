package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegister_NormalizesEmailAndHidesPassword(t *testing.T) {
	f := newFixture(t)
	u, err := f.creds.Register(context.Background(), " Ada ", "  Ada@Example.COM ", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "Ada", u.Name)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.NotZero(t, u.ID)
}

func TestRegister_DuplicateEmailAnyCasing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.creds.Register(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)

	for _, email := range []string{"ada@example.com", "ADA@example.com", " Ada@Example.Com "} {
		_, err := f.creds.Register(ctx, "Other", email, "secret2")
		assert.ErrorIs(t, err, ErrDuplicateEmail, email)
	}

	_, err = f.store.Users.GetByID(ctx, 2)
	assert.Error(t, err, "no second record may exist")
}

func TestVerifyCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg, err := f.creds.Register(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)

	u, err := f.creds.VerifyCredentials(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, u.ID)

	for _, pw := range []string{"secret2", "Secret1", "secret", "secret11", "xecret1"} {
		_, err := f.creds.VerifyCredentials(ctx, "ada@example.com", pw)
		assert.ErrorIs(t, err, ErrInvalidCredentials, pw)
	}

	_, err = f.creds.VerifyCredentials(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "Ada", "ada@example.com")
	f.user(t, "Bob", "bob@example.com")

	name := "Ada Lovelace"
	u, err := f.creds.UpdateProfile(ctx, ada.ID, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.Equal(t, "ada@example.com", u.Email)

	taken := "BOB@example.com"
	_, err = f.creds.UpdateProfile(ctx, ada.ID, nil, &taken)
	assert.ErrorIs(t, err, ErrEmailInUse)

	same := "Ada@Example.com"
	u, err = f.creds.UpdateProfile(ctx, ada.ID, nil, &same)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)

	fresh := "ada@lovelace.dev"
	u, err = f.creds.UpdateProfile(ctx, ada.ID, nil, &fresh)
	require.NoError(t, err)
	assert.Equal(t, "ada@lovelace.dev", u.Email)

	_, err = f.creds.VerifyCredentials(ctx, "ada@lovelace.dev", "secret1")
	assert.NoError(t, err)
}

func TestUpdateProfile_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "Ada", "ada@example.com")

	_, err := f.creds.UpdateProfile(ctx, ada.ID, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyPatch)

	name := "Ghost"
	_, err = f.creds.UpdateProfile(ctx, 999, &name, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfile_InvalidatesGalleryCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.user(t, "Ada", "ada@example.com")
	rec := &recorder{}
	creds := NewCredentials(f.store.Users, bcrypt.MinCost).WithCache(rec)

	name := "Ada Lovelace"
	_, err := creds.UpdateProfile(ctx, ada.ID, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.invalidated)

	unchanged := "ADA@example.com"
	_, err = creds.UpdateProfile(ctx, ada.ID, nil, &unchanged)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.invalidated)

	_, err = creds.UpdateProfile(ctx, 999, &name, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, rec.invalidated)
}
