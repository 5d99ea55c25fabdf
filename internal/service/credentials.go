package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imagiseum/gallery/internal/model"
	"github.com/imagiseum/gallery/internal/repository"
	"github.com/imagiseum/gallery/internal/utils"
)

// Credentials owns user identities: registration, password checks and
// profile updates. It never issues tokens.
type Credentials struct {
	users UserStore
	cost  int
	cache CacheInvalidator
}

// NewCredentials returns a Credentials hashing passwords with the given
// bcrypt cost.
func NewCredentials(users UserStore, bcryptCost int) *Credentials {
	return &Credentials{users: users, cost: bcryptCost, cache: nopInvalidator{}}
}

// WithCache drops cached gallery responses after a profile change, since
// image responses embed the owner's name and email.
func (s *Credentials) WithCache(inv CacheInvalidator) *Credentials {
	if inv != nil {
		s.cache = inv
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user. The lookup before insert only produces the
// friendlier error early; the store's unique index decides.
func (s *Credentials) Register(ctx context.Context, name, email, password string) (model.User, error) {
	email = normalizeEmail(email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return model.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := utils.HashPassword(password, s.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{Name: strings.TrimSpace(name), Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// VerifyCredentials returns the user owning email if password matches.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *Credentials) VerifyCredentials(ctx context.Context, email, password string) (model.User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, fmt.Errorf("lookup email: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns the user with the given id.
func (s *Credentials) Get(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// UpdateProfile changes name and/or email. Email uniqueness is checked
// again against every other user.
func (s *Credentials) UpdateProfile(ctx context.Context, id uint64, name, email *string) (model.User, error) {
	if name == nil && email == nil {
		return model.User{}, ErrEmptyPatch
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	if name != nil {
		n := strings.TrimSpace(*name)
		name = &n
	}
	if email != nil {
		e := normalizeEmail(*email)
		if e == current.Email {
			email = nil
		} else {
			if other, err := s.users.GetByEmail(ctx, e); err == nil && other.ID != id {
				return model.User{}, ErrEmailInUse
			} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return model.User{}, fmt.Errorf("lookup email: %w", err)
			}
			email = &e
		}
	}
	if name == nil && email == nil {
		return current, nil
	}

	u, err := s.users.UpdateProfile(ctx, id, name, email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return model.User{}, ErrEmailInUse
		case errors.Is(err, repository.ErrNotFound):
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("update profile: %w", err)
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		slog.Default().Warn("invalidate gallery cache", "user_id", id, "error", err)
	}
	return u, nil
}
