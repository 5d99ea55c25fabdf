package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imagiseum/gallery/internal/model"
	"github.com/imagiseum/gallery/internal/repository"
)

// Identity is the resolved caller of a request.
type Identity struct {
	ID    uint64
	Name  string
	Email string
}

// Guard resolves bearer tokens into identities and checks ownership. It
// holds no state of its own.
type Guard struct {
	tokens *Tokens
	users  UserStore
}

// NewGuard returns a Guard over the token service and the user store.
func NewGuard(tokens *Tokens, users UserStore) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// Authenticate resolves the Authorization header into an Identity. Every
// token failure, and a token naming a user that no longer exists, wraps
// ErrUnauthenticated; only store failures come back as other errors.
func (g *Guard) Authenticate(ctx context.Context, authorization string) (Identity, error) {
	raw, ok := BearerToken(authorization)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	uid, err := g.tokens.Verify(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	u, err := g.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, fmt.Errorf("load identity: %w", err)
	}
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

// CheckOwnership grants access iff img belongs to id.
func CheckOwnership(img model.Image, id Identity) error {
	if id.ID == 0 || img.UserID != id.ID {
		return ErrForbidden
	}
	return nil
}
