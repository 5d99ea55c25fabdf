package memory

import (
	"context"
	"strings"

	"github.com/imagiseum/gallery/internal/model"
	"github.com/imagiseum/gallery/internal/repository"
)

// Users is the in-memory user store.
type Users struct{ st *state }

func (u *Users) Create(_ context.Context, user *model.User) error {
	u.st.mu.Lock()
	defer u.st.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if _, taken := u.st.emails[user.Email]; taken {
		return repository.ErrEmailExists
	}
	u.st.nextUser++
	now := u.st.now()
	user.ID = u.st.nextUser
	user.CreatedAt, user.UpdatedAt = now, now
	u.st.users[user.ID] = *user
	u.st.emails[user.Email] = user.ID
	return nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	u.st.mu.RLock()
	defer u.st.mu.RUnlock()

	id, ok := u.st.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u.st.users[id], nil
}

func (u *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	u.st.mu.RLock()
	defer u.st.mu.RUnlock()

	user, ok := u.st.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (u *Users) UpdateProfile(_ context.Context, id uint64, name, email *string) (model.User, error) {
	u.st.mu.Lock()
	defer u.st.mu.Unlock()

	user, ok := u.st.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	if email != nil {
		e := strings.ToLower(strings.TrimSpace(*email))
		if owner, taken := u.st.emails[e]; taken && owner != id {
			return model.User{}, repository.ErrEmailExists
		}
		delete(u.st.emails, user.Email)
		user.Email = e
		u.st.emails[e] = id
	}
	if name != nil {
		user.Name = *name
	}
	user.UpdatedAt = u.st.now()
	u.st.users[id] = user
	return user, nil
}
