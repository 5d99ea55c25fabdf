package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagiseum/gallery/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var userCols = []string{"id", "name", "email", "password_hash", "created_at", "updated_at"}

func TestUserRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (name, email, password_hash) VALUES (?,?,?)")).
		WithArgs("Ada", "ada@example.com", "hash").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at, updated_at FROM users WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	u := &model.User{Name: "Ada", Email: "  Ada@Example.com ", PasswordHash: "hash"}
	require.NoError(t, NewUserRepo(db).Create(context.Background(), u))
	assert.Equal(t, uint64(7), u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, now, u.CreatedAt)
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := NewUserRepo(db).Create(context.Background(), &model.User{Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1")).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(3, "Ada", "ada@example.com", "hash", now, now))
	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	repo := NewUserRepo(db)
	u, err := repo.GetByEmail(context.Background(), "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), u.ID)
	assert.Equal(t, "hash", u.PasswordHash)

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_UpdateProfile(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	email := "New@Example.com"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET updated_at=CURRENT_TIMESTAMP(6), email=? WHERE id=?")).
		WithArgs("new@example.com", uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM users WHERE id=").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(3, "Ada", "new@example.com", "hash", now, now))

	u, err := NewUserRepo(db).UpdateProfile(context.Background(), 3, nil, &email)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, "Ada", u.Name)
}

func TestUserRepo_UpdateProfileErrors(t *testing.T) {
	db, mock := newMock(t)
	name := "Ada"
	email := "taken@example.com"

	mock.ExpectExec("UPDATE users SET").
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectExec("UPDATE users SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM users WHERE id=").
		WillReturnError(sql.ErrNoRows)

	repo := NewUserRepo(db)
	_, err := repo.UpdateProfile(context.Background(), 3, &name, &email)
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = repo.UpdateProfile(context.Background(), 99, &name, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isDuplicate(&mysql.MySQLError{Number: 1452}))
	assert.False(t, isDuplicate(errors.New("1062")))
}
