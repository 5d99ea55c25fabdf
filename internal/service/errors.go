package service

import "errors"

var (
	// ErrDuplicateEmail is returned by Register when the email is taken.
	ErrDuplicateEmail = errors.New("user with this email already exists")
	// ErrEmailInUse is returned by UpdateProfile when the new email is taken.
	ErrEmailInUse = errors.New("email is already in use")
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated covers a missing, malformed, badly signed or expired
	// token, and a token whose user no longer exists.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrForbidden is returned when an authenticated caller is not the owner.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when the addressed user or image does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPathImmutable is returned when an update names a storage path other
	// than the one the image was created with.
	ErrPathImmutable = errors.New("image path cannot be changed")
	// ErrEmptyPatch is returned when an update carries no field.
	ErrEmptyPatch = errors.New("no fields to update")
)
