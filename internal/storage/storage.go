// Package storage implements the file collaborator that holds image
// binaries: a local directory served under the upload URL prefix, or an
// S3-compatible bucket.
package storage

import "errors"

// ErrIO marks a failed write or delete. Callers may retry a failed write.
var ErrIO = errors.New("storage i/o failure")
