// Package repository defines the MySQL-backed stores and the error values
// they share. Handlers and services distinguish failure scenarios through
// these sentinels rather than driver errors: ErrNotFound maps to a 404 and
// ErrEmailExists to a uniqueness violation on users.email.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert or update would break the
// unique index on users.email.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
