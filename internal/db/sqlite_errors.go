package db

import (
	"errors"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

func IsUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	if sqliteErr.Code != sqlite3.ErrConstraint {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// uniqueConstraintColumn returns the "table.column" named by a unique
// constraint failure, or "" if err is not one.
func uniqueConstraintColumn(err error) string {
	if !IsUniqueConstraintError(err) {
		return ""
	}
	msg := err.Error()
	const marker = "UNIQUE constraint failed: "
	idx := strings.Index(msg, marker)
	if idx == -1 {
		return ""
	}
	return strings.TrimSpace(msg[idx+len(marker):])
}
