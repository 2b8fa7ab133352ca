package database

import "errors"

var (
	// ErrDuplicate means a page with the same canonical URL already
	// exists; StorePage returns it together with the existing page id.
	ErrDuplicate = errors.New("database: page already exists")

	// ErrNotFound means no row matched the query.
	ErrNotFound = errors.New("database: not found")
)
