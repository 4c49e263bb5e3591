// Package store persists movies, tests and verdicts.
//
// Everything goes through a four-operation Gateway (read, upsert, update,
// delete) over named tables. Repository maps the rows onto model types and
// owns the multi-table sequences (saving a movie with its genres, deleting
// a movie with everything that points at it).
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a single record lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Table names.
const (
	TableMovies       = "movies"
	TableGenres       = "genres"
	TableMoviesGenres = "movies_genres"
	TableTests        = "tests"
	TableResults      = "result_test"
)

// Filter selects rows by column equality. A nil value matches NULL and a
// slice value matches any of its elements.
type Filter map[string]any

// Record is a set of column values to write.
type Record map[string]any

// Gateway is the persistence boundary used by Repository.
type Gateway interface {
	// Read selects all columns of the matching rows into dest, a pointer to
	// a slice of structs with db tags.
	Read(ctx context.Context, dest any, table string, filter Filter, orderBy ...string) error
	// Upsert inserts record, or updates the existing row with the same key.
	// It returns the row id for tables keyed by id.
	Upsert(ctx context.Context, table string, record Record) (int64, error)
	// Update applies patch to the matching rows and returns how many changed.
	Update(ctx context.Context, table string, filter Filter, patch Record) (int64, error)
	// Delete removes the matching rows and returns how many were deleted.
	Delete(ctx context.Context, table string, filter Filter) (int64, error)
}
