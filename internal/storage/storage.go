// Package storage holds documents for the evaluator. A Backend is shared by
// every connection and must be safe for concurrent use.
package storage

import (
	"context"
	"errors"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
)

var (
	ErrDatabaseNotFound = errors.New("database not found")
	ErrDatabaseExists   = errors.New("database already exists")
	ErrTableNotFound    = errors.New("table not found")
	ErrTableExists      = errors.New("table already exists")
	ErrDuplicateKey     = errors.New("duplicate primary key")
	ErrClosed           = errors.New("storage is closed")
)

// Backend stores documents keyed by primary key in named tables of named
// databases. Listings and scans return items in creation order.
type Backend interface {
	CreateDatabase(ctx context.Context, name string) error
	DropDatabase(ctx context.Context, name string) error
	ListDatabases(ctx context.Context) ([]string, error)

	CreateTable(ctx context.Context, db, table string) error
	DropTable(ctx context.Context, db, table string) error
	ListTables(ctx context.Context, db string) ([]string, error)

	// Get returns the document stored under key; ok is false when there is none.
	Get(ctx context.Context, db, table, key string) (doc ast.Object, ok bool, err error)
	Scan(ctx context.Context, db, table string) ([]ast.Object, error)
	// Insert stores doc under key and fails with ErrDuplicateKey when key is taken.
	Insert(ctx context.Context, db, table, key string, doc ast.Object) error
	// Delete removes the document stored under key and reports whether it existed.
	Delete(ctx context.Context, db, table, key string) (bool, error)

	Close() error
}
