package storage

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
	"github.com/kartikbazzad/bunbase/bunquery/internal/wire"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dbs (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS tbls (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	db   TEXT NOT NULL,
	name TEXT NOT NULL,
	UNIQUE (db, name)
);
CREATE TABLE IF NOT EXISTS docs (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	db   TEXT NOT NULL,
	tbl  TEXT NOT NULL,
	key  TEXT NOT NULL,
	body BLOB NOT NULL,
	UNIQUE (db, tbl, key)
);
`

// SQLite is a Backend persisted in a single SQLite file. Documents are stored
// as msgpack blobs.
type SQLite struct {
	db *sql.DB
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) CreateDatabase(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO dbs (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return errors.Wrapf(err, "create database %q", name)
	}
	return expectRow(res, ErrDatabaseExists)
}

func (s *SQLite) DropDatabase(ctx context.Context, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM dbs WHERE name = ?`, name)
		if err != nil {
			return errors.Wrapf(err, "drop database %q", name)
		}
		if err := expectRow(res, ErrDatabaseNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tbls WHERE db = ?`, name); err != nil {
			return errors.Wrap(err, "drop tables")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM docs WHERE db = ?`, name); err != nil {
			return errors.Wrap(err, "drop documents")
		}
		return nil
	})
}

func (s *SQLite) ListDatabases(ctx context.Context) ([]string, error) {
	return s.names(ctx, `SELECT name FROM dbs ORDER BY id`)
}

func (s *SQLite) CreateTable(ctx context.Context, db, table string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkDatabase(ctx, tx, db); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO tbls (db, name) VALUES (?, ?) ON CONFLICT (db, name) DO NOTHING`, db, table)
		if err != nil {
			return errors.Wrapf(err, "create table %q", table)
		}
		return expectRow(res, ErrTableExists)
	})
}

func (s *SQLite) DropTable(ctx context.Context, db, table string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkDatabase(ctx, tx, db); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tbls WHERE db = ? AND name = ?`, db, table)
		if err != nil {
			return errors.Wrapf(err, "drop table %q", table)
		}
		if err := expectRow(res, ErrTableNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM docs WHERE db = ? AND tbl = ?`, db, table); err != nil {
			return errors.Wrap(err, "drop documents")
		}
		return nil
	})
}

func (s *SQLite) ListTables(ctx context.Context, db string) ([]string, error) {
	if err := checkDatabase(ctx, s.db, db); err != nil {
		return nil, err
	}
	return s.names(ctx, `SELECT name FROM tbls WHERE db = ? ORDER BY id`, db)
}

func (s *SQLite) Get(ctx context.Context, db, table, key string) (ast.Object, bool, error) {
	if err := checkTable(ctx, s.db, db, table); err != nil {
		return nil, false, err
	}

	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM docs WHERE db = ? AND tbl = ? AND key = ?`, db, table, key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "get document")
	}
	doc, err := decodeDocument(body)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *SQLite) Scan(ctx context.Context, db, table string) ([]ast.Object, error) {
	if err := checkTable(ctx, s.db, db, table); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT body FROM docs WHERE db = ? AND tbl = ? ORDER BY id`, db, table)
	if err != nil {
		return nil, errors.Wrap(err, "scan table")
	}
	defer rows.Close()

	docs := []ast.Object{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		doc, err := decodeDocument(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, errors.Wrap(rows.Err(), "scan table")
}

func (s *SQLite) Insert(ctx context.Context, db, table, key string, doc ast.Object) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkTable(ctx, tx, db, table); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO docs (db, tbl, key, body) VALUES (?, ?, ?, ?) ON CONFLICT (db, tbl, key) DO NOTHING`,
			db, table, key, wire.EncodeDocument(doc),
		)
		if err != nil {
			return errors.Wrap(err, "insert document")
		}
		return expectRow(res, ErrDuplicateKey)
	})
}

func (s *SQLite) Delete(ctx context.Context, db, table, key string) (bool, error) {
	var deleted bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkTable(ctx, tx, db, table); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM docs WHERE db = ? AND tbl = ? AND key = ?`, db, table, key)
		if err != nil {
			return errors.Wrap(err, "delete document")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "rows affected")
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (s *SQLite) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list names")
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan name")
		}
		names = append(names, name)
	}
	return names, errors.Wrap(rows.Err(), "list names")
}

func checkDatabase(ctx context.Context, q querier, db string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM dbs WHERE name = ?`, db).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrDatabaseNotFound
	}
	return errors.Wrap(err, "check database")
}

func checkTable(ctx context.Context, q querier, db, table string) error {
	if err := checkDatabase(ctx, q, db); err != nil {
		return err
	}
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM tbls WHERE db = ? AND name = ?`, db, table).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrTableNotFound
	}
	return errors.Wrap(err, "check table")
}

// expectRow returns sentinel when res affected no rows.
func expectRow(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return sentinel
	}
	return nil
}

func decodeDocument(body []byte) (ast.Object, error) {
	d, err := wire.DecodeDocument(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	doc, ok := d.(ast.Object)
	if !ok {
		return nil, errors.Errorf("stored document is %s, not an object", ast.TypeName(d))
	}
	return doc, nil
}
