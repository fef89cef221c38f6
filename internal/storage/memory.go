package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
)

type memTable struct {
	docs map[string]ast.Object
	keys []string
}

type memDatabase struct {
	tables map[string]*memTable
	order  []string
}

// Memory is a Backend that keeps everything in process memory.
type Memory struct {
	mu     sync.RWMutex
	dbs    map[string]*memDatabase
	order  []string
	closed bool
}

func NewMemory() *Memory {
	return &Memory{dbs: make(map[string]*memDatabase)}
}

func (m *Memory) CreateDatabase(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.dbs[name]; ok {
		return ErrDatabaseExists
	}
	m.dbs[name] = &memDatabase{tables: make(map[string]*memTable)}
	m.order = append(m.order, name)
	return nil
}

func (m *Memory) DropDatabase(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.dbs[name]; !ok {
		return ErrDatabaseNotFound
	}
	delete(m.dbs, name)
	m.order = remove(m.order, name)
	return nil
}

func (m *Memory) ListDatabases(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	return slices.Clone(m.order), nil
}

func (m *Memory) CreateTable(ctx context.Context, db, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.database(db)
	if err != nil {
		return err
	}
	if _, ok := d.tables[table]; ok {
		return ErrTableExists
	}
	d.tables[table] = &memTable{docs: make(map[string]ast.Object)}
	d.order = append(d.order, table)
	return nil
}

func (m *Memory) DropTable(ctx context.Context, db, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.database(db)
	if err != nil {
		return err
	}
	if _, ok := d.tables[table]; !ok {
		return ErrTableNotFound
	}
	delete(d.tables, table)
	d.order = remove(d.order, table)
	return nil
}

func (m *Memory) ListTables(ctx context.Context, db string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, err := m.database(db)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.order), nil
}

func (m *Memory) Get(ctx context.Context, db, table, key string) (ast.Object, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.table(db, table)
	if err != nil {
		return nil, false, err
	}
	doc, ok := t.docs[key]
	return doc, ok, nil
}

func (m *Memory) Scan(ctx context.Context, db, table string) ([]ast.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.table(db, table)
	if err != nil {
		return nil, err
	}
	docs := make([]ast.Object, 0, len(t.keys))
	for _, k := range t.keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docs = append(docs, t.docs[k])
	}
	return docs, nil
}

func (m *Memory) Insert(ctx context.Context, db, table, key string, doc ast.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(db, table)
	if err != nil {
		return err
	}
	if _, ok := t.docs[key]; ok {
		return ErrDuplicateKey
	}
	t.docs[key] = doc
	t.keys = append(t.keys, key)
	return nil
}

func (m *Memory) Delete(ctx context.Context, db, table, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(db, table)
	if err != nil {
		return false, err
	}
	if _, ok := t.docs[key]; !ok {
		return false, nil
	}
	delete(t.docs, key)
	t.keys = remove(t.keys, key)
	return true, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.dbs = nil
	m.order = nil
	return nil
}

// database must be called with mu held.
func (m *Memory) database(name string) (*memDatabase, error) {
	if m.closed {
		return nil, ErrClosed
	}
	d, ok := m.dbs[name]
	if !ok {
		return nil, ErrDatabaseNotFound
	}
	return d, nil
}

func (m *Memory) table(db, name string) (*memTable, error) {
	d, err := m.database(db)
	if err != nil {
		return nil, err
	}
	t, ok := d.tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	return t, nil
}

func remove(s []string, v string) []string {
	if i := slices.Index(s, v); i >= 0 {
		return slices.Delete(s, i, i+1)
	}
	return s
}
