package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// OptArgs is an opaque bag of named options attached to an operation. It is
// carried through compilation and optimization untouched.
type OptArgs = Object

// Term is a node of a parsed query.
type Term interface {
	fmt.Stringer
	term()
}

// ExprTerm wraps a scalar expression.
type ExprTerm struct {
	Expr Expr
}

// Database selects a database by name.
type Database struct {
	Name string
}

// DatabaseCreate creates a database.
type DatabaseCreate struct {
	Name string
}

// DatabaseDrop drops a database.
type DatabaseDrop struct {
	Name string
}

// DatabaseList lists databases.
type DatabaseList struct{}

// Table references a table. An empty DB means the default database.
type Table struct {
	DB   string
	Name string
}

// TableCreate creates a table.
type TableCreate struct {
	DB   string
	Name string
}

// TableDrop drops a table.
type TableDrop struct {
	DB   string
	Name string
}

// TableList lists the tables of a database.
type TableList struct {
	DB string
}

// Get looks a document up by primary key.
type Get struct {
	Table   Term
	Key     Datum
	OptArgs OptArgs
}

// Filter keeps the documents of Source matching Predicate.
type Filter struct {
	Source    Term
	Predicate Term
	OptArgs   OptArgs
}

// Insert writes Documents into Table.
type Insert struct {
	Table     Term
	Documents []Datum
	OptArgs   OptArgs
}

// Delete removes the documents produced by Source.
type Delete struct {
	Source  Term
	OptArgs OptArgs
}

// DatumTerm is a bare value.
type DatumTerm struct {
	Value Datum
}

func (*ExprTerm) term()       {}
func (*Database) term()       {}
func (*DatabaseCreate) term() {}
func (*DatabaseDrop) term()   {}
func (*DatabaseList) term()   {}
func (*Table) term()          {}
func (*TableCreate) term()    {}
func (*TableDrop) term()      {}
func (*TableList) term()      {}
func (*Get) term()            {}
func (*Filter) term()         {}
func (*Insert) term()         {}
func (*Delete) term()         {}
func (*DatumTerm) term()      {}

func (t *ExprTerm) String() string { return "Expr(" + t.Expr.String() + ")" }

func (t *Database) String() string { return "Database{name: " + strconv.Quote(t.Name) + "}" }

func (t *DatabaseCreate) String() string {
	return "DatabaseCreate{name: " + strconv.Quote(t.Name) + "}"
}

func (t *DatabaseDrop) String() string {
	return "DatabaseDrop{name: " + strconv.Quote(t.Name) + "}"
}

func (*DatabaseList) String() string { return "DatabaseList" }

func (t *Table) String() string { return "Table" + dbName(t.DB, t.Name) }

func (t *TableCreate) String() string { return "TableCreate" + dbName(t.DB, t.Name) }

func (t *TableDrop) String() string { return "TableDrop" + dbName(t.DB, t.Name) }

func (t *TableList) String() string { return "TableList{db: " + OptionalName(t.DB) + "}" }

func (t *Get) String() string {
	return fmt.Sprintf("Get{table: %s, key: %s, opt_args: %s}", t.Table, t.Key, optArgs(t.OptArgs))
}

func (t *Filter) String() string {
	return fmt.Sprintf("Filter{source: %s, predicate: %s, opt_args: %s}", t.Source, t.Predicate, optArgs(t.OptArgs))
}

func (t *Insert) String() string {
	docs := make([]string, len(t.Documents))
	for i, d := range t.Documents {
		docs[i] = d.String()
	}
	return fmt.Sprintf("Insert{table: %s, documents: [%s], opt_args: %s}",
		t.Table, strings.Join(docs, ", "), optArgs(t.OptArgs))
}

func (t *Delete) String() string {
	return fmt.Sprintf("Delete{source: %s, opt_args: %s}", t.Source, optArgs(t.OptArgs))
}

func (t *DatumTerm) String() string { return "Datum(" + t.Value.String() + ")" }

// OptionalName renders an optional database name: None when empty, the
// quoted name otherwise.
func OptionalName(name string) string {
	if name == "" {
		return "None"
	}
	return strconv.Quote(name)
}

func dbName(db, name string) string {
	return "{db: " + OptionalName(db) + ", name: " + strconv.Quote(name) + "}"
}

func optArgs(o OptArgs) string {
	if o == nil {
		return "{}"
	}
	return o.String()
}
