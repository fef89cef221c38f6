package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
)

// PlanNode is a node of a compiled plan tree.
type PlanNode interface {
	fmt.Stringer
	plan()
}

// SelectDatabase resolves a database by name.
type SelectDatabase struct {
	Name string
}

// CreateDatabase creates a database.
type CreateDatabase struct {
	Name string
}

// DropDatabase drops a database.
type DropDatabase struct {
	Name string
}

// ListDatabases lists all databases.
type ListDatabases struct{}

// ScanTable reads every document of a table.
type ScanTable struct {
	DB   string
	Name string
}

// CreateTable creates a table.
type CreateTable struct {
	DB   string
	Name string
}

// DropTable drops a table.
type DropTable struct {
	DB   string
	Name string
}

// ListTables lists the tables of a database.
type ListTables struct {
	DB string
}

// GetByKey is a point lookup. Key is always an ast.String.
type GetByKey struct {
	DB      string
	Table   string
	Key     ast.Datum
	OptArgs ast.OptArgs
}

// Filter keeps the documents of Source for which Predicate holds.
type Filter struct {
	Source    PlanNode
	Predicate ast.Expr
	OptArgs   ast.OptArgs
}

// Insert writes Documents into the table produced by Table.
type Insert struct {
	Table     PlanNode
	Documents []ast.Datum
	OptArgs   ast.OptArgs
}

// Delete removes the documents produced by Source.
type Delete struct {
	Source  PlanNode
	OptArgs ast.OptArgs
}

// Eval evaluates a scalar expression.
type Eval struct {
	Expr ast.Expr
}

// Constant yields a fixed value.
type Constant struct {
	Value ast.Datum
}

func (*SelectDatabase) plan() {}
func (*CreateDatabase) plan() {}
func (*DropDatabase) plan()   {}
func (*ListDatabases) plan()  {}
func (*ScanTable) plan()      {}
func (*CreateTable) plan()    {}
func (*DropTable) plan()      {}
func (*ListTables) plan()     {}
func (*GetByKey) plan()       {}
func (*Filter) plan()         {}
func (*Insert) plan()         {}
func (*Delete) plan()         {}
func (*Eval) plan()           {}
func (*Constant) plan()       {}

// The String methods below render the full structure of a node. The
// renderings are stable: a GetByKey whose table is not a literal table
// reference is named after one of them.

func (n *SelectDatabase) String() string {
	return "SelectDatabase{name: " + strconv.Quote(n.Name) + "}"
}

func (n *CreateDatabase) String() string {
	return "CreateDatabase{name: " + strconv.Quote(n.Name) + "}"
}

func (n *DropDatabase) String() string {
	return "DropDatabase{name: " + strconv.Quote(n.Name) + "}"
}

func (*ListDatabases) String() string { return "ListDatabases" }

func (n *ScanTable) String() string { return "ScanTable" + dbAndName(n.DB, n.Name) }

func (n *CreateTable) String() string { return "CreateTable" + dbAndName(n.DB, n.Name) }

func (n *DropTable) String() string { return "DropTable" + dbAndName(n.DB, n.Name) }

func (n *ListTables) String() string { return "ListTables{db: " + ast.OptionalName(n.DB) + "}" }

func (n *GetByKey) String() string {
	return fmt.Sprintf("GetByKey{db: %s, table: %q, key: %s, opt_args: %s}",
		ast.OptionalName(n.DB), n.Table, n.Key, optArgs(n.OptArgs))
}

func (n *Filter) String() string {
	return fmt.Sprintf("Filter{source: %s, predicate: %s, opt_args: %s}",
		n.Source, n.Predicate, optArgs(n.OptArgs))
}

func (n *Insert) String() string {
	docs := make([]string, len(n.Documents))
	for i, d := range n.Documents {
		docs[i] = d.String()
	}
	return fmt.Sprintf("Insert{table: %s, documents: [%s], opt_args: %s}",
		n.Table, strings.Join(docs, ", "), optArgs(n.OptArgs))
}

func (n *Delete) String() string {
	return fmt.Sprintf("Delete{source: %s, opt_args: %s}", n.Source, optArgs(n.OptArgs))
}

func (n *Eval) String() string { return "Eval{expr: " + n.Expr.String() + "}" }

func (n *Constant) String() string { return "Constant(" + n.Value.String() + ")" }

func dbAndName(db, name string) string {
	return "{db: " + ast.OptionalName(db) + ", name: " + strconv.Quote(name) + "}"
}

func optArgs(o ast.OptArgs) string {
	if o == nil {
		return "{}"
	}
	return o.String()
}
