package planner

import (
	"strconv"
	"strings"
)

// Explain renders plan as indented text, one operator per line. Children are
// indented by two spaces per level.
func (p *Planner) Explain(plan PlanNode, indent int) string {
	var sb strings.Builder
	p.explain(&sb, plan, indent)
	return sb.String()
}

func (p *Planner) explain(sb *strings.Builder, plan PlanNode, indent int) {
	sb.WriteString(strings.Repeat("  ", indent))

	switch n := plan.(type) {
	case *SelectDatabase:
		sb.WriteString("SelectDatabase: " + n.Name)

	case *CreateDatabase:
		sb.WriteString("CreateDatabase: " + n.Name)

	case *DropDatabase:
		sb.WriteString("DropDatabase: " + n.Name)

	case *ListDatabases:
		sb.WriteString("ListDatabases")

	case *ScanTable:
		sb.WriteString("ScanTable: " + n.Name + "\n")
		// The database is shown as a child for readability only.
		p.explain(sb, &SelectDatabase{Name: n.DB}, indent+1)

	case *CreateTable:
		sb.WriteString("CreateTable: " + n.Name)

	case *DropTable:
		sb.WriteString("DropTable: " + n.Name)

	case *ListTables:
		sb.WriteString("ListTables")

	case *GetByKey:
		sb.WriteString("GetByKey: table=" + n.Table + ", key=" + n.Key.String())

	case *Filter:
		sb.WriteString("Filter: " + n.Predicate.String() + "\n")
		p.explain(sb, n.Source, indent+1)

	case *Insert:
		sb.WriteString("Insert " + strconv.Itoa(len(n.Documents)) + " docs\n")
		p.explain(sb, n.Table, indent+1)

	case *Delete:
		sb.WriteString("Delete\n")
		p.explain(sb, n.Source, indent+1)

	case *Eval:
		sb.WriteString("Eval: " + n.Expr.String())

	case *Constant:
		sb.WriteString("Constant: " + n.Value.String())
	}
}
