package parser

import "strconv"

// TermType is the integer code identifying a composite term on the wire.
// Codes match the ReQL protocol numbering.
type TermType int

const (
	TermMakeArray   TermType = 2
	TermDB          TermType = 14
	TermTable       TermType = 15
	TermGet         TermType = 16
	TermEq          TermType = 17
	TermNe          TermType = 18
	TermLt          TermType = 19
	TermLe          TermType = 20
	TermGt          TermType = 21
	TermGe          TermType = 22
	TermNot         TermType = 23
	TermAdd         TermType = 24
	TermSub         TermType = 25
	TermMul         TermType = 26
	TermDiv         TermType = 27
	TermGetField    TermType = 31
	TermFilter      TermType = 39
	TermDelete      TermType = 54
	TermInsert      TermType = 56
	TermDBCreate    TermType = 57
	TermDBDrop      TermType = 58
	TermDBList      TermType = 59
	TermTableCreate TermType = 60
	TermTableDrop   TermType = 61
	TermTableList   TermType = 62
	TermOr          TermType = 66
	TermAnd         TermType = 67
)

var termNames = map[TermType]string{
	TermMakeArray:   "MAKE_ARRAY",
	TermDB:          "DB",
	TermTable:       "TABLE",
	TermGet:         "GET",
	TermEq:          "EQ",
	TermNe:          "NE",
	TermLt:          "LT",
	TermLe:          "LE",
	TermGt:          "GT",
	TermGe:          "GE",
	TermNot:         "NOT",
	TermAdd:         "ADD",
	TermSub:         "SUB",
	TermMul:         "MUL",
	TermDiv:         "DIV",
	TermGetField:    "GET_FIELD",
	TermFilter:      "FILTER",
	TermDelete:      "DELETE",
	TermInsert:      "INSERT",
	TermDBCreate:    "DB_CREATE",
	TermDBDrop:      "DB_DROP",
	TermDBList:      "DB_LIST",
	TermTableCreate: "TABLE_CREATE",
	TermTableDrop:   "TABLE_DROP",
	TermTableList:   "TABLE_LIST",
	TermOr:          "OR",
	TermAnd:         "AND",
}

func (t TermType) String() string {
	if name, ok := termNames[t]; ok {
		return name
	}
	return "TermType(" + strconv.Itoa(int(t)) + ")"
}
