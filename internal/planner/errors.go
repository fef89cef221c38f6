package planner

import (
	"errors"

	"github.com/kartikbazzad/bunbase/bunquery/internal/ast"
)

var (
	// ErrUnsupportedTerm is returned for terms that cannot be submitted as a
	// query, such as a bare value.
	ErrUnsupportedTerm = errors.New("unsupported term")

	// ErrInvalidPredicate is returned when a filter predicate is not an
	// expression.
	ErrInvalidPredicate = errors.New("invalid predicate")

	// ErrInvalidGetTerm is returned when a point lookup key is not a string.
	ErrInvalidGetTerm = errors.New("invalid get term")
)

// PlanError is a compilation failure. Term is the offending sub-term.
type PlanError struct {
	Kind error
	Term ast.Term
}

func (e *PlanError) Error() string {
	switch e.Kind {
	case ErrUnsupportedTerm:
		return "Unsupported term encountered during planning: " + e.Term.String()
	case ErrInvalidPredicate:
		return "Filter predicate is not a boolean expression: " + e.Term.String()
	case ErrInvalidGetTerm:
		return "Get term missing table or key: " + e.Term.String()
	}
	return e.Kind.Error() + ": " + e.Term.String()
}

func (e *PlanError) Unwrap() error { return e.Kind }
