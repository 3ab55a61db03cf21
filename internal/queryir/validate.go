package queryir

import (
	"fmt"

	"github.com/roach88/eagerpath/internal/ir"
)

// ValidationResult contains portability analysis of a load.
type ValidationResult struct {
	// IsPortable indicates if the load uses only portable fragment features.
	IsPortable bool

	// Warnings lists non-portable features used in the load.
	// Empty when IsPortable is true.
	Warnings []string
}

// Validate checks a load and its ancestors against the portable fragment.
//
// Non-portable loads are allowed and execute correctly with the SQLite
// backend. Warnings are returned to inform developers of migration
// constraints.
//
// Validate is a pure function with no side effects.
func Validate(l *Load) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateLoad(l)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateLoad(l *Load) {
	if l == nil {
		v.addWarning("nil load - portable fragment requires valid load nodes")
		return
	}
	if l.Parent != nil {
		v.validateLoad(l.Parent)
	}

	name := l.Table
	if l.Navigation != "" {
		name = l.Navigation
	}
	if len(l.Columns) == 0 {
		v.addWarning("%s: empty columns (SELECT *) - portable fragment requires explicit column selection", name)
	}
	if l.Parent != nil && (l.ParentKey == "" || l.ChildKey == "") {
		v.addWarning("%s: missing join keys", name)
	}
	if l.Filter != nil {
		v.validatePredicate(name, l.Filter)
	}
}

func (v *validator) validatePredicate(name string, p Predicate) {
	switch pred := p.(type) {
	case Compare:
		if _, isNull := pred.Value.(ir.IRNull); isNull {
			v.addWarning("%s: column '%s' compared to NULL - use IsNull", name, pred.Column)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(name, sub)
		}
	case Or:
		v.addWarning("%s: OR predicate - portable fragment requires conjunctions", name)
		for _, sub := range pred.Predicates {
			v.validatePredicate(name, sub)
		}
	case Not:
		v.validatePredicate(name, pred.Predicate)
	case IsNull:
		v.addWarning("%s: column '%s' tested for NULL - portable fragment excludes NULLs", name, pred.Column)
	case Like:
		v.addWarning("%s: LIKE on column '%s' - pattern matching is backend-specific", name, pred.Column)
	default:
		v.addWarning("%s: unknown predicate type: %T - portability cannot be verified", name, p)
	}
}
