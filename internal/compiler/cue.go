package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Compile reads every model and spec declared under the top-level model and
// spec fields of v.
func Compile(v cue.Value) (*Declarations, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	decls := &Declarations{}

	models := v.LookupPath(cue.ParsePath("model"))
	if models.Exists() {
		iter, err := models.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			m, err := CompileModel(iter.Value())
			if err != nil {
				return nil, err
			}
			decls.Models = append(decls.Models, *m)
		}
	}

	specs := v.LookupPath(cue.ParsePath("spec"))
	if specs.Exists() {
		iter, err := specs.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			s, err := CompileSpec(iter.Value())
			if err != nil {
				return nil, err
			}
			decls.Specs = append(decls.Specs, *s)
		}
	}

	return decls, nil
}

// CompileModel parses a CUE value into a ModelDecl. The model name is the
// value's label:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: Order: { fields: { ID: "int" } }`)
//	m, err := CompileModel(v.LookupPath(cue.ParsePath("model.Order")))
func CompileModel(v cue.Value) (*ModelDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &ModelDecl{Name: label(v)}

	var err error
	if m.Table, err = optionalString(v, "table"); err != nil {
		return nil, err
	}
	if m.Key, err = optionalString(v, "key"); err != nil {
		return nil, err
	}
	if m.Interface, err = optionalBool(v, "interface"); err != nil {
		return nil, err
	}
	if m.Columns, err = optionalStrings(v, "columns"); err != nil {
		return nil, err
	}
	if m.Extends, err = optionalStrings(v, "extends"); err != nil {
		return nil, err
	}
	if m.Implements, err = optionalStrings(v, "implements"); err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if fieldsVal.Exists() {
		iter, err := fieldsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			f, err := parseField(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			m.Fields = append(m.Fields, f)
		}
	}

	methodsVal := v.LookupPath(cue.ParsePath("methods"))
	if methodsVal.Exists() {
		iter, err := methodsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Methods = make(map[string]string)
		for iter.Next() {
			result, err := iter.Value().String()
			if err != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("model.%s.methods.%s", m.Name, iter.Label()),
					Message: "method result must be a type string",
					Pos:     iter.Value().Pos(),
				}
			}
			m.Methods[iter.Label()] = result
		}
	}

	if !m.Interface && len(m.Fields) == 0 && len(m.Extends) == 0 {
		return nil, &CompileError{
			Field:   fmt.Sprintf("model.%s.fields", m.Name),
			Message: "a model needs at least one field",
			Pos:     v.Pos(),
		}
	}

	return m, nil
}

// parseField accepts either a type string or {type, key}.
func parseField(name string, v cue.Value) (FieldDecl, error) {
	f := FieldDecl{Name: name}

	if v.IncompleteKind() == cue.StringKind {
		typ, err := v.String()
		if err != nil {
			return f, formatCUEError(err)
		}
		f.Type = typ
		return f, nil
	}

	if v.IncompleteKind() != cue.StructKind {
		return f, &CompileError{
			Field:   "fields." + name,
			Message: "must be a type string or {type, key}",
			Pos:     v.Pos(),
		}
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return f, &CompileError{
			Field:   "fields." + name + ".type",
			Message: "type is required",
			Pos:     v.Pos(),
		}
	}
	typ, err := typeVal.String()
	if err != nil {
		return f, formatCUEError(err)
	}
	f.Type = typ

	if f.Key, err = optionalString(v, "key"); err != nil {
		return f, err
	}
	return f, nil
}

// CompileSpec parses a CUE value into a SpecDecl. The spec name is the
// value's label.
func CompileSpec(v cue.Value) (*SpecDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &SpecDecl{Name: label(v)}

	rootVal := v.LookupPath(cue.ParsePath("root"))
	if !rootVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("spec.%s.root", s.Name),
			Message: "root is required",
			Pos:     v.Pos(),
		}
	}
	root, err := rootVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	s.Root = root

	if s.Split, err = optionalBool(v, "split"); err != nil {
		return nil, err
	}
	if s.Tracking, err = optionalString(v, "tracking"); err != nil {
		return nil, err
	}
	if s.Statics, err = optionalStrings(v, "statics"); err != nil {
		return nil, err
	}
	if s.Paths, err = optionalStrings(v, "paths"); err != nil {
		return nil, err
	}
	if s.Imports, err = optionalStrings(v, "imports"); err != nil {
		return nil, err
	}

	if len(s.Paths) == 0 && len(s.Imports) == 0 {
		return nil, &CompileError{
			Field:   fmt.Sprintf("spec.%s.paths", s.Name),
			Message: "a spec needs at least one path or import",
			Pos:     v.Pos(),
		}
	}

	return s, nil
}

func label(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return sels[len(sels)-1].String()
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
