package compiler

import (
	"errors"
	"fmt"
	"go/token"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/eagerpath/internal/typeinfo"
)

// Declaration error codes (E200-E299). They are disjoint from the path
// finding codes.
const (
	ErrRequired        = "E201" // required field missing
	ErrInvalidName     = "E202" // name is not a Go identifier
	ErrInvalidType     = "E203" // unparseable type string
	ErrInvalidTracking = "E204" // unknown tracking mode
	ErrDuplicateName   = "E205" // duplicate model, field or spec name
	ErrUnknownImport   = "E206" // import names no declared spec
	ErrImportCycle     = "E207" // specs import each other
	ErrUnknownType     = "E208" // root or field type names no declared model
	ErrImportRoot      = "E209" // imported spec has another root
	ErrInvalidColumn   = "E210" // table, key or column is not a SQL identifier
)

// ValidationError represents a declaration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// declValidate checks struct tags of declarations.
var declValidate *validator.Validate

var sqlIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func init() {
	declValidate = validator.New(validator.WithRequiredStructEnabled())
	_ = declValidate.RegisterValidation("goident", validateGoIdent)
	_ = declValidate.RegisterValidation("sqlident", validateSQLIdent)
	_ = declValidate.RegisterValidation("typeref", validateTypeRef)
}

func validateGoIdent(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return token.IsIdentifier(s)
}

func validateSQLIdent(fl validator.FieldLevel) bool {
	return sqlIdent.MatchString(fl.Field().String())
}

// validateTypeRef accepts Go type spellings built from identifiers, optional
// package qualifiers, pointers, slices and arrays.
func validateTypeRef(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	for {
		switch {
		case strings.HasPrefix(s, "*"):
			s = s[1:]
			continue
		case strings.HasPrefix(s, "[]"):
			s = s[2:]
			continue
		case strings.HasPrefix(s, "["):
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return false
			}
			s = s[end+1:]
			continue
		}
		break
	}
	for _, part := range strings.Split(s, ".") {
		if !token.IsIdentifier(part) {
			return false
		}
	}
	return true
}

// tagCodes maps validator tags to error codes.
var tagCodes = map[string]string{
	"required":         ErrRequired,
	"required_without": ErrRequired,
	"goident":          ErrInvalidName,
	"typeref":          ErrInvalidType,
	"oneof":            ErrInvalidTracking,
	"sqlident":         ErrInvalidColumn,
}

// Validate checks declarations. Returns all errors found (does not
// fail-fast).
func Validate(d *Declarations) []ValidationError {
	var errs []ValidationError

	if err := declValidate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []ValidationError{{Field: "declarations", Message: err.Error(), Code: ErrRequired}}
		}
		for _, fe := range verrs {
			errs = append(errs, ValidationError{
				Field:   fieldPath(fe.Namespace()),
				Message: tagMessage(fe),
				Code:    tagCodes[fe.Tag()],
			})
		}
	}

	errs = append(errs, validateModels(d)...)
	errs = append(errs, validateSpecs(d)...)
	return errs
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "goident":
		return fmt.Sprintf("%q is not a Go identifier", fe.Value())
	case "typeref":
		return fmt.Sprintf("%q is not a type", fe.Value())
	case "oneof":
		return fmt.Sprintf("%q must be one of: %s", fe.Value(), fe.Param())
	case "sqlident":
		return fmt.Sprintf("%q is not a SQL identifier", fe.Value())
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}

// builtinTypes are field types that need no model declaration.
var builtinTypes = map[string]bool{
	"bool": true, "string": true, "byte": true, "rune": true, "error": true, "any": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
	"[]byte": true, "[]rune": true,
}

func validateModels(d *Declarations) []ValidationError {
	var errs []ValidationError

	models := make(map[string]bool)
	for i, m := range d.Models {
		if models[m.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("Models[%d].Name", i),
				Message: fmt.Sprintf("duplicate model name: %q", m.Name),
				Code:    ErrDuplicateName,
			})
		}
		models[m.Name] = true
	}

	for i, m := range d.Models {
		fields := make(map[string]bool)
		for j, f := range m.Fields {
			if fields[f.Name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("Models[%d].Fields[%d].Name", i, j),
					Message: fmt.Sprintf("duplicate field %s.%s", m.Name, f.Name),
					Code:    ErrDuplicateName,
				})
			}
			fields[f.Name] = true

			target := typeinfo.ParseTypeRef(f.Type).Target()
			if qualified(f.Type) || builtinTypes[target] || models[target] {
				continue
			}
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("Models[%d].Fields[%d].Type", i, j),
				Message: fmt.Sprintf("%s.%s: unknown type %s", m.Name, f.Name, target),
				Code:    ErrUnknownType,
			})
		}
		for j, base := range m.Extends {
			if !models[base] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("Models[%d].Extends[%d]", i, j),
					Message: fmt.Sprintf("%s extends unknown model %s", m.Name, base),
					Code:    ErrUnknownType,
				})
			}
		}
	}
	return errs
}

// qualified reports whether typ names a type from another package.
func qualified(typ string) bool {
	return strings.Contains(typ, ".")
}

func validateSpecs(d *Declarations) []ValidationError {
	var errs []ValidationError

	specs := make(map[string]SpecDecl)
	for i, s := range d.Specs {
		if _, dup := specs[s.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("Specs[%d].Name", i),
				Message: fmt.Sprintf("duplicate spec name: %q", s.Name),
				Code:    ErrDuplicateName,
			})
			continue
		}
		specs[s.Name] = s
	}

	for i, s := range d.Specs {
		// Without models, types come from elsewhere (Go source).
		if len(d.Models) > 0 {
			if _, ok := d.Model(s.Root); !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("Specs[%d].Root", i),
					Message: fmt.Sprintf("spec %s: unknown root type %s", s.Name, s.Root),
					Code:    ErrUnknownType,
				})
			}
		}
		for j, imp := range s.Imports {
			other, ok := specs[imp]
			if !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("Specs[%d].Imports[%d]", i, j),
					Message: fmt.Sprintf("spec %s imports unknown spec %s", s.Name, imp),
					Code:    ErrUnknownImport,
				})
				continue
			}
			if other.Root != s.Root {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("Specs[%d].Imports[%d]", i, j),
					Message: fmt.Sprintf("spec %s (root %s) imports %s (root %s)", s.Name, s.Root, imp, other.Root),
					Code:    ErrImportRoot,
				})
			}
		}
	}

	for _, c := range AnalyzeImports(d.Specs) {
		errs = append(errs, ValidationError{
			Field:   "Specs",
			Message: c.Message,
			Code:    ErrImportCycle,
		})
	}
	return errs
}
