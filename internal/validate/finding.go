package validate

import (
	"fmt"
	"go/token"
)

// Code identifies a validation rule.
type Code string

// Finding codes (E1xx errors, W1xx warnings).
const (
	// CodeUnresolvedProperty: a member name does not exist on the current type.
	CodeUnresolvedProperty Code = "E101"

	// CodeMissingEach: a property is read directly off a collection without
	// an iteration marker.
	CodeMissingEach Code = "E102"

	// CodeEachOnNonCollection: an iteration marker where the current
	// position is not a collection.
	CodeEachOnNonCollection Code = "E103"

	// CodeFilterOnNonCollection: a filter or sort call where the current
	// position is not a collection.
	CodeFilterOnNonCollection Code = "E104"

	// CodeUnnecessaryTo: a forwarding marker after a segment that is
	// neither nullable nor a collection.
	CodeUnnecessaryTo Code = "W105"

	// CodeMissingTo: a nullable single reference followed by further
	// navigation with neither a forwarding nor a null-forgiving marker.
	CodeMissingTo Code = "W106"

	// CodeInvalidPredicateMember: a member referenced inside a filter or
	// sort key does not resolve on the element type.
	CodeInvalidPredicateMember Code = "E107"

	// CodeCastMismatch: a cast that is neither an upcast nor a compatible
	// downcast.
	CodeCastMismatch Code = "E108"

	// CodeFieldAccess: navigation through a field or method instead of a
	// property.
	CodeFieldAccess Code = "E109"
)

var messages = map[Code]string{
	CodeUnresolvedProperty:     "%s has no property %s",
	CodeMissingEach:            "%s is a collection; use %s[each] before navigating to %s",
	CodeEachOnNonCollection:    "[each] applied to %s, which is not a collection",
	CodeFilterOnNonCollection:  "%s applied to %s, which is not a collection",
	CodeUnnecessaryTo:          "[to] after %s is unnecessary: %s is neither nullable nor a collection",
	CodeMissingTo:              "%s is nullable; use %s[to] before navigating to %s",
	CodeInvalidPredicateMember: "%s has no property %s referenced in %s",
	CodeCastMismatch:           "cannot cast %s to %s",
	CodeFieldAccess:            "%s.%s is a %s; navigate through a property instead",
}

// Severity of a finding.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// String returns "error" or "warning".
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler so JSON output uses the string form.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Severity returns the severity of findings with this code.
func (c Code) Severity() Severity {
	if len(c) > 0 && c[0] == 'W' {
		return SeverityWarning
	}
	return SeverityError
}

// SuggestedFix is an automatic rewrite of the whole expression.
type SuggestedFix struct {
	Description string `json:"description"`
	Replacement string `json:"replacement"`
}

// Finding is one validation outcome.
type Finding struct {
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`

	// Step is the index of the offending trace step.
	Step int `json:"step"`

	// Property names the segment the finding is located at.
	Property string `json:"property,omitempty"`

	// Args are the message substitution arguments.
	Args []string `json:"args,omitempty"`

	Message string        `json:"message"`
	Fix     *SuggestedFix `json:"fix,omitempty"`

	// Pos locates the offending token within the expression.
	Pos token.Pos `json:"-"`
}

// String renders the finding as "[E102] message".
func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s", f.Code, f.Message)
}

func newFinding(code Code, step int, pos token.Pos, property string, args ...string) Finding {
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a
	}
	return Finding{
		Code:     code,
		Severity: code.Severity(),
		Step:     step,
		Property: property,
		Args:     args,
		Message:  fmt.Sprintf(messages[code], vals...),
		Pos:      pos,
	}
}

// HasErrors reports whether any finding is an error.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error findings.
func Errors(findings []Finding) []Finding {
	return filter(findings, SeverityError)
}

// Warnings returns the warning findings.
func Warnings(findings []Finding) []Finding {
	return filter(findings, SeverityWarning)
}

func filter(findings []Finding, s Severity) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}
