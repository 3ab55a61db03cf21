package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/eagerpath/internal/ir"
	"github.com/roach88/eagerpath/internal/lower"
)

// planDomain separates plan hashes from other content hashes.
const planDomain = "eagerpath/plan/v1"

// Plan is the persisted lowering of one spec path.
type Plan struct {
	RunID string `json:"run_id"`
	// Seq orders plans within a run. Assigned by WritePlan.
	Seq    int64  `json:"seq"`
	Spec   string `json:"spec"`
	Root   string `json:"root"`
	Source string `json:"source"`

	// PathHash is the hex digest of Directives.
	PathHash string `json:"path_hash"`
	// Directives is the canonical JSON array of the encoded directives.
	Directives string `json:"directives"`
	// Statements holds the SQL compiled for the path, if any.
	Statements []string `json:"statements,omitempty"`
}

// NewPlan encodes the directives of one path. RunID and Seq are left for
// WritePlan.
func NewPlan(spec, root, source string, dirs []lower.Directive, statements []string) (Plan, error) {
	data, err := marshalDirectives(dirs)
	if err != nil {
		return Plan{}, fmt.Errorf("new plan %s: %w", spec, err)
	}
	return Plan{
		Spec:       spec,
		Root:       root,
		Source:     source,
		PathHash:   ir.HashWithDomain(planDomain, []byte(data)).String(),
		Directives: data,
		Statements: statements,
	}, nil
}

// marshalDirectives converts directives to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalDirectives(dirs []lower.Directive) (string, error) {
	arr := make(ir.IRArray, len(dirs))
	for i, d := range dirs {
		arr[i] = d.Encode()
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal directives: %w", err)
	}
	return string(data), nil
}

// marshalStatements converts SQL statements to canonical JSON TEXT.
func marshalStatements(stmts []string) (string, error) {
	arr := make(ir.IRArray, len(stmts))
	for i, s := range stmts {
		arr[i] = ir.IRString(s)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal statements: %w", err)
	}
	return string(data), nil
}

// unmarshalStatements parses JSON TEXT to SQL statements.
func unmarshalStatements(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var stmts []string
	if err := json.Unmarshal([]byte(data), &stmts); err != nil {
		return nil, fmt.Errorf("unmarshal statements: %w", err)
	}
	return stmts, nil
}
