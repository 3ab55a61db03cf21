package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: a set of declarations and the
// path expressions compiled against them.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE files declaring the models, relative to the base path
	// the scenario was loaded with.
	Specs []string `yaml:"specs"`

	// Statics are identifiers lambdas may reference besides their parameters.
	Statics []string `yaml:"statics,omitempty"`

	// Cases are compiled in order.
	Cases []Case `yaml:"cases"`

	// Assertions validate the trace and the plan store.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Case is one include call: one or more paths over one root type.
type Case struct {
	Name  string   `yaml:"name"`
	Root  string   `yaml:"root"`
	Paths []string `yaml:"paths"`

	// Expect specifies the expected outcome. If nil, the case is only traced.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a case. Unset fields are
// not checked, except that a case expecting no Error must not fail.
type ExpectClause struct {
	// Calls are the rendered include calls of every path, in order.
	Calls []string `yaml:"calls,omitempty"`

	// Findings are the finding codes of every path, in order.
	Findings []string `yaml:"findings,omitempty"`

	// Error is the failure kind, such as UNSUPPORTED_SHAPE or CONFLICT.
	Error string `yaml:"error,omitempty"`

	// Statements is the number of SQL statements planned.
	Statements int `yaml:"statements,omitempty"`
}

// Assertion validates the trace or the plan store.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Case restricts trace_contains and trace_count to one case.
	Case string `yaml:"case,omitempty"`

	// Kind restricts trace_contains and trace_count to one event kind.
	Kind string `yaml:"kind,omitempty"`

	// Text is the substring trace_contains looks for.
	Text string `yaml:"text,omitempty"`

	// Texts are the substrings trace_order expects in order.
	Texts []string `yaml:"texts,omitempty"`

	// Count is the event count trace_count expects.
	Count int `yaml:"count,omitempty"`

	// Cases are the cases same_plan compares.
	Cases []string `yaml:"cases,omitempty"`

	// Table, Where and Expect select and check a plan store row for
	// final_state. Where and Expect are subset matches on columns.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertSamePlan      = "same_plan"
	AssertFinalState    = "final_state"
)

// LoadScenario reads a scenario file, resolving its spec paths against the
// directory of the file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads a scenario file, resolving relative spec
// paths against basePath. Unknown fields are rejected so that typos fail
// loudly.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	names := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		switch {
		case c.Name == "":
			return fmt.Errorf("cases[%d]: name is required", i)
		case names[c.Name]:
			return fmt.Errorf("cases[%d]: duplicate name %q", i, c.Name)
		case c.Root == "":
			return fmt.Errorf("cases[%d]: root is required", i)
		case len(c.Paths) == 0:
			return fmt.Errorf("cases[%d]: paths list is required and must be non-empty", i)
		}
		names[c.Name] = true
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, names); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, cases map[string]bool) error {
	if a.Case != "" && !cases[a.Case] {
		return fmt.Errorf("assertions[%d]: unknown case %q", index, a.Case)
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Texts) < 2 {
			return fmt.Errorf("assertions[%d]: at least two texts are required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertSamePlan:
		if len(a.Cases) < 2 {
			return fmt.Errorf("assertions[%d]: at least two cases are required for same_plan", index)
		}
		for _, c := range a.Cases {
			if !cases[c] {
				return fmt.Errorf("assertions[%d]: unknown case %q", index, c)
			}
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
