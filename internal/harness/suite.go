package harness

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Golden file states of a scenario run.
const (
	GoldenNone     = "none"     // no golden file; assertions only
	GoldenMatched  = "matched"  // trace equals the golden file
	GoldenMismatch = "mismatch" // trace differs from the golden file
	GoldenUpdated  = "updated"  // golden file rewritten from the trace
)

// FileResult is the outcome of one scenario file.
type FileResult struct {
	File   string   `json:"file"`
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden"`
	Errors []string `json:"errors,omitempty"`
}

// FindScenarios returns the .yaml and .yml files under dir, in lexical
// order. A non-empty filter is a glob matched against the file name without
// its extension.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(d.Name(), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// RunFile loads and runs one scenario file, resolving its specs against
// basePath, then compares or updates its golden file.
func RunFile(ctx context.Context, file, basePath string, update bool) FileResult {
	fr := FileResult{File: file, Name: filepath.Base(file), Golden: GoldenNone}
	fail := func(format string, args ...any) FileResult {
		fr.Pass = false
		fr.Errors = append(fr.Errors, fmt.Sprintf(format, args...))
		return fr
	}

	scenario, err := LoadScenarioWithBasePath(file, basePath)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	fr.Name = scenario.Name

	result, err := Run(ctx, scenario)
	if err != nil {
		return fail("execution failed: %v", err)
	}
	fr.Pass = result.Pass
	fr.Errors = result.Errors

	goldenPath := GoldenPath(file)
	if update {
		if err := UpdateGolden(goldenPath, scenario.Name, result); err != nil {
			return fail("failed to update golden file: %v", err)
		}
		fr.Golden = GoldenUpdated
		return fr
	}

	if _, err := os.Stat(goldenPath); os.IsNotExist(err) {
		return fr
	}
	match, err := CompareGolden(goldenPath, scenario.Name, result)
	if err != nil {
		return fail("golden comparison failed: %v", err)
	}
	if !match {
		fr.Golden = GoldenMismatch
		return fail("trace does not match golden file (run with --update to regenerate)")
	}
	fr.Golden = GoldenMatched
	return fr
}
