package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/eagerpath/internal/compiler"
	"github.com/roach88/eagerpath/internal/querysql"
	"github.com/roach88/eagerpath/internal/registry"
	"github.com/roach88/eagerpath/internal/typeinfo"
	"github.com/roach88/eagerpath/internal/walker"
)

// Error code constants - unified across all CLI commands. Finding codes
// (E1xx, W1xx) and declaration codes (E2xx) pass through unchanged.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build or declaration compile failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStoreFailed = "E008" // Plan database error
	ErrCodeNoInput     = "E009" // No directory given and no entrypoints configured
	ErrCodeInvalid     = "E010" // Declarations or paths failed validation
	ErrCodeTestFailed  = "E011" // One or more conformance scenarios failed
)

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadResult contains the declarations read from a specs directory.
type LoadResult struct {
	Decls     *compiler.Declarations
	CUEValue  cue.Value
	FileCount int
}

// LoadSpecs loads the CUE instance in dir and compiles its model and spec
// declarations. Failures are *LoadError.
func LoadSpecs(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	decls, err := compiler.Compile(value)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("%s: %s", ce.Field, ce.Message), Pos: ce.Pos}
		}
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
	}
	if len(decls.Models) == 0 && len(decls.Specs) == 0 {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "no models or specs found in specs"}
	}

	return &LoadResult{Decls: decls, CUEValue: value, FileCount: len(cueFiles)}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Workspace is a loaded specs directory ready to compile paths.
type Workspace struct {
	Dir       string
	FileCount int
	Decls     *compiler.Declarations
	Schema    *typeinfo.Schema
	Mapping   *querysql.Mapping
	Cache     *registry.Cache
}

// LoadWorkspace loads dir and prepares its type universe and path cache.
// extraStatics join the statics the specs declare. Declaration validation
// errors are returned as values; the workspace is nil when there are any.
func LoadWorkspace(dir string, extraStatics []string, logger *slog.Logger) (*Workspace, []compiler.ValidationError, error) {
	res, err := LoadSpecs(dir)
	if err != nil {
		return nil, nil, err
	}

	if verrs := compiler.Validate(res.Decls); len(verrs) > 0 {
		return nil, verrs, nil
	}

	schema, err := compiler.Schema(res.Decls.Models)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
	}

	statics := append(compiler.Statics(res.Decls.Specs), extraStatics...)
	slices.Sort(statics)
	statics = slices.Compact(statics)

	logger.Debug("loaded specs", "dir", dir, "files", res.FileCount,
		"models", len(res.Decls.Models), "specs", len(res.Decls.Specs), "statics", statics)

	return &Workspace{
		Dir:       dir,
		FileCount: res.FileCount,
		Decls:     res.Decls,
		Schema:    schema,
		Mapping:   compiler.Mapping(res.Decls.Models),
		Cache:     registry.NewCache(schema, walker.Options{Statics: statics}, registry.WithLogger(logger)),
	}, nil, nil
}

// errorCode extracts an error code and message from an error.
func errorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Pos.IsValid() {
			return loadErr.Code, fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), loadErr.Message)
		}
		return loadErr.Code, loadErr.Message
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return ErrCodeGeneric, exitErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
