package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validateResponse is a CLIResponse with typed validation data.
type validateResponse struct {
	Status string           `json:"status"`
	Data   ValidationResult `json:"data"`
	Error  *CLIError        `json:"error"`
}

func TestValidateValidSpecs(t *testing.T) {
	dir := writeSpecs(t, nil)

	out, err := execute(t, NewValidateCommand(testRootOptions("text")), dir)
	require.NoError(t, err)
	assert.Equal(t, "OK Validated 2 path(s)\n", out)
}

func TestValidateValidSpecsJSON(t *testing.T) {
	dir := writeSpecs(t, nil)

	out, err := execute(t, NewValidateCommand(testRootOptions("json")), dir)
	require.NoError(t, err)

	var resp validateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Checked)
	assert.Empty(t, resp.Data.Paths)
}

func TestValidateErrorFinding(t *testing.T) {
	dir := writeModels(t, `spec: Bad: {root: "Order", paths: ["o.LineItems.Product", "o.Customer[to].Address"]}`)

	out, err := execute(t, NewValidateCommand(testRootOptions("text")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed")

	assert.Contains(t, out, "FAIL Validation failed: 1 error(s), 0 warning(s)\n")
	assert.Contains(t, out, "\nBad: o.LineItems.Product\n")
	assert.Contains(t, out, "  E102 error: LineItems is a collection; use LineItems[each] before navigating to Product\n")
	assert.Contains(t, out, "    fix: o.LineItems[each].Product\n")
	assert.NotContains(t, out, "o.Customer[to].Address", "clean paths are not listed")
}

func TestValidateWarnings(t *testing.T) {
	specs := `spec: Loose: {root: "Order", paths: ["o.Customer.Address"]}`

	tests := []struct {
		name     string
		args     []string
		project  Project
		wantCode int
	}{
		{name: "warnings pass", wantCode: ExitSuccess},
		{name: "strict flag", args: []string{"--strict"}, wantCode: ExitFailure},
		{name: "strict project", project: Project{Strict: true}, wantCode: ExitFailure},
		{name: "flag overrides project", args: []string{"--strict=false"}, project: Project{Strict: true}, wantCode: ExitSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeModels(t, specs)
			opts := testRootOptions("text")
			opts.Project = tt.project

			out, err := execute(t, NewValidateCommand(opts), append([]string{dir}, tt.args...)...)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, out, "  W106 warning: ")
			assert.Contains(t, out, "    fix: o.Customer[to].Address\n")
			if tt.wantCode == ExitSuccess {
				assert.Contains(t, out, "OK Validated 1 path(s) with 1 warning(s)\n")
			}
		})
	}
}

func TestValidateDeclarationErrors(t *testing.T) {
	dir := writeModels(t, `spec: Bad: {root: "Order", paths: ["o.Customer"], imports: ["Missing"]}`)

	out, err := execute(t, NewValidateCommand(testRootOptions("json")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp validateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Declarations, 1)
	assert.Equal(t, "E206", resp.Data.Declarations[0].Code)
	assert.Empty(t, resp.Data.Paths, "paths are not walked when declarations fail")
}

func TestValidateWalkError(t *testing.T) {
	dir := writeModels(t, `spec: Bad: {root: "Order", paths: ["o.LineItems[0].Product"]}`)

	out, err := execute(t, NewValidateCommand(testRootOptions("json")), dir)
	require.Error(t, err)

	var resp validateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Paths, 1)
	require.NotNil(t, resp.Data.Paths[0].Error)
	assert.Equal(t, "UNSUPPORTED_SHAPE", resp.Data.Paths[0].Error.Code)
	assert.Equal(t, 1, resp.Data.Errors)
}

func TestValidateCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
		code string
	}{
		{"missing directory", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") }, ErrCodeNotFound},
		{"empty directory", func(t *testing.T) string { return t.TempDir() }, ErrCodeNoFiles},
		{"CUE conflict", func(t *testing.T) string {
			return writeSpecs(t, map[string]string{"conflict.cue": "package shop\n\nmodel: Order: table: \"other\"\n"})
		}, ErrCodeBuildFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewValidateCommand(testRootOptions("text")), tt.dir(t))
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestValidateVerboseOutput(t *testing.T) {
	dir := writeSpecs(t, nil)
	opts := testRootOptions("json")
	opts.Verbose = true

	cmd := NewValidateCommand(opts)
	var stderr, stdout = &syncBuffer{}, &syncBuffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stderr.String(), "Validating spec: OrderDetails")

	var resp validateResponse
	require.NoError(t, json.Unmarshal([]byte(stdout.String()), &resp), "verbose logs stay off stdout")
}
