package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: address
description: "reference navigation"
specs: [shop.cue]
cases:
  - name: address
    root: Order
    paths: ["o.Customer[to].Address"]
    expect:
      calls:
        - "Include(func(x Order) any { return x.Customer })"
        - "ThenInclude(func(x Customer) any { return x.Address })"
`

const failingScenario = `name: wrong_findings
description: "an unmet expectation"
specs: [shop.cue]
cases:
  - name: products
    root: Order
    paths: ["o.LineItems.Product"]
    expect: {findings: [W106]}
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

// testResponse is a CLIResponse with typed test data.
type testResponse struct {
	Status string     `json:"status"`
	Data   TestResult `json:"data"`
	Error  *CLIError  `json:"error"`
}

func TestTestPassing(t *testing.T) {
	specs := writeSpecs(t, nil)
	scenarios := writeScenarios(t, map[string]string{"address.yaml": passingScenario})

	out, err := execute(t, NewTestCommand(testRootOptions("text")), specs, scenarios)
	require.NoError(t, err)
	assert.Equal(t, "OK address\n\nTest Summary: 1 passed, 0 failed, 1 total\nOK All scenarios passed\n", out)
}

func TestTestFailing(t *testing.T) {
	specs := writeSpecs(t, nil)
	scenarios := writeScenarios(t, map[string]string{
		"address.yaml": passingScenario,
		"wrong.yaml":   failingScenario,
	})

	out, err := execute(t, NewTestCommand(testRootOptions("text")), specs, scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "1 scenario(s) failed", err.Error())

	assert.Contains(t, out, "OK address\n")
	assert.Contains(t, out, "FAIL wrong_findings\n  case products: expected findings [W106], got [E102]\n")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total\n")
	assert.NotContains(t, out, "All scenarios passed")
}

func TestTestJSON(t *testing.T) {
	specs := writeSpecs(t, nil)
	scenarios := writeScenarios(t, map[string]string{
		"address.yaml": passingScenario,
		"wrong.yaml":   failingScenario,
	})

	out, err := execute(t, NewTestCommand(testRootOptions("json")), specs, scenarios)
	require.Error(t, err)

	var resp testResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "address", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "none", resp.Data.Scenarios[0].Golden)
	assert.False(t, resp.Data.Scenarios[1].Pass)
}

func TestTestFilter(t *testing.T) {
	specs := writeSpecs(t, nil)
	scenarios := writeScenarios(t, map[string]string{
		"address.yaml": passingScenario,
		"wrong.yaml":   failingScenario,
	})

	out, err := execute(t, NewTestCommand(testRootOptions("text")), specs, scenarios, "--filter", "addr*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	out, err = execute(t, NewTestCommand(testRootOptions("text")), specs, scenarios, "--filter", "none*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTestUpdateGolden(t *testing.T) {
	specs := writeSpecs(t, nil)
	scenarios := writeScenarios(t, map[string]string{"address.yaml": passingScenario})
	golden := filepath.Join(scenarios, "golden", "address.golden")

	out, err := execute(t, NewTestCommand(testRootOptions("text")), specs, scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "OK address (golden updated)\n")
	assert.FileExists(t, golden)

	_, err = execute(t, NewTestCommand(testRootOptions("text")), specs, scenarios)
	require.NoError(t, err, "the golden file just written matches")

	require.NoError(t, os.WriteFile(golden, []byte("{}"), 0o644))
	out, err = execute(t, NewTestCommand(testRootOptions("text")), specs, scenarios)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandErrors(t *testing.T) {
	specs := writeSpecs(t, nil)
	missing := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing specs dir", []string{missing, specs}, ErrCodeNotFound},
		{"missing scenarios dir", []string{specs, missing}, ErrCodeNotFound},
		{"bad filter", []string{specs, specs, "--filter", "["}, ErrCodeScanError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewTestCommand(testRootOptions("json")), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp testResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
