package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eagerpath/internal/store"
)

// runsResponse is a CLIResponse with typed run data.
type runsResponse struct {
	Status string      `json:"status"`
	Data   []store.Run `json:"data"`
}

// plansResponse is a CLIResponse with typed plan data.
type plansResponse struct {
	Status string      `json:"status"`
	Data   PlansResult `json:"data"`
}

// diffResponse is a CLIResponse with typed diff data.
type diffResponse struct {
	Status string     `json:"status"`
	Data   DiffResult `json:"data"`
}

// compileInto compiles dir and records the run in db.
func compileInto(t *testing.T, dir, db string) {
	t.Helper()
	_, err := execute(t, NewCompileCommand(testRootOptions("text")), dir, "--db", db)
	require.NoError(t, err)
}

// listRuns returns the runs recorded in db, oldest first.
func listRuns(t *testing.T, db string) []store.Run {
	t.Helper()
	out, err := execute(t, NewPlansCommand(testRootOptions("json")), "--db", db, "--runs")
	require.NoError(t, err)
	var resp runsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

func TestPlansNoDatabase(t *testing.T) {
	out, err := execute(t, NewPlansCommand(testRootOptions("text")))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNoInput+"]")
}

func TestPlansEmptyStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "plans.db")

	out, err := execute(t, NewPlansCommand(testRootOptions("text")), "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded\n", out)

	out, err = execute(t, NewPlansCommand(testRootOptions("json")), "--db", db)
	require.NoError(t, err)
	var resp plansResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Data.Plans)
}

func TestPlansLatestRun(t *testing.T) {
	dir := writeSpecs(t, nil)
	db := filepath.Join(t.TempDir(), "plans.db")
	compileInto(t, dir, db)

	out, err := execute(t, NewPlansCommand(testRootOptions("text")), "--db", db)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Run "))
	assert.True(t, strings.HasSuffix(lines[0], ": 3 plan(s)"))
	assert.True(t, strings.HasPrefix(lines[1], "  1 "))
	assert.True(t, strings.HasSuffix(lines[1], " CustomerOnly: o.Customer[to].Address"))
	assert.True(t, strings.HasSuffix(lines[3], " OrderDetails: o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 })[each].Product"))
}

func TestPlansByRunAndHash(t *testing.T) {
	dir := writeSpecs(t, nil)
	db := filepath.Join(t.TempDir(), "plans.db")
	compileInto(t, dir, db)
	compileInto(t, dir, db)

	runs := listRuns(t, db)
	require.Len(t, runs, 2)
	assert.NotEqual(t, runs[0].ID, runs[1].ID)

	out, err := execute(t, NewPlansCommand(testRootOptions("json")), "--db", db, runs[0].ID)
	require.NoError(t, err)
	var byRun plansResponse
	require.NoError(t, json.Unmarshal([]byte(out), &byRun))
	assert.Equal(t, runs[0].ID, byRun.Data.Run.ID)
	require.Len(t, byRun.Data.Plans, 3)

	hash := byRun.Data.Plans[0].PathHash
	out, err = execute(t, NewPlansCommand(testRootOptions("json")), "--db", db, "--hash", hash)
	require.NoError(t, err)
	var byHash plansResponse
	require.NoError(t, json.Unmarshal([]byte(out), &byHash))
	assert.Len(t, byHash.Data.Plans, 4, "the shared path in both specs of both runs")
	for _, p := range byHash.Data.Plans {
		assert.Equal(t, hash, p.PathHash)
	}
}

func TestPlansUnknownRun(t *testing.T) {
	dir := writeSpecs(t, nil)
	db := filepath.Join(t.TempDir(), "plans.db")
	compileInto(t, dir, db)

	out, err := execute(t, NewPlansCommand(testRootOptions("text")), "--db", db, "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeStoreFailed+"]")
}

// =============================================================================
// Diff
// =============================================================================

func TestPlansDiffUnchanged(t *testing.T) {
	dir := writeSpecs(t, nil)
	db := filepath.Join(t.TempDir(), "plans.db")
	compileInto(t, dir, db)
	compileInto(t, dir, db)
	runs := listRuns(t, db)

	out, err := execute(t, NewPlansCommand(testRootOptions("text")), "--db", db, "--diff", runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "OK No plan changes from "+runs[0].ID+" to "+runs[1].ID+"\n", out)
}

func TestPlansDiffChanged(t *testing.T) {
	dir := writeSpecs(t, nil)
	db := filepath.Join(t.TempDir(), "plans.db")
	compileInto(t, dir, db)

	// Drop the filter from OrderDetails and compile again.
	src, err := os.ReadFile(filepath.Join(dir, "shop.cue"))
	require.NoError(t, err)
	edited := strings.Replace(string(src), `o.LineItems.Where(func(li LineItem) bool { return li.Price > 100 })[each].Product`, `o.LineItems[each].Product`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.cue"), []byte(edited), 0o644))
	compileInto(t, dir, db)

	runs := listRuns(t, db)
	require.Len(t, runs, 2)

	out, err := execute(t, NewPlansCommand(testRootOptions("json")), "--db", db, runs[1].ID, "--diff", runs[0].ID)
	require.NoError(t, err)
	var resp diffResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Changes, 2)

	kinds := map[store.ChangeKind]string{}
	for _, c := range resp.Data.Changes {
		assert.Equal(t, "OrderDetails", c.Spec)
		kinds[c.Kind] = c.Source
	}
	assert.Equal(t, "o.LineItems[each].Product", kinds[store.ChangeAdded])
	assert.Contains(t, kinds[store.ChangeRemoved], ".Where(")

	text, err := execute(t, NewPlansCommand(testRootOptions("text")), "--db", db, "--diff", runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, text, "+ OrderDetails: o.LineItems[each].Product\n")
	assert.Contains(t, text, "- OrderDetails: o.LineItems.Where(")
}
