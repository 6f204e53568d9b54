package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
database:
  driver: sqlite3
permissions:
  com.example.tracker:
    write: true
    read: [STEPS]
  com.example.viewer:
    read: [STEPS]
`

const testRecords = `
- type: STEPS
  start_time: 1700000000000
  end_time: 1700000060000
  count: 120
- type: STEPS
  start_time: 1700000060000
  end_time: 1700000120000
  count: 30
`

// cliHarness runs commands against one database and config.
type cliHarness struct {
	t      *testing.T
	config string
	db     string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "healthstore.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(testConfig), 0o600))
	return &cliHarness{t: t, config: cfg, db: filepath.Join(dir, "health.db")}
}

// run executes one command with JSON output and decodes the response.
func (h *cliHarness) run(stdin string, args ...string) (CLIResponse, error) {
	h.t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", h.config, "--db", h.db, "--format", "json"}, args...))

	err := cmd.Execute()
	var resp CLIResponse
	if out.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(out.Bytes(), &resp), out.String())
	}
	return resp, err
}

func TestCommands_UpsertReadAggregate(t *testing.T) {
	h := newCLIHarness(t)

	resp, err := h.run(testRecords, "upsert", "-", "--package", "com.example.tracker")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	results := resp.Data.([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "inserted", results[0].(map[string]any)["outcome"])

	resp, err = h.run("", "read", "STEPS", "--package", "com.example.viewer",
		"--start", "1700000000000", "--end", "1700000120000")
	require.NoError(t, err)
	recs := resp.Data.(map[string]any)["records"].([]any)
	require.Len(t, recs, 2)
	assert.Equal(t, float64(120), recs[0].(map[string]any)["count"])
	assert.Equal(t, "com.example.tracker", recs[0].(map[string]any)["package_name"])

	resp, err = h.run("", "aggregate", "--package", "com.example.viewer", "--type", "STEPS_COUNT_TOTAL",
		"--start", "1700000000000", "--end", "1700000120000")
	require.NoError(t, err)
	buckets := resp.Data.([]any)
	require.Len(t, buckets, 1)
	result := buckets[0].(map[string]any)["results"].(map[string]any)["STEPS_COUNT_TOTAL"].(map[string]any)
	assert.Equal(t, float64(150), result["value"])

	resp, err = h.run("", "access-logs")
	require.NoError(t, err)
	logs := resp.Data.([]any)
	require.Len(t, logs, 3, "tracker upsert, viewer read, viewer aggregate")
	var pkgs []any
	for _, l := range logs {
		pkgs = append(pkgs, l.(map[string]any)["package_name"])
	}
	assert.Equal(t, []any{"com.example.tracker", "com.example.viewer", "com.example.viewer"}, pkgs)
}

func TestCommands_Errors(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run("", "read", "STEPS")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--package is required")

	resp, err := h.run("", "read", "STEPS", "--package", "com.example.stranger",
		"--start", "0", "--end", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PERMISSION", resp.Error.Code)

	resp, err = h.run("- type: STEPS\n  start_time: 10\n  end_time: 5\n  count: 1\n",
		"upsert", "-", "--package", "com.example.tracker")
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION", resp.Error.Code)

	_, err = h.run("", "read", "STEPS", "--package", "com.example.viewer", "--start", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--start and --end must be given together")
}

func TestCommands_AggregateRejectsNonPositiveGrouping(t *testing.T) {
	h := newCLIHarness(t)

	for _, flag := range []string{"--days=-1", "--months=-2", "--every=-1h"} {
		resp, err := h.run("", "aggregate", "--package", "com.example.viewer", "--type", "STEPS_COUNT_TOTAL",
			"--start", "1700000000000", "--end", "1700000120000", flag)
		require.Error(t, err, flag)
		assert.Equal(t, ExitFailure, GetExitCode(err), flag)
		require.NotNil(t, resp.Error, flag)
		assert.Equal(t, "VALIDATION", resp.Error.Code, flag)
	}
}

func TestCommands_PriorityAndSweep(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run("", "priority", "set", "ACTIVITY", "com.example.tracker", "com.example.viewer")
	require.NoError(t, err)
	resp, err := h.run("", "priority", "get", "ACTIVITY")
	require.NoError(t, err)
	assert.Equal(t, []any{"com.example.tracker", "com.example.viewer"}, resp.Data)

	_, err = h.run(testRecords, "upsert", "-", "--package", "com.example.tracker")
	require.NoError(t, err)

	resp, err = h.run("", "sweep", "--before", "1700000100000")
	require.NoError(t, err)
	swept := resp.Data.(map[string]any)
	assert.Equal(t, map[string]any{"STEPS": float64(1)}, swept["records"])

	_, err = h.run("", "sweep")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cutoff")
}

func TestCommands_DataSource(t *testing.T) {
	h := newCLIHarness(t)

	resp, err := h.run("", "datasource", "create", "--package", "com.example.tracker",
		"--name", "Clinic", "--base-uri", "https://fhir.example.com/r4", "--fhir-version", "4.0.1")
	require.NoError(t, err)
	ds := resp.Data.(map[string]any)
	assert.Equal(t, "Clinic", ds["display_name"])
	assert.NotEmpty(t, ds["id"])

	resp, err = h.run("", "ds", "create", "--package", "com.example.tracker",
		"--name", "Clinic", "--base-uri", "https://fhir.example.com/r4")
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
}

func TestCommands_Apps(t *testing.T) {
	h := newCLIHarness(t)

	resp, err := h.run("", "apps", "register", "com.example.tracker", "--name", "Tracker")
	require.NoError(t, err)
	id := resp.Data.(map[string]any)["id"]

	resp, err = h.run("", "apps", "list")
	require.NoError(t, err)
	apps := resp.Data.([]any)
	require.Len(t, apps, 1)
	assert.Equal(t, "Tracker", apps[0].(map[string]any)["name"])

	resp, err = h.run("", "apps", "id", "com.example.tracker")
	require.NoError(t, err)
	assert.Equal(t, id, resp.Data.(map[string]any)["id"])

	resp, err = h.run("", "apps", "id", "com.example.unknown")
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}
