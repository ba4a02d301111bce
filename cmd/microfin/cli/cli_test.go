package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/microfin/jobs"
)

const classificationYAML = `version: "test-1"
buckets:
  principal: ["1131"]
  cgt: ["2030"]
polarity:
  loan_release: 1
  journal_voucher: -1
`

const savingsYAML = `steps:
  - upTo: "5000"
    weekly: "50"
  - upTo: "10000"
    weekly: "150"
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func noEnv(string) string { return "" }

func TestTablesValidateJSONSuccess(t *testing.T) {
	classPath := writeFile(t, "classification.yaml", classificationYAML)
	savingsPath := writeFile(t, "savings.yaml", savingsYAML)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := TablesValidateCommand(
		[]string{"--classification", classPath, "--savings", savingsPath, "--json"},
		Options{Stdout: stdout, Stderr: stderr, Getenv: noEnv},
	)
	require.Equal(t, 0, code, stderr.String())

	var summary TablesValidateSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.OK)
	require.Empty(t, summary.Errors)
	require.Equal(t, "test-1", summary.Classification.Version)
	require.Equal(t, 1, summary.Classification.Codes["principal"])
	require.Equal(t, 2, summary.Classification.Polarities)
	require.Equal(t, 2, summary.Savings.Steps)
	require.Equal(t, "10000", summary.Savings.Max)
}

func TestTablesValidateReportsInvalidTable(t *testing.T) {
	classPath := writeFile(t, "classification.yaml", "version: \"\"\nbuckets: {}\n")
	savingsPath := writeFile(t, "savings.yaml", savingsYAML)

	stdout := new(bytes.Buffer)
	code := TablesValidateCommand(
		[]string{"--classification", classPath, "--savings", savingsPath},
		Options{Stdout: stdout, Stderr: new(bytes.Buffer), Getenv: noEnv},
	)
	require.Equal(t, 10, code)
	require.Contains(t, stdout.String(), "problem(s) detected")
	require.Contains(t, stdout.String(), "Savings table")
}

func TestTablesValidateMissingFile(t *testing.T) {
	stdout := new(bytes.Buffer)
	code := TablesValidateCommand(
		[]string{"--classification", filepath.Join(t.TempDir(), "missing.yaml"), "--savings", filepath.Join(t.TempDir(), "missing.yaml"), "--json"},
		Options{Stdout: stdout, Stderr: new(bytes.Buffer), Getenv: noEnv},
	)
	require.Equal(t, 10, code)

	var summary TablesValidateSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Len(t, summary.Errors, 2)
}

func TestTablesValidateUsesEnvDefaults(t *testing.T) {
	classPath := writeFile(t, "classification.yaml", classificationYAML)
	savingsPath := writeFile(t, "savings.yaml", savingsYAML)
	env := map[string]string{
		"CLASSIFICATION_TABLE_PATH": classPath,
		"SAVINGS_TABLE_PATH":        savingsPath,
	}

	stdout := new(bytes.Buffer)
	code := TablesValidateCommand(nil, Options{
		Stdout: stdout,
		Stderr: new(bytes.Buffer),
		Getenv: func(k string) string { return env[k] },
	})
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "All tables are valid.")
}

func TestRunUnknownCommand(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := Run(context.Background(), []string{"ledger", "rebuild"}, Options{Stdout: new(bytes.Buffer), Stderr: stderr, Getenv: noEnv})
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "usage:")
}

func TestBuildTask(t *testing.T) {
	task, err := BuildTask(jobs.TaskLedgerIntegrity, 7)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskLedgerIntegrity, task.Type())

	var payload jobs.LedgerIntegrityPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, 7, payload.LookbackDays)

	_, err = BuildTask(jobs.TaskReleaseWorksheet, 0)
	require.Error(t, err)
}
