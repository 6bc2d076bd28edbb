package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surajsub/sapgui-step-dsl/models"
)

const caseYAML = `Case:
  Name: create_sales_order
  System: RQ2
  ExplicitWait: 0
  Steps: |
    start_transaction|VA01
    input_text|usr/ctxtKUAGV-KUNNR;Case.Data.customer
    set_variable|count:int;0
    start_while|count < 2
    update_var|count;+=1
    end_while
    enter
  Data:
    customer: ACME
`

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ROLE_ID", "role-from-env")
	t.Setenv("SECRET_ID", "secret-from-env")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	path := writeFile(t, "customers.yaml", `
customers:
  - name: acme
    task_queue: acme-queue
  - name: globex
vault:
  address: https://vault.example:8200
github:
  owner: qa
  repo: sap-cases
  labels: [sap, regression]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "default", cfg.Temporal.Namespace)
	assert.NotEmpty(t, cfg.Temporal.HostPort)
	assert.Equal(t, 4, cfg.Logging.LogVerbosity)
	assert.Equal(t, []CustomerConfig{
		{Name: "acme", TaskQueue: "acme-queue"},
		{Name: "globex", TaskQueue: "customer-task-queue-globex"},
	}, cfg.Customers)

	require.NotNil(t, cfg.Vault)
	assert.Equal(t, "role-from-env", cfg.Vault.RoleID)
	assert.Equal(t, "secret-from-env", cfg.Vault.SecretID)
	require.NotNil(t, cfg.GitHub)
	assert.Equal(t, "ghp_test", cfg.GitHub.Token)
	assert.Equal(t, []string{"sap", "regression"}, cfg.GitHub.Labels)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "bad.yaml", "customers: [\n"))
	assert.Error(t, err)
}

func TestDatabaseEnv(t *testing.T) {
	t.Setenv("POSTGRES_DB_USER", "sap")
	t.Setenv("POSTGRES_DB_PASSWORD", "pw")
	t.Setenv("POSTGRES_DB_NAME", "cases")

	env, err := databaseEnv()
	require.NoError(t, err)
	assert.Equal(t, dbEnv{user: "sap", password: "pw", name: "cases"}, env)

	os.Unsetenv("POSTGRES_DB_NAME")
	_, err = databaseEnv()
	assert.ErrorContains(t, err, "POSTGRES_DB_NAME")
}

func TestLoadCaseByExtension(t *testing.T) {
	c, err := loadCase(writeFile(t, "case.yaml", caseYAML))
	require.NoError(t, err)
	assert.Equal(t, "create_sales_order", c.Name)

	c, err = loadCase(writeFile(t, "case.JSON", `{"case_name":"json_case","steps":"enter\nsave"}`))
	require.NoError(t, err)
	assert.Equal(t, "json_case", c.Name)
	assert.Equal(t, []string{"enter", "save"}, c.StepLines)
}

func TestCompileFile(t *testing.T) {
	in := writeFile(t, "case.yaml", caseYAML)
	out := filepath.Join(t.TempDir(), "out", "steps.py")

	require.NoError(t, compileFile(in, out, false, true, quietLogger()))
	require.NoError(t, compileFile(in, out, true, true, quietLogger()))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(b, []byte("self.session.start_transaction('VA01')\n")))
	assert.Contains(t, string(b), "while count < 2:\n")
}

func TestCompileFileStrictError(t *testing.T) {
	in := writeFile(t, "case.yaml", "Case:\n  Steps: |\n    start_if|x > 1\n    enter\n")
	out := filepath.Join(t.TempDir(), "steps.py")

	assert.Error(t, compileFile(in, out, false, true, quietLogger()))
	assert.NoFileExists(t, out)
}

func TestDryRun(t *testing.T) {
	in := writeFile(t, "case.yaml", caseYAML)

	var buf bytes.Buffer
	require.NoError(t, dryRun(in, false, quietLogger(), &buf))

	var result models.ResultCase
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, models.PASS, result.Result)
	assert.Empty(t, result.FailedSteps)
	assert.NotEmpty(t, result.PassedSteps)
}
