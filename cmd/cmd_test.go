// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/flightcheck/internal/scenario"
)

func TestExitErrorWrapping(t *testing.T) {
	inner := errors.New("2 of 5 scenarios failed")
	err := &ExitError{Code: ExitScenarioErr, Err: inner}

	assert.Equal(t, inner.Error(), err.Error())
	assert.ErrorIs(t, err, inner)

	var exitErr *ExitError
	wrapped := fmt.Errorf("run: %w", err)
	require.True(t, errors.As(wrapped, &exitErr))
	assert.Equal(t, ExitScenarioErr, exitErr.Code)
}

func TestFirstEnvironmentFailure(t *testing.T) {
	results := []scenario.Result{
		{Scenario: "login_success", Status: scenario.StatusPassed},
		{Scenario: "job_search", Status: scenario.StatusFailed, Reason: "step 2 (click) failed"},
		{Scenario: "tracker", Status: scenario.StatusFailed, Reason: "session could not be created", Environment: true},
	}

	broken := firstEnvironmentFailure(results)
	require.NotNil(t, broken)
	assert.Equal(t, "tracker", broken.Scenario)

	// Plain scenario failures never escalate to the environment exit code.
	assert.Nil(t, firstEnvironmentFailure(results[:2]))
	assert.Nil(t, firstEnvironmentFailure(nil))
}

func TestLintCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "ok.yaml")
	require.NoError(t, os.WriteFile(good, []byte(
		"name: smoke\nsteps:\n  - navigate: /\nassert:\n  visible: text=Dashboard\n"), 0o644))

	cmd := newLintCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{good})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "ok: smoke (1 steps)")
}

func TestLintCommandRejectsBrokenScenario(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(
		"name: broken\nsteps:\n  - navigate: /\n"), 0o644))

	cmd := newLintCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{bad})

	err := cmd.Execute()
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitEnvErr, exitErr.Code)
	assert.Contains(t, err.Error(), "declares no assertion")
}
