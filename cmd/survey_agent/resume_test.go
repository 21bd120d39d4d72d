package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumeCommand_InvalidRunID(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "resume", "not-a-uuid", "--approve")
	cmd.Env = scrubbedEnv()
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "invalid run id")
}

func TestResumeCommand_RequiresDecision(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "resume", "0b37ab12-57de-4a22-a8a5-b21df2bb762c")
	cmd.Env = scrubbedEnv()
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "one of --approve, --reject, or --edit-file is required")
}

func TestResumeCommand_RejectsConflictingDecisions(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "resume", "0b37ab12-57de-4a22-a8a5-b21df2bb762c",
		"--approve", "--reject")
	cmd.Env = scrubbedEnv()
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "mutually exclusive")
}

func TestResumeCommand_EmptyEditFile(t *testing.T) {
	binaryPath := getBinaryPath(t)

	editFile := filepath.Join(t.TempDir(), "plan.txt")
	require.NoError(t, os.WriteFile(editFile, []byte("   \n"), 0644))

	cmd := exec.Command(binaryPath, "resume", "0b37ab12-57de-4a22-a8a5-b21df2bb762c",
		"--edit-file", editFile)
	cmd.Env = scrubbedEnv()
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "is empty")
}
