package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// getBinaryPath returns the path to the survey_agent binary for testing
func getBinaryPath(t *testing.T) string {
	binaryName := "survey_agent"
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath := filepath.Join("..", "..", "bin", binaryName)
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'go build -o bin/%s ./cmd/%s'", binaryPath, binaryName, binaryName)
	}

	return binaryPath
}

// scrubbedEnv returns the process environment without credential variables,
// so tests hit the unconfigured error paths regardless of the developer's
// shell. Extra entries are appended as-is.
func scrubbedEnv(extra ...string) []string {
	var env []string
	for _, kv := range os.Environ() {
		switch {
		case strings.HasPrefix(kv, "GEMINI_API_KEY="),
			strings.HasPrefix(kv, "SURVEY_API_KEY="),
			strings.HasPrefix(kv, "DATABASE_URL="),
			strings.HasPrefix(kv, "SURVEY_DATABASE_URL="):
			continue
		}
		env = append(env, kv)
	}
	return append(env, extra...)
}
