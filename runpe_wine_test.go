//go:build !windows

package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// runpe_wine_test.go is the non-Windows fallback for the six end-to-end
// scenarios in spec.md §8: same isolated-temp-dir-and-run shape as
// flapc's test_helpers.go runFlapProgram, but shelling out to `wine`
// (skipping the test when it isn't on PATH) since the produced binary is
// a Windows PE, not a native ELF like flapc emits.

type PEResult struct {
	Stdout   string
	ExitCode uint32
}

// RunPE writes exeBytes to an isolated temp dir and runs it under wine,
// skipping the calling test when wine isn't available.
func RunPE(t *testing.T, exeBytes []byte) PEResult {
	t.Helper()

	winePath, err := exec.LookPath("wine")
	if err != nil {
		t.Skip("wine not found on PATH, skipping PE execution")
	}

	tmpDir, err := os.MkdirTemp("", "tylc_run_*")
	if err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	exePath := filepath.Join(tmpDir, "test.exe")
	if err := os.WriteFile(exePath, exeBytes, 0o755); err != nil {
		t.Fatalf("writing exe: %v", err)
	}

	cmd := exec.Command(winePath, exePath)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	exitCode := 0
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			t.Fatalf("running under wine: %v", err)
		}
	}

	return PEResult{Stdout: stdout.String(), ExitCode: uint32(exitCode)}
}
