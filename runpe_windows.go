//go:build windows

package main

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// runpe_windows.go actually launches a produced PE and captures its exit
// code/stdout on a real Windows host, backing the six end-to-end scenarios
// in spec.md §8. Grounded on flapc's test_helpers.go runFlapProgram shape
// (write to an isolated temp dir, run with a captured pipe, report exit
// code), rebuilt on golang.org/x/sys/windows's CreateProcess family since
// os/exec has no portable way to capture a Windows exit code distinct from
// a Unix signal-derived one.

// PEResult mirrors flapc's FlapResult: the outcome of running one
// produced PE.
type PEResult struct {
	Stdout   string
	ExitCode uint32
}

// RunPE writes exeBytes to a temp file and executes it, returning its
// captured stdout and exit code.
func RunPE(exeBytes []byte) (PEResult, error) {
	tmpDir, err := os.MkdirTemp("", "tylc_run_*")
	if err != nil {
		return PEResult{}, err
	}
	defer os.RemoveAll(tmpDir)

	exePath := tmpDir + `\test.exe`
	if err := os.WriteFile(exePath, exeBytes, 0o755); err != nil {
		return PEResult{}, err
	}

	var stdoutRead, stdoutWrite windows.Handle
	sa := &windows.SecurityAttributes{Length: uint32(unsafeSizeofSA), InheritHandle: 1}
	if err := windows.CreatePipe(&stdoutRead, &stdoutWrite, sa, 0); err != nil {
		return PEResult{}, err
	}
	defer windows.CloseHandle(stdoutRead)

	si := &windows.StartupInfo{
		Cb:         uint32(unsafeSizeofSI),
		Flags:      windows.STARTF_USESTDHANDLES,
		StdOutput:  stdoutWrite,
		StdErr:     stdoutWrite,
		StdInput:   windows.Handle(syscall.Stdin),
	}
	pi := &windows.ProcessInformation{}

	exePathPtr, err := windows.UTF16PtrFromString(exePath)
	if err != nil {
		windows.CloseHandle(stdoutWrite)
		return PEResult{}, err
	}
	err = windows.CreateProcess(exePathPtr, nil, nil, nil, true,
		0, nil, nil, si, pi)
	windows.CloseHandle(stdoutWrite)
	if err != nil {
		return PEResult{}, err
	}
	defer windows.CloseHandle(pi.Thread)
	defer windows.CloseHandle(pi.Process)

	out := readAllHandle(stdoutRead)

	if _, err := windows.WaitForSingleObject(pi.Process, windows.INFINITE); err != nil {
		return PEResult{}, err
	}
	var exitCode uint32
	if err := windows.GetExitCodeProcess(pi.Process, &exitCode); err != nil {
		return PEResult{}, err
	}

	return PEResult{Stdout: out, ExitCode: exitCode}, nil
}

func readAllHandle(h windows.Handle) string {
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		var n uint32
		err := windows.ReadFile(h, chunk, &n, nil)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil || n == 0 {
			break
		}
	}
	return string(buf)
}

const (
	unsafeSizeofSA = 24 // sizeof(SECURITY_ATTRIBUTES) on amd64
	unsafeSizeofSI = 104 // sizeof(STARTUPINFO) on amd64
)
