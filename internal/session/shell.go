package session

import (
	"os"
	"os/exec"
	"runtime"

	"github.com/google/shlex"
)

// DefaultShell returns the argv of the shell to spawn when a session is
// created without an explicit command. On Windows the order is pwsh on
// PATH, then Windows PowerShell, then COMSPEC, then cmd.exe; elsewhere
// $SHELL, then /bin/sh.
func DefaultShell() []string {
	if runtime.GOOS == "windows" {
		if path, err := exec.LookPath("pwsh.exe"); err == nil {
			return []string{path}
		}
		if path, err := exec.LookPath("powershell.exe"); err == nil {
			return []string{path}
		}
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return []string{comspec}
		}
		return []string{"cmd.exe"}
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return []string{shell}
	}
	return []string{"/bin/sh"}
}

// splitCommand turns a command string into argv, falling back to the
// default shell when the string is empty or unparseable.
func splitCommand(command string) []string {
	if command == "" {
		return DefaultShell()
	}
	argv, err := shlex.Split(command)
	if err != nil || len(argv) == 0 {
		return DefaultShell()
	}
	return argv
}

// sessionEnv builds the child environment the way the pseudo-console
// expects it.
func sessionEnv() []string {
	return append(os.Environ(), "TERM=xterm-256color")
}
