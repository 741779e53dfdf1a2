// Package runner executes external tools and captures their output.
//
// The repository index tool and the PowerShell package manager are both
// driven through a [Runner], so tests can substitute a [Func] and assert
// on the exact command lines.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// Runner runs a command and returns its combined stdout and stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, name string, args ...string) ([]byte, error)

// Run implements Runner.
func (f Func) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

// Exec runs commands with os/exec.
type Exec struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

var _ Runner = Exec{}

// Run implements Runner. A non-zero exit returns an error carrying the
// command line; the output is returned either way.
func (e Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w", CommandLine(name, args...), err)
	}
	return out, nil
}

// CommandLine renders name and args for logs and error messages.
func CommandLine(name string, args ...string) string {
	parts := append([]string{name}, args...)
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\"'") {
			parts[i] = fmt.Sprintf("%q", p)
		}
	}
	return strings.Join(parts, " ")
}

// LogOutput writes each non-empty line of out to logger at info level.
func LogOutput(logger *log.Logger, tool string, out []byte) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); strings.TrimSpace(line) != "" {
			logger.Info(line, "tool", tool)
		}
	}
}
