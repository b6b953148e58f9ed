package cluster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes scheduler commands. Drivers never call os/exec directly.
type Runner interface {
	LookPath(name string) (string, error)
	// Run executes name with args, feeding stdin when non-empty.
	Run(ctx context.Context, stdin, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs scheduler binaries on the local host.
type ExecRunner struct {
	// BinDir is searched before PATH when set.
	BinDir string
}

func (r ExecRunner) LookPath(name string) (string, error) {
	if r.BinDir != "" {
		p := filepath.Join(r.BinDir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return p, nil
		}
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMissingTool, name)
	}
	return p, nil
}

func (r ExecRunner) Run(ctx context.Context, stdin, name string, args ...string) (string, string, error) {
	path, err := r.LookPath(name)
	if err != nil {
		return "", "", err
	}
	cmd := exec.CommandContext(ctx, path, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return stdout.String(), stderr.String(), fmt.Errorf("%s: %w", name, ctx.Err())
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return stdout.String(), stderr.String(), &ExitError{Command: name, Code: exitErr.ExitCode()}
		}
		return stdout.String(), stderr.String(), fmt.Errorf("failed to run %s: %w", name, err)
	}
	return stdout.String(), stderr.String(), nil
}

// ExitError reports a scheduler command that ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
}
