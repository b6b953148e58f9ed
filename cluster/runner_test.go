package cluster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
)

type call struct {
	name  string
	args  []string
	stdin string
}

type reply struct {
	stdout string
	stderr string
	err    error
}

// fakeRunner records every invocation and replays queued replies per command.
type fakeRunner struct {
	mu      sync.Mutex
	missing map[string]bool
	replies map[string][]reply
	calls   []call
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		missing: make(map[string]bool),
		replies: make(map[string][]reply),
	}
}

func (f *fakeRunner) on(name string, r reply) *fakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[name] = append(f.replies[name], r)
	return f
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[name] {
		return "", fmt.Errorf("%w: %s", ErrMissingTool, name)
	}
	return "/usr/bin/" + name, nil
}

func (f *fakeRunner) Run(ctx context.Context, stdin, name string, args ...string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args, stdin: stdin})
	queue := f.replies[name]
	if len(queue) == 0 {
		return "", "", fmt.Errorf("unexpected call to %s", name)
	}
	r := queue[0]
	f.replies[name] = queue[1:]
	return r.stdout, r.stderr, r.err
}

func (f *fakeRunner) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustGet(t *testing.T, name string, r Runner, cfg Config) Cluster {
	t.Helper()
	c, err := Get(name, WithRunner(r), WithConfig(cfg), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Get(%q): %v", name, err)
	}
	return c
}

func exitErr(cmd string) error {
	return &ExitError{Command: cmd, Code: 1}
}
