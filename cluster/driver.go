package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// driver carries what every backend shares: settings, runner and logger.
// Backends embed it and add their own directive and parsing rules.
type driver struct {
	name   string
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func (d *driver) Name() string { return d.name }

func (d *driver) run(ctx context.Context, stdin, tool string, args ...string) (string, string, error) {
	start := time.Now()
	stdout, stderr, err := d.runner.Run(ctx, stdin, tool, args...)
	d.logger.Debug("scheduler command",
		"cmd", tool,
		"args", args,
		"duration", time.Since(start),
		"error", err,
	)
	return stdout, stderr, err
}

// submit validates spec, pipes script into tool and parses the returned id.
func (d *driver) submit(ctx context.Context, spec Spec, tool string, args []string, script string, parse func(string) (Handle, error)) (Handle, error) {
	if err := spec.Validate(); err != nil {
		return "", &SubmissionError{Backend: d.name, Err: err}
	}
	args = append(append([]string(nil), args...), d.cfg.ExtraArgs...)
	stdout, stderr, err := d.run(ctx, script, tool, args...)
	if err != nil {
		if errors.Is(err, ErrMissingTool) {
			return "", &ClusterImplementationError{Backend: d.name, Op: "submit", Err: err}
		}
		return "", &SubmissionError{Backend: d.name, Output: combined(stdout, stderr), Err: err}
	}
	h, err := parse(stdout)
	if err != nil {
		return "", &SubmissionError{Backend: d.name, Output: combined(stdout, stderr), Err: err}
	}
	d.logger.Info("job submitted", "handle", string(h), "name", spec.Name)
	return h, nil
}

// checkPriority rejects a priority outside [lo, hi]. Zero leaves the
// scheduler default in place.
func (d *driver) checkPriority(spec Spec, lo, hi int) error {
	if spec.Priority == 0 || (spec.Priority >= lo && spec.Priority <= hi) {
		return nil
	}
	return &SubmissionError{
		Backend: d.name,
		Err:     fmt.Errorf("%w: priority %d outside %d..%d", ErrInvalidSpec, spec.Priority, lo, hi),
	}
}

func (d *driver) controlError(op string, err error, stderr string) error {
	if msg := strings.TrimSpace(stderr); msg != "" {
		err = fmt.Errorf("%w: %s", err, msg)
	}
	return &ClusterImplementationError{Backend: d.name, Op: op, Err: err}
}

func (d *driver) checkHandle(op string, h Handle) error {
	if strings.TrimSpace(string(h)) == "" {
		return &ClusterImplementationError{Backend: d.name, Op: op, Err: ErrEmptyHandle}
	}
	return nil
}

func (d *driver) queue(spec Spec) string {
	if spec.Queue != "" {
		return spec.Queue
	}
	return d.cfg.Queue
}

// logPaths returns the stdout and stderr paths of a job. When the job
// leaves them empty and a log dir is configured, files are named after the
// job with idToken expanded by the scheduler.
func (d *driver) logPaths(spec Spec, idToken string) (string, string) {
	out, errPath := spec.Stdout, spec.Stderr
	if d.cfg.LogDir == "" {
		return out, errPath
	}
	base := jobName(spec)
	if idToken != "" {
		base += "-" + idToken
	}
	if out == "" {
		out = filepath.Join(d.cfg.LogDir, base+".out")
	}
	if errPath == "" {
		errPath = filepath.Join(d.cfg.LogDir, base+".err")
	}
	return out, errPath
}

// script renders a batch script: shebang, directives, environment, body.
func (d *driver) script(prefix string, directives []string, spec Spec, cdInBody bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#!%s\n", d.cfg.Shell)
	for _, dir := range directives {
		fmt.Fprintf(&b, "%s %s\n", prefix, dir)
	}
	b.WriteString("\n")

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "export %s=%s\n", k, shellQuote(spec.Env[k]))
	}
	if cdInBody && spec.WorkDir != "" {
		fmt.Fprintf(&b, "cd %s\n", shellQuote(spec.WorkDir))
	}
	b.WriteString(spec.Command)
	b.WriteString("\n")
	return b.String()
}

func jobName(spec Spec) string {
	if spec.Name == "" {
		return "jip"
	}
	var b strings.Builder
	for _, r := range spec.Name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name[0] >= '0' && name[0] <= '9' {
		name = "j" + name
	}
	return name
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// clock formats d as H:MM:SS (or H:MM), rounding up to the next unit.
func clock(d time.Duration, seconds bool) string {
	if seconds {
		total := int64((d + time.Second - 1) / time.Second)
		return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
	}
	return fmt.Sprintf("%d:%02d", minutes(d)/60, minutes(d)%60)
}

func minutes(d time.Duration) int64 {
	return int64((d + time.Minute - 1) / time.Minute)
}

func joinHandles(hs []Handle, sep string) string {
	parts := make([]string, len(hs))
	for i, h := range hs {
		parts[i] = string(h)
	}
	return strings.Join(parts, sep)
}

func combined(stdout, stderr string) string {
	return strings.TrimSpace(strings.TrimSpace(stderr) + "\n" + strings.TrimSpace(stdout))
}

// firstLine returns the first non-empty trimmed line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
