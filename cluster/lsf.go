package cluster

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
)

func init() {
	register("lsf", []string{"bsub", "bjobs", "bkill"}, func(d *driver) Cluster {
		return &LSF{driver: d}
	})
}

// LSF drives IBM Spectrum LSF through bsub, bjobs and bkill.
type LSF struct {
	*driver
}

var lsfSubmitted = regexp.MustCompile(`Job <(\d+)> is submitted`)

func (l *LSF) directives(spec Spec) []string {
	dirs := []string{"-J " + jobName(spec)}
	if q := l.queue(spec); q != "" {
		dirs = append(dirs, "-q "+q)
	}
	if spec.Threads > 0 {
		dirs = append(dirs, fmt.Sprintf("-n %d", spec.Threads), `-R "span[hosts=1]"`)
	}
	if spec.MemoryMB > 0 {
		dirs = append(dirs,
			fmt.Sprintf("-M %d", spec.MemoryMB),
			fmt.Sprintf(`-R "rusage[mem=%d]"`, spec.MemoryMB),
		)
	}
	if spec.MaxTime > 0 {
		dirs = append(dirs, "-W "+clock(spec.MaxTime, false))
	}
	if spec.Account != "" {
		dirs = append(dirs, "-P "+spec.Account)
	}
	if spec.Priority != 0 {
		dirs = append(dirs, fmt.Sprintf("-sp %d", spec.Priority))
	}
	if spec.WorkDir != "" {
		dirs = append(dirs, "-cwd "+spec.WorkDir)
	}
	out, errPath := l.LogPaths(spec)
	if out != "" {
		dirs = append(dirs, "-o "+out)
	}
	if errPath != "" {
		dirs = append(dirs, "-e "+errPath)
	}
	if len(spec.Dependencies) > 0 {
		conds := make([]string, len(spec.Dependencies))
		for i, d := range spec.Dependencies {
			conds[i] = fmt.Sprintf("done(%s)", d)
		}
		dirs = append(dirs, fmt.Sprintf(`-w "%s"`, strings.Join(conds, " && ")))
	}
	if spec.Hold {
		dirs = append(dirs, "-H")
	}
	return dirs
}

func (l *LSF) LogPaths(spec Spec) (string, string) { return l.logPaths(spec, "%J") }

func (l *LSF) Submit(ctx context.Context, spec Spec) (Handle, error) {
	// bsub -sp only takes positive values up to MAX_USER_PRIORITY.
	if err := l.checkPriority(spec, 1, math.MaxInt32); err != nil {
		return "", err
	}
	script := l.script("#BSUB", l.directives(spec), spec, false)
	return l.submit(ctx, spec, "bsub", nil, script, parseLSFID)
}

func parseLSFID(out string) (Handle, error) {
	m := lsfSubmitted.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unexpected bsub output %q", firstLine(out))
	}
	return Handle(m[1]), nil
}

func (l *LSF) Status(ctx context.Context, h Handle) (State, error) {
	if err := l.checkHandle("status", h); err != nil {
		return StateUnknown, err
	}
	stdout, stderr, err := l.run(ctx, "", "bjobs", "-noheader", "-o", "stat", string(h))
	if strings.Contains(stdout+stderr, "is not found") {
		return StateUnknown, nil
	}
	if err != nil {
		return StateUnknown, l.controlError("status", err, stderr)
	}
	return lsfState(firstLine(stdout)), nil
}

func lsfState(code string) State {
	switch strings.ToUpper(code) {
	case "PEND", "PSUSP", "WAIT":
		return StatePending
	case "RUN", "USUSP", "SSUSP", "PROV":
		return StateRunning
	case "DONE":
		return StateCompleted
	case "EXIT":
		return StateFailed
	case "ZOMBI":
		return StateCancelled
	}
	return StateUnknown
}

// lsfGone matches bkill output for jobs that finished or that mbatchd has
// already cleaned out.
func lsfGone(out string) bool {
	return strings.Contains(out, "already finished") ||
		strings.Contains(out, "No matching job found") ||
		strings.Contains(out, "is not found")
}

func (l *LSF) Cancel(ctx context.Context, h Handle) error {
	if err := l.checkHandle("cancel", h); err != nil {
		return err
	}
	if stdout, stderr, err := l.run(ctx, "", "bkill", string(h)); err != nil {
		if lsfGone(stdout + stderr) {
			return nil
		}
		return l.controlError("cancel", err, stderr)
	}
	return nil
}
