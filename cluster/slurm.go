package cluster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

func init() {
	register("slurm", []string{"sbatch", "squeue", "sacct", "scancel"}, func(d *driver) Cluster {
		return &Slurm{driver: d}
	})
}

// Slurm submits through sbatch and tracks jobs with squeue, falling back
// to sacct once a job has left the queue.
type Slurm struct {
	*driver
}

func (s *Slurm) directives(spec Spec) []string {
	dirs := []string{"--job-name=" + jobName(spec)}
	if q := s.queue(spec); q != "" {
		dirs = append(dirs, "--partition="+q)
	}
	if spec.Threads > 0 {
		dirs = append(dirs, "--ntasks=1", fmt.Sprintf("--cpus-per-task=%d", spec.Threads))
	}
	if spec.MemoryMB > 0 {
		dirs = append(dirs, fmt.Sprintf("--mem=%dM", spec.MemoryMB))
	}
	if spec.MaxTime > 0 {
		dirs = append(dirs, fmt.Sprintf("--time=%d", minutes(spec.MaxTime)))
	}
	if spec.Account != "" {
		dirs = append(dirs, "--account="+spec.Account)
	}
	if spec.Priority != 0 {
		dirs = append(dirs, fmt.Sprintf("--nice=%d", spec.Priority))
	}
	if spec.WorkDir != "" {
		dirs = append(dirs, "--chdir="+spec.WorkDir)
	}
	out, errPath := s.LogPaths(spec)
	if out != "" {
		dirs = append(dirs, "--output="+out)
	}
	if errPath != "" {
		dirs = append(dirs, "--error="+errPath)
	}
	if len(spec.Dependencies) > 0 {
		dirs = append(dirs, "--dependency=afterok:"+joinHandles(spec.Dependencies, ":"))
	}
	if spec.Hold {
		dirs = append(dirs, "--hold")
	}
	return dirs
}

func (s *Slurm) LogPaths(spec Spec) (string, string) { return s.logPaths(spec, "%j") }

func (s *Slurm) Submit(ctx context.Context, spec Spec) (Handle, error) {
	script := s.script("#SBATCH", s.directives(spec), spec, false)
	return s.submit(ctx, spec, "sbatch", []string{"--parsable"}, script, parseSlurmID)
}

// parseSlurmID reads "<id>" or "<id>;<cluster>" as printed by sbatch --parsable.
func parseSlurmID(out string) (Handle, error) {
	line := firstLine(out)
	id, _, _ := strings.Cut(line, ";")
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", fmt.Errorf("unexpected sbatch output %q", line)
	}
	return Handle(id), nil
}

func (s *Slurm) Status(ctx context.Context, h Handle) (State, error) {
	if err := s.checkHandle("status", h); err != nil {
		return StateUnknown, err
	}
	stdout, stderr, err := s.run(ctx, "", "squeue", "-h", "-j", string(h), "-o", "%T")
	if err != nil && !strings.Contains(stderr, "Invalid job id") {
		return StateUnknown, s.controlError("status", err, stderr)
	}
	if line := firstLine(stdout); err == nil && line != "" {
		return slurmState(line), nil
	}

	stdout, stderr, err = s.run(ctx, "", "sacct", "-n", "-X", "-P", "-j", string(h), "-o", "State")
	if err != nil {
		return StateUnknown, s.controlError("status", err, stderr)
	}
	line := firstLine(stdout)
	if line == "" {
		return StateUnknown, nil
	}
	return slurmState(line), nil
}

func slurmState(raw string) State {
	// sacct prints e.g. "CANCELLED by 1000".
	code, _, _ := strings.Cut(strings.TrimSpace(raw), " ")
	switch strings.TrimSuffix(strings.ToUpper(code), "+") {
	case "PENDING", "CONFIGURING", "REQUEUED", "REQUEUE_HOLD", "REQUEUE_FED", "RESV_DEL_HOLD":
		return StatePending
	case "RUNNING", "COMPLETING", "SUSPENDED", "STOPPED", "SIGNALING", "STAGE_OUT", "RESIZING":
		return StateRunning
	case "COMPLETED":
		return StateCompleted
	case "CANCELLED", "REVOKED":
		return StateCancelled
	case "FAILED", "TIMEOUT", "OUT_OF_MEMORY", "NODE_FAIL", "BOOT_FAIL", "DEADLINE", "PREEMPTED", "SPECIAL_EXIT":
		return StateFailed
	}
	return StateUnknown
}

// slurmGone matches scancel errors for jobs that finished or were purged
// from the controller.
func slurmGone(stderr string) bool {
	return strings.Contains(stderr, "already completing or completed") ||
		strings.Contains(stderr, "Invalid job id")
}

func (s *Slurm) Cancel(ctx context.Context, h Handle) error {
	if err := s.checkHandle("cancel", h); err != nil {
		return err
	}
	_, stderr, err := s.run(ctx, "", "scancel", string(h))
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) && slurmGone(stderr) {
			return nil
		}
		return s.controlError("cancel", err, stderr)
	}
	return nil
}
