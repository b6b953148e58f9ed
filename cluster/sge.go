package cluster

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

func init() {
	register("sge", []string{"qsub", "qstat", "qacct", "qdel"}, func(d *driver) Cluster {
		return &SGE{driver: d}
	})
}

// SGE drives Sun/Son of/Univa Grid Engine installations.
type SGE struct {
	*driver
}

func (s *SGE) directives(spec Spec) []string {
	dirs := []string{
		"-N " + jobName(spec),
		"-S " + s.cfg.Shell,
	}
	if q := s.queue(spec); q != "" {
		dirs = append(dirs, "-q "+q)
	}
	if spec.Threads > 0 {
		dirs = append(dirs, fmt.Sprintf("-pe %s %d", s.cfg.ParallelEnv, spec.Threads))
	}
	if spec.MemoryMB > 0 {
		// Grid Engine memory limits apply per slot.
		mem := spec.MemoryMB
		if spec.Threads > 1 {
			mem = (mem + spec.Threads - 1) / spec.Threads
		}
		dirs = append(dirs, fmt.Sprintf("-l %s=%dM", s.cfg.MemoryResource, mem))
	}
	if spec.MaxTime > 0 {
		dirs = append(dirs, "-l h_rt="+clock(spec.MaxTime, true))
	}
	if spec.Account != "" {
		dirs = append(dirs, "-A "+spec.Account)
	}
	if spec.Priority != 0 {
		dirs = append(dirs, fmt.Sprintf("-p %d", spec.Priority))
	}
	if spec.WorkDir != "" {
		dirs = append(dirs, "-wd "+spec.WorkDir)
	} else {
		dirs = append(dirs, "-cwd")
	}
	out, errPath := s.LogPaths(spec)
	if out != "" {
		dirs = append(dirs, "-o "+out)
	}
	if errPath != "" {
		dirs = append(dirs, "-e "+errPath)
	}
	if len(spec.Dependencies) > 0 {
		dirs = append(dirs, "-hold_jid "+joinHandles(spec.Dependencies, ","))
	}
	if spec.Hold {
		dirs = append(dirs, "-h")
	}
	return dirs
}

func (s *SGE) LogPaths(spec Spec) (string, string) { return s.logPaths(spec, "$JOB_ID") }

func (s *SGE) Submit(ctx context.Context, spec Spec) (Handle, error) {
	if err := s.checkPriority(spec, -1023, 1024); err != nil {
		return "", err
	}
	script := s.script("#$", s.directives(spec), spec, false)
	return s.submit(ctx, spec, "qsub", []string{"-terse"}, script, parseSGEID)
}

// parseSGEID reads qsub -terse output: "<id>" or "<id>.<task range>" for arrays.
func parseSGEID(out string) (Handle, error) {
	line := firstLine(out)
	id, _, _ := strings.Cut(line, ".")
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", fmt.Errorf("unexpected qsub output %q", line)
	}
	return Handle(id), nil
}

func (s *SGE) Status(ctx context.Context, h Handle) (State, error) {
	if err := s.checkHandle("status", h); err != nil {
		return StateUnknown, err
	}
	stdout, stderr, err := s.run(ctx, "", "qstat", "-u", "*")
	if err != nil {
		return StateUnknown, s.controlError("status", err, stderr)
	}
	if code, ok := findSGEJob(stdout, string(h)); ok {
		return sgeState(code), nil
	}

	stdout, stderr, err = s.run(ctx, "", "qacct", "-j", string(h))
	if err != nil {
		if strings.Contains(stderr, "not found") {
			return StateUnknown, nil
		}
		return StateUnknown, s.controlError("status", err, stderr)
	}
	return sgeAccounting(stdout), nil
}

// findSGEJob scans the qstat table for id and returns its state column.
func findSGEJob(table, id string) (string, bool) {
	for _, line := range strings.Split(table, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 5 && fields[0] == id {
			return fields[4], true
		}
	}
	return "", false
}

func sgeState(code string) State {
	switch {
	case strings.ContainsRune(code, 'E'):
		return StateFailed
	case strings.ContainsRune(code, 'd'):
		return StateCancelled
	case strings.ContainsAny(code, "rtsS"):
		return StateRunning
	case strings.ContainsAny(code, "qwh"):
		return StatePending
	}
	return StateUnknown
}

// sgeAccounting maps a finished job's qacct record to a final state.
func sgeAccounting(out string) State {
	failed, exit := -1, -1
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "failed":
			failed, _ = strconv.Atoi(fields[1])
		case "exit_status":
			exit, _ = strconv.Atoi(fields[1])
		}
	}
	switch {
	case failed < 0 && exit < 0:
		return StateUnknown
	case failed > 0 || exit > 0:
		// 137 is SIGKILL, which is what qdel sends to a running job.
		if exit == 137 {
			return StateCancelled
		}
		return StateFailed
	}
	return StateCompleted
}

func (s *SGE) Cancel(ctx context.Context, h Handle) error {
	if err := s.checkHandle("cancel", h); err != nil {
		return err
	}
	if stdout, stderr, err := s.run(ctx, "", "qdel", string(h)); err != nil {
		if strings.Contains(stdout+stderr, "does not exist") {
			return nil
		}
		return s.controlError("cancel", err, stderr)
	}
	return nil
}
