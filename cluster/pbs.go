package cluster

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

func init() {
	register("pbs", []string{"qsub", "qstat", "qdel"}, func(d *driver) Cluster {
		return &PBS{driver: d}
	})
}

// PBS drives Torque and PBS Pro. Handles keep the server suffix
// ("4711.headnode") because both qstat and qdel accept it.
type PBS struct {
	*driver
}

func (p *PBS) directives(spec Spec) []string {
	dirs := []string{
		"-N " + jobName(spec),
		"-S " + p.cfg.Shell,
	}
	if q := p.queue(spec); q != "" {
		dirs = append(dirs, "-q "+q)
	}
	if spec.Threads > 0 {
		dirs = append(dirs, fmt.Sprintf("-l nodes=1:ppn=%d", spec.Threads))
	}
	if spec.MemoryMB > 0 {
		dirs = append(dirs, fmt.Sprintf("-l mem=%dmb", spec.MemoryMB))
	}
	if spec.MaxTime > 0 {
		dirs = append(dirs, "-l walltime="+clock(spec.MaxTime, true))
	}
	if spec.Account != "" {
		dirs = append(dirs, "-A "+spec.Account)
	}
	if spec.Priority != 0 {
		dirs = append(dirs, fmt.Sprintf("-p %d", spec.Priority))
	}
	out, errPath := p.LogPaths(spec)
	if out != "" {
		dirs = append(dirs, "-o "+out)
	}
	if errPath != "" {
		dirs = append(dirs, "-e "+errPath)
	}
	if len(spec.Dependencies) > 0 {
		dirs = append(dirs, "-W depend=afterok:"+joinHandles(spec.Dependencies, ":"))
	}
	if spec.Hold {
		dirs = append(dirs, "-h")
	}
	return dirs
}

// LogPaths leaves out the job id, which PBS does not expand inside -o/-e.
func (p *PBS) LogPaths(spec Spec) (string, string) { return p.logPaths(spec, "") }

func (p *PBS) Submit(ctx context.Context, spec Spec) (Handle, error) {
	if err := p.checkPriority(spec, -1024, 1023); err != nil {
		return "", err
	}
	script := p.script("#PBS", p.directives(spec), spec, true)
	return p.submit(ctx, spec, "qsub", nil, script, parsePBSID)
}

// parsePBSID reads "<seq>.<server>" (or a bare "<seq>") as printed by qsub.
func parsePBSID(out string) (Handle, error) {
	line := firstLine(out)
	seq, _, _ := strings.Cut(line, ".")
	seq = strings.TrimSuffix(seq, "[]")
	if _, err := strconv.ParseUint(seq, 10, 64); err != nil {
		return "", fmt.Errorf("unexpected qsub output %q", line)
	}
	return Handle(line), nil
}

func (p *PBS) Status(ctx context.Context, h Handle) (State, error) {
	if err := p.checkHandle("status", h); err != nil {
		return StateUnknown, err
	}
	stdout, stderr, err := p.run(ctx, "", "qstat", "-f", string(h))
	if err == nil {
		return pbsStatus(stdout), nil
	}
	if !pbsUnknownJob(stdout, stderr) {
		return StateUnknown, p.controlError("status", err, stderr)
	}

	// PBS Pro only lists finished jobs with -x.
	stdout, _, err = p.run(ctx, "", "qstat", "-x", "-f", string(h))
	if err != nil {
		return StateUnknown, nil
	}
	return pbsStatus(stdout), nil
}

func pbsUnknownJob(stdout, stderr string) bool {
	msg := strings.ToLower(stdout + stderr)
	return strings.Contains(msg, "unknown job id") || strings.Contains(msg, "job has finished")
}

// pbsStatus maps the job_state and exit status of a qstat -f record.
func pbsStatus(out string) State {
	state, exit, hasExit := "", 0, false
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "job_state":
			state = value
		case "exit_status":
			if n, err := strconv.Atoi(value); err == nil {
				exit, hasExit = n, true
			}
		}
	}

	switch state {
	case "Q", "H", "W", "T", "M":
		return StatePending
	case "R", "E", "S", "U", "B":
		return StateRunning
	case "C", "F", "X":
		switch {
		case !hasExit:
			// Jobs deleted before they started never get an exit status.
			return StateCancelled
		case exit == 0:
			return StateCompleted
		case exit == 271:
			return StateCancelled
		}
		return StateFailed
	}
	return StateUnknown
}

func (p *PBS) Cancel(ctx context.Context, h Handle) error {
	if err := p.checkHandle("cancel", h); err != nil {
		return err
	}
	if stdout, stderr, err := p.run(ctx, "", "qdel", string(h)); err != nil {
		if pbsUnknownJob(stdout, stderr) {
			return nil
		}
		return p.controlError("cancel", err, stderr)
	}
	return nil
}
