package cluster

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestPBSSubmit(t *testing.T) {
	r := newFakeRunner().on("qsub", reply{stdout: "812.headnode\n"})
	c := mustGet(t, "torque", r, Config{})

	h, err := c.Submit(context.Background(), Spec{
		Name:         "call variants",
		Command:      "gatk HaplotypeCaller",
		Queue:        "batch",
		Threads:      2,
		MemoryMB:     1024,
		MaxTime:      30 * time.Minute,
		Account:      "proj1",
		WorkDir:      "/work",
		Dependencies: []Handle{"810.headnode", "811.headnode"},
		Hold:         true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if h != "812.headnode" {
		t.Fatalf("handle = %q", h)
	}
	got := r.last()
	if len(got.args) != 0 {
		t.Fatalf("args = %v", got.args)
	}
	for _, line := range []string{
		"#PBS -N call_variants",
		"#PBS -q batch",
		"#PBS -l nodes=1:ppn=2",
		"#PBS -l mem=1024mb",
		"#PBS -l walltime=0:30:00",
		"#PBS -A proj1",
		"#PBS -W depend=afterok:810.headnode:811.headnode",
		"#PBS -h",
		"cd '/work'",
		"gatk HaplotypeCaller",
	} {
		if !strings.Contains(got.stdin, line+"\n") {
			t.Errorf("script missing %q:\n%s", line, got.stdin)
		}
	}
}

func TestParsePBSID(t *testing.T) {
	for in, want := range map[string]Handle{
		"812.headnode\n":   "812.headnode",
		"813\n":            "813",
		"814[].headnode\n": "814[].headnode",
	} {
		h, err := parsePBSID(in)
		if err != nil || h != want {
			t.Errorf("parsePBSID(%q) = %q, %v", in, h, err)
		}
	}
	if _, err := parsePBSID("qsub: Unknown queue\n"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPBSStatus(t *testing.T) {
	record := func(state, exit string) string {
		s := "Job Id: 812.headnode\n    Job_Name = x\n    job_state = " + state + "\n"
		if exit != "" {
			s += "    exit_status = " + exit + "\n"
		}
		return s
	}
	tests := []struct {
		out  string
		want State
	}{
		{record("Q", ""), StatePending},
		{record("H", ""), StatePending},
		{record("R", ""), StateRunning},
		{record("C", "0"), StateCompleted},
		{record("C", "2"), StateFailed},
		{record("C", "-11"), StateFailed},
		{record("C", "271"), StateCancelled},
		{record("C", ""), StateCancelled},
		{"Job Id: 9\n    job_state = F\n    Exit_status = 0\n", StateCompleted},
	}
	for _, tt := range tests {
		r := newFakeRunner().on("qstat", reply{stdout: tt.out})
		c := mustGet(t, "pbs", r, Config{})
		st, err := c.Status(context.Background(), "812.headnode")
		if err != nil {
			t.Fatal(err)
		}
		if st != tt.want {
			t.Errorf("record %q: state = %s, want %s", tt.out, st, tt.want)
		}
	}
}

func TestPBSStatusFinishedHistory(t *testing.T) {
	r := newFakeRunner().
		on("qstat", reply{stderr: "qstat: Unknown Job Id 900.pbs", err: exitErr("qstat")}).
		on("qstat", reply{stdout: "Job Id: 900.pbs\n    job_state = F\n    Exit_status = 1\n"})
	c := mustGet(t, "pbs", r, Config{})

	st, err := c.Status(context.Background(), "900.pbs")
	if err != nil || st != StateFailed {
		t.Fatalf("Status = %s, %v", st, err)
	}
	if got := r.last().args; !reflect.DeepEqual(got, []string{"-x", "-f", "900.pbs"}) {
		t.Fatalf("history args = %v", got)
	}
}

func TestPBSStatusPurged(t *testing.T) {
	r := newFakeRunner().
		on("qstat", reply{stderr: "qstat: Unknown Job Id 900.torque", err: exitErr("qstat")}).
		on("qstat", reply{stderr: "qstat: invalid option -- 'x'", err: exitErr("qstat")})
	c := mustGet(t, "pbs", r, Config{})

	st, err := c.Status(context.Background(), "900.torque")
	if err != nil || st != StateUnknown {
		t.Fatalf("Status = %s, %v", st, err)
	}
}

func TestPBSStatusServerDown(t *testing.T) {
	r := newFakeRunner().on("qstat", reply{
		stderr: "Connection refused\nqstat: cannot connect to server headnode (errno=111)",
		err:    exitErr("qstat"),
	})
	c := mustGet(t, "pbs", r, Config{})

	if _, err := c.Status(context.Background(), "1.headnode"); !IsImplementationError(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestPBSCancel(t *testing.T) {
	r := newFakeRunner().
		on("qdel", reply{}).
		on("qdel", reply{stderr: "qdel: Unknown Job Id 3.headnode", err: exitErr("qdel")}).
		on("qdel", reply{stderr: "qdel: cannot connect to server", err: exitErr("qdel")})
	c := mustGet(t, "pbs", r, Config{})

	if err := c.Cancel(context.Background(), "1.headnode"); err != nil {
		t.Fatal(err)
	}
	if err := c.Cancel(context.Background(), "3.headnode"); err != nil {
		t.Fatal(err)
	}
	if err := c.Cancel(context.Background(), "4.headnode"); !IsImplementationError(err) {
		t.Fatalf("err = %v", err)
	}
}
