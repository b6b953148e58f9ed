package cluster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStateCanAdvance(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateRunning, true},
		{StatePending, StateCompleted, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateRunning, true},
		{StateRunning, StatePending, false},
		{StateCompleted, StateFailed, false},
		{StateCancelled, StateRunning, false},
		{StateRunning, StateUnknown, false},
		{StateUnknown, StateRunning, true},
		{StateUnknown, StatePending, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanAdvance(tt.to); got != tt.want {
			t.Errorf("%s.CanAdvance(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := map[State]bool{StateCompleted: true, StateFailed: true, StateCancelled: true}
	for _, s := range States {
		if s.Terminal() != terminal[s] {
			t.Errorf("%s.Terminal() = %v", s, s.Terminal())
		}
		if !s.Valid() {
			t.Errorf("%s.Valid() = false", s)
		}
	}
	if State("bogus").Valid() {
		t.Error("bogus state reported valid")
	}
}

func TestSpecValidate(t *testing.T) {
	bad := []Spec{
		{},
		{Command: "true", Threads: -1},
		{Command: "true", MemoryMB: -5},
		{Command: "true", MaxTime: -time.Second},
		{Command: "true", Dependencies: []Handle{""}},
	}
	for i, s := range bad {
		if err := s.Validate(); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("case %d: err = %v, want ErrInvalidSpec", i, err)
		}
	}
	if err := (Spec{Command: "true", Threads: 2}).Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestErrorMessages(t *testing.T) {
	se := &SubmissionError{Backend: "slurm", Output: "sbatch: error: invalid partition", Err: exitErr("sbatch")}
	if !strings.Contains(se.Error(), "invalid partition") || !IsSubmissionError(se) {
		t.Fatalf("unexpected submission error %q", se.Error())
	}
	var ee *ExitError
	if !errors.As(se, &ee) || ee.Command != "sbatch" {
		t.Fatal("submission error does not unwrap to ExitError")
	}

	ce := &ClusterImplementationError{Op: "get", Err: ErrUnknownBackend}
	if ce.Error() != "cluster get: unknown cluster backend" {
		t.Fatalf("Error() = %q", ce.Error())
	}
	if IsSubmissionError(ce) {
		t.Fatal("implementation error matched as submission error")
	}
}

func TestClock(t *testing.T) {
	tests := []struct {
		d       time.Duration
		seconds bool
		want    string
	}{
		{90 * time.Minute, true, "1:30:00"},
		{26*time.Hour + 5*time.Second, true, "26:00:05"},
		{1500 * time.Millisecond, true, "0:00:02"},
		{90 * time.Minute, false, "1:30"},
		{61 * time.Second, false, "0:02"},
	}
	for _, tt := range tests {
		if got := clock(tt.d, tt.seconds); got != tt.want {
			t.Errorf("clock(%s, %v) = %q, want %q", tt.d, tt.seconds, got, tt.want)
		}
	}
}

func TestJobName(t *testing.T) {
	tests := map[string]string{
		"":            "jip",
		"align reads": "align_reads",
		"42-step":     "j42-step",
		"ok.v1":       "ok.v1",
	}
	for in, want := range tests {
		if got := jobName(Spec{Name: in}); got != want {
			t.Errorf("jobName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScriptRendering(t *testing.T) {
	d := &driver{cfg: Config{Shell: "/bin/sh"}}
	spec := Spec{
		Command: "echo done",
		WorkDir: "/data/it's here",
		Env:     map[string]string{"B": "2", "A": "x y"},
	}
	got := d.script("#PBS", []string{"-N test"}, spec, true)
	want := "#!/bin/sh\n#PBS -N test\n\nexport A='x y'\nexport B='2'\ncd '/data/it'\\''s here'\necho done\n"
	if got != want {
		t.Fatalf("script =\n%s\nwant\n%s", got, want)
	}
}

func TestLogPaths(t *testing.T) {
	d := &driver{cfg: Config{LogDir: "/logs"}}
	out, errPath := d.logPaths(Spec{Name: "x"}, "%j")
	if out != "/logs/x-%j.out" || errPath != "/logs/x-%j.err" {
		t.Fatalf("logPaths = %q, %q", out, errPath)
	}
	out, _ = d.logPaths(Spec{Name: "x", Stdout: "/tmp/o"}, "%j")
	if out != "/tmp/o" {
		t.Fatalf("explicit stdout replaced: %q", out)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	data := "engine: sge\nbin_dir: /opt/sge/bin\nqueue: all.q\nextra_args: [\"-V\"]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine != "sge" || cfg.BinDir != "/opt/sge/bin" || cfg.Queue != "all.q" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.ExtraArgs) != 1 || cfg.ExtraArgs[0] != "-V" {
		t.Fatalf("ExtraArgs = %v", cfg.ExtraArgs)
	}
	if cfg.Shell != "/bin/bash" || cfg.ParallelEnv != "smp" || cfg.MemoryResource != "h_vmem" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExecRunnerBinDir(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "sbatch-test-tool")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	p, err := ExecRunner{BinDir: dir}.LookPath("sbatch-test-tool")
	if err != nil || p != tool {
		t.Fatalf("LookPath = %q, %v", p, err)
	}
	if _, err := (ExecRunner{BinDir: dir}).LookPath("definitely-not-a-scheduler"); !errors.Is(err, ErrMissingTool) {
		t.Fatalf("err = %v, want ErrMissingTool", err)
	}
}

func TestSubmitPriorityRange(t *testing.T) {
	tests := []struct {
		backend  string
		priority int
		ok       bool
	}{
		{"lsf", 0, true},
		{"lsf", 10, true},
		{"lsf", -5, false},
		{"sge", -1023, true},
		{"sge", 1024, true},
		{"sge", 1025, false},
		{"sge", -2000, false},
		{"pbs", -1024, true},
		{"pbs", 1023, true},
		{"pbs", 1024, false},
		{"slurm", -500, true},
	}
	replies := map[string]reply{
		"lsf":   {stdout: "Job <1> is submitted to queue <normal>.\n"},
		"sge":   {stdout: "1\n"},
		"pbs":   {stdout: "1.server\n"},
		"slurm": {stdout: "1\n"},
	}
	submitTool := map[string]string{"lsf": "bsub", "sge": "qsub", "pbs": "qsub", "slurm": "sbatch"}
	for _, tt := range tests {
		r := newFakeRunner().on(submitTool[tt.backend], replies[tt.backend])
		c := mustGet(t, tt.backend, r, Config{})
		_, err := c.Submit(context.Background(), Spec{Command: "true", Priority: tt.priority})
		if tt.ok {
			if err != nil {
				t.Errorf("%s priority %d: %v", tt.backend, tt.priority, err)
			}
			continue
		}
		if !IsSubmissionError(err) || !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("%s priority %d: err = %v, want invalid spec", tt.backend, tt.priority, err)
		}
		if len(r.calls) != 0 {
			t.Errorf("%s priority %d reached the scheduler", tt.backend, tt.priority)
		}
	}
}

func TestLogResolver(t *testing.T) {
	want := map[string]string{
		"slurm": "/logs/align-%j.out",
		"sge":   "/logs/align-$JOB_ID.out",
		"pbs":   "/logs/align.out",
		"lsf":   "/logs/align-%J.out",
	}
	for _, name := range Backends() {
		c := mustGet(t, name, newFakeRunner(), Config{LogDir: "/logs"})
		lr, ok := c.(LogResolver)
		if !ok {
			t.Fatalf("%s does not resolve log paths", name)
		}
		out, errPath := lr.LogPaths(Spec{Name: "align", Command: "true"})
		if out != want[name] {
			t.Errorf("%s stdout = %q, want %q", name, out, want[name])
		}
		if errPath != strings.TrimSuffix(want[name], ".out")+".err" {
			t.Errorf("%s stderr = %q", name, errPath)
		}
	}
}
