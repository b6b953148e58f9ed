package main

import (
	"errors"
	"slices"
	"testing"

	"github.com/udaykr117/jipctl/cluster"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	dataDir = t.TempDir()
	t.Setenv("JIPCTL_CLUSTER_CONFIG", "")
	if err := initDB(dataDir); err != nil {
		t.Fatalf("initDB: %v", err)
	}
	t.Cleanup(func() { CloseDB() })
}

func mustCreateJob(t *testing.T, job *Job) *Job {
	t.Helper()
	if job.Command == "" {
		job.Command = "echo hello"
	}
	if err := CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func TestCreateAndGetJob(t *testing.T) {
	setupTestDB(t)

	job := mustCreateJob(t, &Job{
		Name:         "align",
		Command:      "bwa mem ref.fa reads.fq",
		Queue:        "long",
		Threads:      4,
		MemoryMB:     8192,
		MaxTime:      90,
		Dependencies: []int64{7, 3},
		Hold:         true,
		MaxRetries:   2,
	})
	if job.ID == 0 {
		t.Fatal("expected job id to be set")
	}
	if job.UID == "" {
		t.Fatal("expected job uid to be set")
	}

	got, err := GetJobByID(job.ID)
	if err != nil {
		t.Fatalf("GetJobByID: %v", err)
	}
	if got.Name != "align" || got.Command != job.Command || got.Queue != "long" {
		t.Errorf("unexpected job: %+v", got)
	}
	if got.Threads != 4 || got.MemoryMB != 8192 || got.MaxTime != 90 || got.MaxRetries != 2 {
		t.Errorf("resources not stored: %+v", got)
	}
	if got.State != cluster.StatePending {
		t.Errorf("state = %s, want pending", got.State)
	}
	if !got.Hold {
		t.Error("hold flag lost")
	}
	if !slices.Equal(got.Dependencies, []int64{7, 3}) {
		t.Errorf("dependencies = %v", got.Dependencies)
	}
	if got.UID != job.UID {
		t.Errorf("uid = %s, want %s", got.UID, job.UID)
	}
}

func TestGetJobByIDNotFound(t *testing.T) {
	setupTestDB(t)

	_, err := GetJobByID(42)
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := DeleteJob(42); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound from DeleteJob, got %v", err)
	}
}

func TestAdvanceJobState(t *testing.T) {
	setupTestDB(t)
	job := mustCreateJob(t, &Job{})

	steps := []struct {
		next    cluster.State
		changed bool
		want    cluster.State
	}{
		{cluster.StatePending, false, cluster.StatePending},
		{cluster.StateUnknown, false, cluster.StatePending},
		{cluster.StateRunning, true, cluster.StateRunning},
		{cluster.StatePending, false, cluster.StateRunning},
		{cluster.StateCompleted, true, cluster.StateCompleted},
		{cluster.StateRunning, false, cluster.StateCompleted},
		{cluster.StateFailed, false, cluster.StateCompleted},
	}
	for _, step := range steps {
		changed, err := AdvanceJobState(job.ID, step.next)
		if err != nil {
			t.Fatalf("AdvanceJobState(%s): %v", step.next, err)
		}
		if changed != step.changed {
			t.Errorf("AdvanceJobState(%s) changed = %v, want %v", step.next, changed, step.changed)
		}
		got, _ := GetJobByID(job.ID)
		if got.State != step.want {
			t.Errorf("after %s state = %s, want %s", step.next, got.State, step.want)
		}
	}

	if _, err := AdvanceJobState(999, cluster.StateRunning); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestGetActiveJobs(t *testing.T) {
	setupTestDB(t)

	stored := mustCreateJob(t, &Job{})
	queued := mustCreateJob(t, &Job{})
	running := mustCreateJob(t, &Job{})
	done := mustCreateJob(t, &Job{})

	for _, j := range []*Job{queued, running, done} {
		if err := SetRemoteID(j.ID, "slurm", formatID(100+j.ID)); err != nil {
			t.Fatalf("SetRemoteID: %v", err)
		}
	}
	AdvanceJobState(running.ID, cluster.StateRunning)
	AdvanceJobState(done.ID, cluster.StateCompleted)

	active, err := GetActiveJobs()
	if err != nil {
		t.Fatalf("GetActiveJobs: %v", err)
	}
	var ids []int64
	for _, j := range active {
		ids = append(ids, j.ID)
	}
	if !slices.Equal(ids, []int64{queued.ID, running.ID}) {
		t.Errorf("active ids = %v, want [%d %d] (stored job %d must be skipped)", ids, queued.ID, running.ID, stored.ID)
	}
	if active[0].Cluster != "slurm" || active[0].RemoteID != formatID(100+queued.ID) {
		t.Errorf("remote side not stored: %+v", active[0])
	}
}

func TestJobCountsAndFilters(t *testing.T) {
	setupTestDB(t)

	a := mustCreateJob(t, &Job{})
	mustCreateJob(t, &Job{})
	if err := UpdateJobState(a.ID, cluster.StateFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobState: %v", err)
	}

	counts, err := GetJobCountsByState()
	if err != nil {
		t.Fatalf("GetJobCountsByState: %v", err)
	}
	if counts[cluster.StatePending] != 1 || counts[cluster.StateFailed] != 1 {
		t.Errorf("counts = %v", counts)
	}

	failed, err := ListJobs(cluster.StateFailed, false)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != a.ID || failed[0].LastError != "boom" {
		t.Errorf("failed jobs = %+v", failed)
	}

	all, _ := ListJobs("", false)
	if len(all) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(all))
	}
}

func TestArchiveJob(t *testing.T) {
	setupTestDB(t)

	a := mustCreateJob(t, &Job{Name: "old"})
	b := mustCreateJob(t, &Job{Name: "new"})
	UpdateJobState(a.ID, cluster.StateCompleted, "")
	if err := ArchiveJob(a.ID); err != nil {
		t.Fatalf("ArchiveJob: %v", err)
	}
	if err := ArchiveJob(999); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("archive missing job: %v", err)
	}

	visible, _ := ListJobs("", false)
	if len(visible) != 1 || visible[0].ID != b.ID {
		t.Errorf("visible jobs = %+v", visible)
	}
	if done, _ := ListJobs(cluster.StateCompleted, false); len(done) != 0 {
		t.Errorf("archived job listed by state: %+v", done)
	}
	all, _ := ListJobs("", true)
	if len(all) != 2 || !all[0].Archived || all[1].Archived {
		t.Errorf("all jobs = %+v", all)
	}
}

func TestHoldAndSetJobLogs(t *testing.T) {
	setupTestDB(t)

	job := mustCreateJob(t, &Job{})
	SetRemoteID(job.ID, "sge", "77")
	UpdateJobState(job.ID, cluster.StateRunning, "")
	if err := SetJobLogs(job.ID, "/logs/x-$JOB_ID.out", "/logs/x-$JOB_ID.err"); err != nil {
		t.Fatalf("SetJobLogs: %v", err)
	}
	if err := HoldJob(job.ID); err != nil {
		t.Fatalf("HoldJob: %v", err)
	}

	got, _ := GetJobByID(job.ID)
	if !got.Hold || got.RemoteID != "" || got.State != cluster.StatePending {
		t.Errorf("held job = %+v", got)
	}
	if got.Stdout != "/logs/x-$JOB_ID.out" || got.Stderr != "/logs/x-$JOB_ID.err" {
		t.Errorf("logs = %q %q", got.Stdout, got.Stderr)
	}
	if active, _ := GetActiveJobs(); len(active) != 0 {
		t.Errorf("held job still active: %+v", active)
	}
	if err := HoldJob(999); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("hold missing job: %v", err)
	}
}

func TestResetAndDeleteJob(t *testing.T) {
	setupTestDB(t)

	job := mustCreateJob(t, &Job{Hold: true})
	SetRemoteID(job.ID, "lsf", "4242")
	IncrementJobAttempts(job.ID)
	UpdateJobState(job.ID, cluster.StateFailed, "exit 1")

	if err := ResetJob(job.ID); err != nil {
		t.Fatalf("ResetJob: %v", err)
	}
	got, _ := GetJobByID(job.ID)
	if got.RemoteID != "" || got.Attempts != 0 || got.LastError != "" || got.Hold {
		t.Errorf("job not reset: %+v", got)
	}
	if got.State != cluster.StatePending {
		t.Errorf("state = %s, want pending", got.State)
	}
	if got.Cluster != "lsf" {
		t.Errorf("cluster = %q, reset must keep it", got.Cluster)
	}

	if err := DeleteJob(job.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := GetJobByID(job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected job to be gone, got %v", err)
	}
}

func TestSplitIDs(t *testing.T) {
	ids, err := splitIDs(joinIDs([]int64{1, 20, 300}))
	if err != nil || !slices.Equal(ids, []int64{1, 20, 300}) {
		t.Errorf("splitIDs = %v, %v", ids, err)
	}
	if ids, err := splitIDs(""); err != nil || ids != nil {
		t.Errorf("empty splitIDs = %v, %v", ids, err)
	}
	if _, err := splitIDs("1,x"); err == nil {
		t.Error("expected error for corrupt ids")
	}
}
