package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/udaykr117/jipctl/cluster"
)

func serve(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	NewServer(0).Routes().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestDashboardJobCounts(t *testing.T) {
	setupTestDB(t)
	a := mustCreateJob(t, &Job{})
	mustCreateJob(t, &Job{})
	UpdateJobState(a.ID, cluster.StateCompleted, "")

	var counts map[string]int
	decode(t, serve(t, "/api/jobs"), &counts)
	if len(counts) != len(cluster.States) {
		t.Errorf("expected every state to be reported, got %v", counts)
	}
	if counts["pending"] != 1 || counts["completed"] != 1 || counts["failed"] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDashboardJob(t *testing.T) {
	setupTestDB(t)
	job := mustCreateJob(t, &Job{Name: "index"})

	var got Job
	decode(t, serve(t, "/api/jobs/"+formatID(job.ID)), &got)
	if got.ID != job.ID || got.Name != "index" || got.UID != job.UID {
		t.Errorf("job = %+v", got)
	}

	if rec := serve(t, "/api/jobs/999"); rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d", rec.Code)
	}
	if rec := serve(t, "/api/jobs/abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
}

func TestDashboardStatsAndEvents(t *testing.T) {
	setupTestDB(t)
	fc := newFakeCluster("lsf")
	fc.submitErrs = []error{rejected("queue closed")}
	job := mustCreateJob(t, &Job{Name: "merge", MaxRetries: 2})
	if err := submitJob(context.Background(), fc, job, 0.001); err != nil {
		t.Fatalf("submitJob: %v", err)
	}

	var stats map[string]float64
	decode(t, serve(t, "/api/stats"), &stats)
	if stats["total_submitted"] != 1 || stats["total_rejected"] != 1 {
		t.Errorf("stats = %v", stats)
	}
	if stats["submit_success_rate"] != 50 {
		t.Errorf("success rate = %v", stats["submit_success_rate"])
	}

	var events []JobEvent
	decode(t, serve(t, "/api/events?limit=1"), &events)
	if len(events) != 1 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Name != "merge" || events[0].Cluster != "lsf" || !events[0].Success {
		t.Errorf("latest event = %+v", events[0])
	}

	decode(t, serve(t, "/api/events"), &events)
	if len(events) != 2 || events[1].Success || events[1].Error == "" {
		t.Errorf("events = %+v", events)
	}
}

func TestDashboardEmptyEvents(t *testing.T) {
	setupTestDB(t)
	rec := serve(t, "/api/events")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want empty list", body)
	}
}

func TestDashboardClusters(t *testing.T) {
	setupTestDB(t)
	t.Setenv("PATH", t.TempDir())
	writeClusterConfig(t, filepath.Join(dataDir, "cluster.yaml"), "bin_dir: "+fakeBinDir(t, "sge")+"\n")

	var infos []clusterInfo
	decode(t, serve(t, "/api/clusters"), &infos)
	if len(infos) != len(cluster.Backends()) {
		t.Fatalf("infos = %+v", infos)
	}
	// PBS needs a subset of the SGE tools.
	for _, info := range infos {
		if want := info.Name == "sge" || info.Name == "pbs"; info.Available != want {
			t.Errorf("%s available = %v, want %v (missing %v)", info.Name, info.Available, want, info.Missing)
		}
	}
}

func TestDashboardIndex(t *testing.T) {
	setupTestDB(t)
	rec := serve(t, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("content type = %q", ct)
	}
}
