package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/udaykr117/jipctl/cluster"
)

var (
	ErrDependencyNotReady = errors.New("dependency not submitted")
	ErrJobFinished        = errors.New("job already finished")
)

// clusterSet resolves each backend once per command invocation.
type clusterSet map[string]cluster.Cluster

func (cs clusterSet) get(name string) (cluster.Cluster, error) {
	if c, ok := cs[name]; ok {
		return c, nil
	}
	c, err := resolveCluster(name)
	if err != nil {
		return nil, err
	}
	cs[name] = c
	if name != c.Name() {
		cs[c.Name()] = c
	}
	return c, nil
}

// dependencyHandles maps local dependency ids to remote handles. Finished
// dependencies are dropped; failed ones make the job unsubmittable.
func dependencyHandles(job *Job, c cluster.Cluster) ([]cluster.Handle, error) {
	var handles []cluster.Handle
	for _, depID := range job.Dependencies {
		dep, err := GetJobByID(depID)
		if err != nil {
			return nil, fmt.Errorf("failed to load dependency: %w", err)
		}
		switch {
		case dep.State == cluster.StateCompleted:
			continue
		case dep.State.Terminal():
			return nil, fmt.Errorf("dependency %d is %s", dep.ID, dep.State)
		case dep.RemoteID == "":
			return nil, fmt.Errorf("%w: job %d", ErrDependencyNotReady, dep.ID)
		case dep.Cluster != c.Name():
			return nil, fmt.Errorf("dependency %d runs on %s, not %s", dep.ID, dep.Cluster, c.Name())
		}
		handles = append(handles, cluster.Handle(dep.RemoteID))
	}
	return handles, nil
}

// submitJob hands a stored job to the scheduler. Rejected submissions are
// retried with exponential backoff up to job.MaxRetries attempts; a backend
// that cannot be reached is reported at once.
func submitJob(ctx context.Context, c cluster.Cluster, job *Job, backoffBase float64) error {
	deps, err := dependencyHandles(job, c)
	if err != nil {
		return err
	}
	if err := storeLogPaths(c, job); err != nil {
		return err
	}
	spec := job.Spec(deps)

	attempts := job.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
retry:
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := IncrementJobAttempts(job.ID); err != nil {
			log.Printf("[submit] Error incrementing attempts for job %d: %v", job.ID, err)
		}
		start := time.Now()
		h, err := c.Submit(ctx, spec)
		if recErr := RecordJobEvent(job.ID, "submit", c.Name(), start, err); recErr != nil {
			log.Printf("[submit] %v", recErr)
		}
		if err == nil {
			IncrementMetric("jobs_submitted")
			if err := SetRemoteID(job.ID, c.Name(), string(h)); err != nil {
				return err
			}
			job.Cluster, job.RemoteID, job.State = c.Name(), string(h), cluster.StatePending
			return nil
		}
		lastErr = err

		if !cluster.IsSubmissionError(err) {
			IncrementMetric("cluster_errors")
			if uerr := UpdateJobState(job.ID, job.State, err.Error()); uerr != nil {
				log.Printf("[submit] Error saving last error for job %d: %v", job.ID, uerr)
			}
			return err
		}
		IncrementMetric("submissions_rejected")
		if errors.Is(err, cluster.ErrInvalidSpec) || attempt == attempts {
			break retry
		}

		delay := CalculateBackoffDelay(attempt, backoffBase)
		log.Printf("[submit] Job %d rejected, retrying in %v (attempt %d/%d): %v", job.ID, delay, attempt, attempts, err)
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		case <-time.After(delay):
		}
	}

	if err := UpdateJobState(job.ID, cluster.StateFailed, lastErr.Error()); err != nil {
		log.Printf("[submit] Error marking job %d failed: %v", job.ID, err)
	}
	job.State = cluster.StateFailed
	return lastErr
}

// storeLogPaths saves the log files the driver will pick for a job that
// names none, so `logs` and `clean` can find them later.
func storeLogPaths(c cluster.Cluster, job *Job) error {
	lr, ok := c.(cluster.LogResolver)
	if !ok || (job.Stdout != "" && job.Stderr != "") {
		return nil
	}
	out, errPath := lr.LogPaths(job.Spec(nil))
	if out == job.Stdout && errPath == job.Stderr {
		return nil
	}
	if err := SetJobLogs(job.ID, out, errPath); err != nil {
		return err
	}
	job.Stdout, job.Stderr = out, errPath
	return nil
}

// refreshJob asks the scheduler for the job's state and stores it if it
// moves the job forward.
func refreshJob(ctx context.Context, c cluster.Cluster, job *Job) (cluster.State, error) {
	start := time.Now()
	state, err := c.Status(ctx, cluster.Handle(job.RemoteID))
	if err != nil {
		IncrementMetric("cluster_errors")
		if recErr := RecordJobEvent(job.ID, "status", c.Name(), start, err); recErr != nil {
			log.Printf("[check] %v", recErr)
		}
		return job.State, err
	}
	changed, err := AdvanceJobState(job.ID, state)
	if err != nil {
		return job.State, err
	}
	if changed {
		log.Printf("[check] Job %d (%s) %s -> %s", job.ID, job.RemoteID, job.State, state)
		RecordJobEvent(job.ID, "status", c.Name(), start, nil)
		job.State = state
	}
	return job.State, nil
}

// cancelJob cancels an active job on the scheduler and marks it cancelled.
// Jobs that were never submitted are just marked.
func cancelJob(ctx context.Context, c cluster.Cluster, job *Job) error {
	if job.State.Terminal() {
		return nil
	}
	if job.RemoteID != "" {
		start := time.Now()
		err := c.Cancel(ctx, cluster.Handle(job.RemoteID))
		if recErr := RecordJobEvent(job.ID, "cancel", c.Name(), start, err); recErr != nil {
			log.Printf("[cancel] %v", recErr)
		}
		if err != nil {
			IncrementMetric("cluster_errors")
			return err
		}
	}
	IncrementMetric("jobs_cancelled")
	if err := UpdateJobState(job.ID, cluster.StateCancelled, ""); err != nil {
		return err
	}
	job.State = cluster.StateCancelled
	return nil
}

// holdJob takes a job off the scheduler and keeps it stored, on hold, until
// restart submits it again.
func holdJob(ctx context.Context, c cluster.Cluster, job *Job) error {
	if job.State.Terminal() {
		return fmt.Errorf("%w: job %d is %s", ErrJobFinished, job.ID, job.State)
	}
	if job.RemoteID != "" {
		start := time.Now()
		err := c.Cancel(ctx, cluster.Handle(job.RemoteID))
		if recErr := RecordJobEvent(job.ID, "hold", c.Name(), start, err); recErr != nil {
			log.Printf("[hold] %v", recErr)
		}
		if err != nil {
			IncrementMetric("cluster_errors")
			return err
		}
	}
	if err := HoldJob(job.ID); err != nil {
		return err
	}
	job.RemoteID, job.State, job.Hold = "", cluster.StatePending, true
	return nil
}

// CalculateBackoffDelay returns base^attempts seconds.
func CalculateBackoffDelay(attempts int, baseDelay float64) time.Duration {
	if attempts <= 0 {
		attempts = 1
	}
	delaySeconds := math.Pow(baseDelay, float64(attempts))
	return time.Duration(delaySeconds * float64(time.Second))
}
