package main

import (
	"time"

	"github.com/udaykr117/jipctl/cluster"
)

type Job struct {
	ID           int64         `json:"id"`
	UID          string        `json:"uid"`
	Name         string        `json:"name"`
	Command      string        `json:"command"`
	Cluster      string        `json:"cluster"`
	RemoteID     string        `json:"remote_id"`
	State        cluster.State `json:"state"`
	Queue        string        `json:"queue"`
	Threads      int           `json:"threads"`
	MemoryMB     int           `json:"memory_mb"`
	MaxTime      int           `json:"max_time"` // minutes
	Account      string        `json:"account"`
	Priority     int           `json:"priority"`
	WorkDir      string        `json:"working_directory"`
	Stdout       string        `json:"stdout"`
	Stderr       string        `json:"stderr"`
	Dependencies []int64       `json:"dependencies"`
	Hold         bool          `json:"hold"`
	Archived     bool          `json:"archived"`
	Attempts     int           `json:"attempts"`
	MaxRetries   int           `json:"max_retries"`
	LastError    string        `json:"last_error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Active reports whether the scheduler may still be holding the job.
func (j *Job) Active() bool {
	return j.RemoteID != "" && !j.State.Terminal()
}

// Spec converts the stored job into a submission spec. Local dependency ids
// are resolved by the caller into remote handles.
func (j *Job) Spec(deps []cluster.Handle) cluster.Spec {
	return cluster.Spec{
		Name:         j.Name,
		Command:      j.Command,
		Queue:        j.Queue,
		Threads:      j.Threads,
		MemoryMB:     j.MemoryMB,
		MaxTime:      time.Duration(j.MaxTime) * time.Minute,
		Account:      j.Account,
		Priority:     j.Priority,
		WorkDir:      j.WorkDir,
		Stdout:       j.Stdout,
		Stderr:       j.Stderr,
		Dependencies: deps,
		Hold:         j.Hold,
		Env: map[string]string{
			"JIP_JOB_ID":  formatID(j.ID),
			"JIP_JOB_UID": j.UID,
		},
	}
}
