// Package cluster submits jobs to batch schedulers behind a single interface.
//
// Drivers for Slurm, SGE, PBS/Torque and LSF are registered at init
// time. Callers resolve one with Get and then submit, query and cancel jobs:
//
//	c, err := cluster.Get("slurm")
//	if err != nil {
//		return err
//	}
//	h, err := c.Submit(ctx, cluster.Spec{Command: "make all", Threads: 4})
package cluster

import (
	"context"
	"fmt"
	"time"
)

// Cluster is implemented by every scheduler driver.
type Cluster interface {
	// Name returns the registered backend name.
	Name() string
	// Submit hands the job to the scheduler and returns its native id.
	Submit(ctx context.Context, spec Spec) (Handle, error)
	// Status reports the scheduler's view of a submitted job.
	Status(ctx context.Context, h Handle) (State, error)
	// Cancel removes a queued or running job from the scheduler.
	Cancel(ctx context.Context, h Handle) error
}

// LogResolver is implemented by drivers that name log files after the
// configured log dir. The returned paths may hold the scheduler's job id
// placeholder (%j, %J or $JOB_ID).
type LogResolver interface {
	LogPaths(spec Spec) (stdout, stderr string)
}

// Handle is the scheduler-native job id returned by Submit.
type Handle string

func (h Handle) String() string { return string(h) }

// Spec describes a job to submit. Drivers never modify it.
type Spec struct {
	Name     string
	Command  string
	Queue    string
	Threads  int
	MemoryMB int
	MaxTime  time.Duration
	Account  string
	Priority int
	WorkDir  string
	Stdout   string
	Stderr   string

	// Dependencies must complete successfully before the job may start.
	Dependencies []Handle
	// Hold submits the job in a held state.
	Hold bool
	Env  map[string]string
}

// Validate checks the parts of a spec every scheduler needs.
func (s Spec) Validate() error {
	if s.Command == "" {
		return fmt.Errorf("%w: missing command", ErrInvalidSpec)
	}
	if s.Threads < 0 {
		return fmt.Errorf("%w: negative thread count %d", ErrInvalidSpec, s.Threads)
	}
	if s.MemoryMB < 0 {
		return fmt.Errorf("%w: negative memory %d", ErrInvalidSpec, s.MemoryMB)
	}
	if s.MaxTime < 0 {
		return fmt.Errorf("%w: negative max time %s", ErrInvalidSpec, s.MaxTime)
	}
	for _, d := range s.Dependencies {
		if d == "" {
			return fmt.Errorf("%w: empty dependency handle", ErrInvalidSpec)
		}
	}
	return nil
}

// State is the common job lifecycle reported by all drivers.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateUnknown   State = "unknown"
)

// States lists every state in lifecycle order.
var States = []State{StatePending, StateRunning, StateCompleted, StateFailed, StateCancelled, StateUnknown}

// Terminal reports whether the job has finished one way or another.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	for _, v := range States {
		if s == v {
			return true
		}
	}
	return false
}

func (s State) rank() int {
	switch s {
	case StatePending:
		return 1
	case StateRunning:
		return 2
	case StateCompleted, StateFailed, StateCancelled:
		return 3
	}
	return 0
}

// CanAdvance reports whether a job recorded as s may move to next.
// Unknown never replaces a known state and terminal states are final.
func (s State) CanAdvance(next State) bool {
	if next == StateUnknown || s.Terminal() {
		return false
	}
	return next.rank() >= s.rank()
}
