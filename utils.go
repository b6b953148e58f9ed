package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidJSON    = errors.New("invalid JSON")
	ErrMissingCommand = errors.New("missing job command")
	ErrInvalidRange   = errors.New("invalid job id")
)

func GetDataDir() (string, error) {
	if envDir := os.Getenv("JIPCTL_DATA_DIR"); envDir != "" {
		return envDir, nil
	}
	execPath, err := os.Executable()
	if err != nil {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		return filepath.Join(wd, "data"), nil
	}
	execDir := filepath.Dir(execPath)
	return filepath.Join(execDir, "data"), nil
}

// jobJSON is the wire form accepted by `submit --json`. Memory and time
// take the same human forms as the command line flags.
type jobJSON struct {
	Name         string  `json:"name"`
	Command      string  `json:"command"`
	Cluster      string  `json:"cluster"`
	Queue        string  `json:"queue"`
	Threads      int     `json:"threads"`
	Memory       string  `json:"memory"`
	Time         string  `json:"time"`
	Account      string  `json:"account"`
	Priority     int     `json:"priority"`
	WorkDir      string  `json:"working_directory"`
	Stdout       string  `json:"stdout"`
	Stderr       string  `json:"stderr"`
	Dependencies []int64 `json:"dependencies"`
	Hold         bool    `json:"hold"`
	MaxRetries   int     `json:"max_retries"`
}

func ParseJobJSON(jsonStr string) (*Job, error) {
	var in jobJSON
	if err := json.Unmarshal([]byte(jsonStr), &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if in.Command == "" {
		return nil, ErrMissingCommand
	}
	mem, err := ParseMemory(in.Memory)
	if err != nil {
		return nil, err
	}
	maxTime, err := ParseMaxTime(in.Time)
	if err != nil {
		return nil, err
	}

	job := &Job{
		Name:         in.Name,
		Command:      in.Command,
		Cluster:      in.Cluster,
		Queue:        in.Queue,
		Threads:      in.Threads,
		MemoryMB:     mem,
		MaxTime:      maxTime,
		Account:      in.Account,
		Priority:     in.Priority,
		WorkDir:      in.WorkDir,
		Stdout:       in.Stdout,
		Stderr:       in.Stderr,
		Dependencies: in.Dependencies,
		Hold:         in.Hold,
		MaxRetries:   in.MaxRetries,
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = GetConfigInt("max-retries", 3)
	}
	return job, nil
}

const maxRangeSpan = 10000

// ResolveJobRange expands ids like "3", "5-8" or "9-7" into a sorted,
// duplicate-free list.
func ResolveJobRange(args []string) ([]int64, error) {
	seen := make(map[int64]bool)
	var ids []int64
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, arg := range args {
		for _, field := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			start, end, isRange := strings.Cut(field, "-")
			from, err := parseID(start)
			if err != nil {
				return nil, err
			}
			if !isRange {
				add(from)
				continue
			}
			to, err := parseID(end)
			if err != nil {
				return nil, err
			}
			if from > to {
				from, to = to, from
			}
			if to-from >= maxRangeSpan {
				return nil, fmt.Errorf("%w: %q spans more than %d ids", ErrInvalidRange, field, maxRangeSpan)
			}
			for id := from; ; id++ {
				add(id)
				if id == to {
					break
				}
			}
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q must be a positive number", ErrInvalidRange, s)
	}
	return id, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseMemory reads "512", "512M", "4G" or "1T" and returns megabytes.
// A bare number is megabytes.
func ParseMemory(s string) (int, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, nil
	}
	s = strings.TrimSuffix(s, "B")
	mult := 1
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = -1024, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		mult, s = 1024, strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		mult, s = 1024*1024, strings.TrimSuffix(s, "T")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid memory value %q", s)
	}
	if mult < 0 {
		return (n + 1023) / 1024, nil
	}
	return n * mult, nil
}

// ParseMaxTime reads a bare number of minutes, "H:MM", "H:MM:SS" or a Go
// duration ("1h30m") and returns whole minutes, rounded up.
func ParseMaxTime(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n, nil
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("invalid time value %q", s)
		}
		var secs int
		for _, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid time value %q", s)
			}
			secs = secs*60 + n
		}
		if len(parts) == 2 {
			secs *= 60
		}
		return (secs + 59) / 60, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid time value %q", s)
	}
	return int((d + time.Minute - 1) / time.Minute), nil
}
