package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/udaykr117/jipctl/cluster"
)

var db *sql.DB

var ErrJobNotFound = errors.New("job not found")

func initDB(dataDir string) error {
	dbPath := filepath.Join(dataDir, "jobs.db")

	err := os.MkdirAll(dataDir, 0755)
	if err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err = sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=1&_busy_timeout=10000&_txlock=immediate")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			command TEXT NOT NULL,
			cluster TEXT NOT NULL DEFAULT '',
			remote_id TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			queue TEXT NOT NULL DEFAULT '',
			threads INTEGER NOT NULL DEFAULT 0,
			memory_mb INTEGER NOT NULL DEFAULT 0,
			max_time INTEGER NOT NULL DEFAULT 0,
			account TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 0,
			working_directory TEXT NOT NULL DEFAULT '',
			stdout TEXT NOT NULL DEFAULT '',
			stderr TEXT NOT NULL DEFAULT '',
			dependencies TEXT NOT NULL DEFAULT '',
			hold INTEGER NOT NULL DEFAULT 0,
			archived INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 3,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_state ON jobs(state);
		CREATE INDEX IF NOT EXISTS idx_remote ON jobs(cluster, remote_id);

		CREATE TABLE IF NOT EXISTS config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS metrics (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS job_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			cluster TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_events_job ON job_events(job_id);
		`
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

func CloseDB() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

func DB() *sql.DB {
	return db
}

const jobColumns = `id, uid, name, command, cluster, remote_id, state, queue, threads, memory_mb,
	max_time, account, priority, working_directory, stdout, stderr, dependencies, hold,
	archived, attempts, max_retries, last_error, created_at, updated_at`

func CreateJob(job *Job) error {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.UID == "" {
		job.UID = uuid.NewString()
	}
	if job.State == "" {
		job.State = cluster.StatePending
	}
	res, err := db.Exec(`
		INSERT INTO jobs (uid, name, command, cluster, remote_id, state, queue, threads, memory_mb,
			max_time, account, priority, working_directory, stdout, stderr, dependencies, hold,
			attempts, max_retries, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.UID,
		job.Name,
		job.Command,
		job.Cluster,
		job.RemoteID,
		string(job.State),
		job.Queue,
		job.Threads,
		job.MemoryMB,
		job.MaxTime,
		job.Account,
		job.Priority,
		job.WorkDir,
		job.Stdout,
		job.Stderr,
		joinIDs(job.Dependencies),
		boolInt(job.Hold),
		job.Attempts,
		job.MaxRetries,
		job.LastError,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	job.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read job id: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job                  Job
		state, deps          string
		hold, archived       int
		createdAt, updatedAt string
	)
	err := row.Scan(&job.ID, &job.UID, &job.Name, &job.Command, &job.Cluster, &job.RemoteID, &state,
		&job.Queue, &job.Threads, &job.MemoryMB, &job.MaxTime, &job.Account, &job.Priority,
		&job.WorkDir, &job.Stdout, &job.Stderr, &deps, &hold, &archived, &job.Attempts, &job.MaxRetries,
		&job.LastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.State = cluster.State(state)
	job.Hold = hold == 1
	job.Archived = archived == 1
	job.Dependencies, err = splitIDs(deps)
	if err != nil {
		return nil, fmt.Errorf("job %d has corrupt dependencies: %w", job.ID, err)
	}
	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &job, nil
}

func GetJobByID(id int64) (*Job, error) {
	row := db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func queryJobs(query string, args ...any) ([]*Job, error) {
	rows, err := db.Query("SELECT "+jobColumns+" FROM jobs "+query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListJobs returns jobs in id order, optionally filtered by state.
// Archived jobs are left out unless includeArchived is set.
func ListJobs(state cluster.State, includeArchived bool) ([]*Job, error) {
	var (
		where []string
		args  []any
	)
	if state != "" {
		where = append(where, "state = ?")
		args = append(args, string(state))
	}
	if !includeArchived {
		where = append(where, "archived = 0")
	}
	query := "ORDER BY id"
	if len(where) > 0 {
		query = "WHERE " + strings.Join(where, " AND ") + " " + query
	}
	return queryJobs(query, args...)
}

// GetActiveJobs returns submitted jobs the scheduler may still be working on.
func GetActiveJobs() ([]*Job, error) {
	return queryJobs(`WHERE remote_id != '' AND state IN (?, ?, ?) ORDER BY id`,
		string(cluster.StatePending), string(cluster.StateRunning), string(cluster.StateUnknown))
}

func GetJobCountsByState() (map[cluster.State]int, error) {
	rows, err := db.Query("SELECT state, COUNT(*) FROM jobs GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[cluster.State]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[cluster.State(state)] = n
	}
	return counts, rows.Err()
}

func UpdateJobState(id int64, state cluster.State, lastError string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.Exec("UPDATE jobs SET state = ?, last_error = ?, updated_at = ? WHERE id = ?",
		string(state), lastError, now, id)
	if err != nil {
		return fmt.Errorf("failed to update job state: %w", err)
	}
	return expectRow(res, id)
}

// AdvanceJobState stores a state reported by the scheduler unless it would
// move the job backwards. It reports whether the row changed.
func AdvanceJobState(id int64, next cluster.State) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRow("SELECT state FROM jobs WHERE id = ?", id).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("%w: %d", ErrJobNotFound, id)
		}
		return false, fmt.Errorf("failed to read job state: %w", err)
	}
	if current == string(next) || !cluster.State(current).CanAdvance(next) {
		return false, nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec("UPDATE jobs SET state = ?, updated_at = ? WHERE id = ?", string(next), now, id); err != nil {
		return false, fmt.Errorf("failed to update job state: %w", err)
	}
	return true, tx.Commit()
}

func SetRemoteID(id int64, clusterName, remoteID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.Exec("UPDATE jobs SET cluster = ?, remote_id = ?, state = ?, last_error = '', updated_at = ? WHERE id = ?",
		clusterName, remoteID, string(cluster.StatePending), now, id)
	if err != nil {
		return fmt.Errorf("failed to set remote id: %w", err)
	}
	return expectRow(res, id)
}

func IncrementJobAttempts(id int64) error {
	_, err := db.Exec("UPDATE jobs SET attempts = attempts + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}
	return nil
}

// ResetJob clears the remote side of a job so it can be submitted again.
func ResetJob(id int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.Exec(`UPDATE jobs SET remote_id = '', state = ?, attempts = 0, last_error = '', hold = 0, updated_at = ?
		WHERE id = ?`, string(cluster.StatePending), now, id)
	if err != nil {
		return fmt.Errorf("failed to reset job: %w", err)
	}
	return expectRow(res, id)
}

// SetJobLogs stores the log paths a job is submitted with.
func SetJobLogs(id int64, stdout, stderr string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.Exec("UPDATE jobs SET stdout = ?, stderr = ?, updated_at = ? WHERE id = ?", stdout, stderr, now, id)
	if err != nil {
		return fmt.Errorf("failed to set job logs: %w", err)
	}
	return expectRow(res, id)
}

// HoldJob detaches a job from the scheduler and keeps it stored until
// restart submits it again.
func HoldJob(id int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.Exec(`UPDATE jobs SET remote_id = '', state = ?, hold = 1, last_error = '', updated_at = ?
		WHERE id = ?`, string(cluster.StatePending), now, id)
	if err != nil {
		return fmt.Errorf("failed to hold job: %w", err)
	}
	return expectRow(res, id)
}

// ArchiveJob hides a job from the default listing.
func ArchiveJob(id int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.Exec("UPDATE jobs SET archived = 1, updated_at = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("failed to archive job: %w", err)
	}
	return expectRow(res, id)
}

func DeleteJob(id int64) error {
	res, err := db.Exec("DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return expectRow(res, id)
}

func expectRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
