package main

import (
	"database/sql"
	"fmt"
	"time"
)

func IncrementMetric(key string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`
	INSERT INTO metrics (key, value, updated_at)
	VALUES (?, 1, ?)
	ON CONFLICT(key) DO UPDATE SET value = value + 1, updated_at = ?
	`, key, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to increment metric: %w", err)
	}
	return nil
}

func GetMetric(key string) (int64, error) {
	var value int64
	err := db.QueryRow("SELECT value FROM metrics WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get metric: %w", err)
	}
	return value, nil
}

func GetAllMetrics() (map[string]int64, error) {
	metrics := make(map[string]int64)
	rows, err := db.Query("SELECT key, value FROM metrics ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics[key] = value
	}
	return metrics, rows.Err()
}

// JobEvent is one scheduler interaction (submit, status, cancel) for a job.
type JobEvent struct {
	JobID      int64  `json:"job_id"`
	Name       string `json:"name"`
	Action     string `json:"action"`
	Cluster    string `json:"cluster"`
	State      string `json:"state"`
	StartedAt  string `json:"started_at"`
	DurationMs int64  `json:"duration_ms"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

func RecordJobEvent(jobID int64, action, clusterName string, startedAt time.Time, err error) error {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	durationMs := time.Since(startedAt).Milliseconds()

	_, dbErr := db.Exec(`
	INSERT INTO job_events (job_id, action, cluster, started_at, duration_ms, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`, jobID, action, clusterName, startedAt.UTC().Format(time.RFC3339), durationMs, boolInt(err == nil), errMsg)
	if dbErr != nil {
		return fmt.Errorf("failed to record job event: %w", dbErr)
	}
	return nil
}

func GetSubmissionStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	submitted, _ := GetMetric("jobs_submitted")
	rejected, _ := GetMetric("submissions_rejected")
	cancelled, _ := GetMetric("jobs_cancelled")
	unreachable, _ := GetMetric("cluster_errors")

	stats["total_submitted"] = submitted
	stats["total_rejected"] = rejected
	stats["total_cancelled"] = cancelled
	stats["cluster_errors"] = unreachable

	var successRate float64
	if attempts := submitted + rejected; attempts > 0 {
		successRate = float64(submitted) / float64(attempts) * 100
	}
	stats["submit_success_rate"] = successRate

	var avgDuration sql.NullFloat64
	err := db.QueryRow(`
		SELECT AVG(duration_ms) FROM job_events
		WHERE action = 'submit'
		AND started_at > strftime('%Y-%m-%dT%H:%M:%SZ', 'now', '-24 hours')
	`).Scan(&avgDuration)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get avg submit duration: %w", err)
	}
	if avgDuration.Valid {
		stats["avg_submit_ms"] = avgDuration.Float64
	} else {
		stats["avg_submit_ms"] = 0.0
	}

	var recentCount int64
	err = db.QueryRow(`
		SELECT COUNT(*) FROM job_events
		WHERE started_at > strftime('%Y-%m-%dT%H:%M:%SZ', 'now', '-24 hours')
	`).Scan(&recentCount)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get recent count: %w", err)
	}
	stats["recent_24h_events"] = recentCount

	return stats, nil
}

func GetRecentEvents(limit int) ([]JobEvent, error) {
	rows, err := db.Query(`
		SELECT e.job_id, COALESCE(j.name, ''), e.action, e.cluster, COALESCE(j.state, ''),
			e.started_at, e.duration_ms, e.success, e.error
		FROM job_events e
		LEFT JOIN jobs j ON e.job_id = j.id
		ORDER BY e.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent events: %w", err)
	}
	defer rows.Close()

	var events []JobEvent
	for rows.Next() {
		var ev JobEvent
		var success int
		if err := rows.Scan(&ev.JobID, &ev.Name, &ev.Action, &ev.Cluster, &ev.State,
			&ev.StartedAt, &ev.DurationMs, &success, &ev.Error); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Success = success == 1
		events = append(events, ev)
	}
	return events, rows.Err()
}
