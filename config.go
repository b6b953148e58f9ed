package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/udaykr117/jipctl/cluster"
)

// Known configuration keys and the validation applied by `config set`.
var configValidators = map[string]func(string) error{
	"cluster": func(v string) error {
		_, err := cluster.Tools(v)
		return err
	},
	"cluster-config": func(v string) error {
		_, err := os.Stat(v)
		return err
	},
	"max-retries": func(v string) error {
		_, err := strconv.Atoi(v)
		return err
	},
	"backoff-base": func(v string) error {
		_, err := parseFloat(v)
		return err
	},
	"poll-interval": func(v string) error {
		_, err := time.ParseDuration(v)
		return err
	},
}

func GetConfig(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("config key not found: %s", key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get config: %w", err)
	}
	return value, nil
}

func SetConfig(key, value string) error {
	if validate, ok := configValidators[key]; ok {
		if err := validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	_, err := db.Exec(`
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set config: %w", err)
	}
	return nil
}

func GetAllConfig() (map[string]string, error) {
	rows, err := db.Query("SELECT key, value FROM config ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	defer rows.Close()

	config := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		config[key] = value
	}
	return config, rows.Err()
}

func GetConfigInt(key string, def int) int {
	value, err := GetConfig(key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

func GetConfigFloat(key string, def float64) float64 {
	value, err := GetConfig(key)
	if err != nil {
		return def
	}
	f, err := parseFloat(value)
	if err != nil {
		return def
	}
	return f
}

func GetConfigDuration(key string, def time.Duration) time.Duration {
	value, err := GetConfig(key)
	if err != nil {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// clusterConfigPath picks the YAML cluster config: JIPCTL_CLUSTER_CONFIG,
// then the cluster-config key, then <data dir>/cluster.yaml if present.
func clusterConfigPath() string {
	if p := os.Getenv("JIPCTL_CLUSTER_CONFIG"); p != "" {
		return p
	}
	if p, err := GetConfig("cluster-config"); err == nil {
		return p
	}
	p := filepath.Join(dataDir, "cluster.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

func loadClusterConfig() (cluster.Config, error) {
	path := clusterConfigPath()
	if path == "" {
		return cluster.Config{}, nil
	}
	cfg, err := cluster.LoadConfigFile(path)
	if err != nil {
		return cluster.Config{}, err
	}
	return *cfg, nil
}

// resolveCluster returns the backend for name, falling back to the
// configured engine. The YAML engine loses to the cluster config key.
var resolveCluster = func(name string) (cluster.Cluster, error) {
	cfg, err := loadClusterConfig()
	if err != nil {
		return nil, err
	}
	if name == "" {
		if v, err := GetConfig("cluster"); err == nil {
			name = v
		}
	}
	return cluster.Get(name, cluster.WithConfig(cfg), cluster.WithLogger(logger))
}
