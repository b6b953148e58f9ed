package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/udaykr117/jipctl/cluster"
)

var (
	dataDir  string
	logLevel string
	logger   = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
)

var rootCmd = &cobra.Command{
	Use:   "jipctl",
	Short: "Submit and track jobs on Slurm, SGE, PBS and LSF clusters",
	Long: `jipctl keeps a local job database and submits its jobs to a batch
scheduler. The scheduler is chosen with --cluster, the "cluster" config key
or the engine of the cluster config file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(logLevel)
		var err error
		dataDir, err = GetDataDir()
		if err != nil {
			log.Fatalf("Failed to get data directory: %v", err)
		}
		if err := initDB(dataDir); err != nil {
			log.Fatalf("Failed to initialize DB: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		CloseDB()
	},
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// exitOnError reports cluster failures by kind and exits with status 1.
func exitOnError(what string, err error) {
	switch {
	case cluster.IsImplementationError(err):
		log.Fatalf("Cluster error: %v", err)
	case cluster.IsSubmissionError(err):
		log.Fatalf("Submission error: %v", err)
	default:
		log.Fatalf("Failed to %s: %v", what, err)
	}
}

func resolveIDs(args []string) []int64 {
	ids, err := ResolveJobRange(args)
	if err != nil {
		log.Fatalf("Invalid job ids: %v", err)
	}
	return ids
}

var submitCmd = &cobra.Command{
	Use:   "submit [flags] [-- command...]",
	Short: "Store a job and submit it to the cluster",
	Long: `Store a job in the job database and submit it to the cluster.

The job is given either as a command after the flags or as JSON with --json:

  jipctl submit -t 4 -m 8G -T 2:00 -- bwa mem ref.fa reads.fq
  jipctl submit --json '{"name":"sort","command":"sort big.txt","memory":"2G"}'`,
	Run: func(cmd *cobra.Command, args []string) {
		job, err := jobFromFlags(cmd, args)
		if err != nil {
			log.Fatalf("Invalid job: %v", err)
		}
		c, err := resolveCluster(job.Cluster)
		if err != nil {
			exitOnError("resolve cluster", err)
		}
		job.Cluster = c.Name()
		if err := CreateJob(job); err != nil {
			log.Fatalf("Failed to store job: %v", err)
		}
		if job.Hold {
			fmt.Printf("Job %d stored but not submitted\n", job.ID)
			return
		}

		backoffBase := GetConfigFloat("backoff-base", 2.0)
		if err := submitJob(cmd.Context(), c, job, backoffBase); err != nil {
			exitOnError("submit job", err)
		}
		fmt.Printf("Submitted %d with remote id %s\n", job.ID, job.RemoteID)
	},
}

func jobFromFlags(cmd *cobra.Command, args []string) (*Job, error) {
	flags := cmd.Flags()
	if raw, _ := flags.GetString("json"); raw != "" {
		if len(args) > 0 {
			return nil, errors.New("give either --json or a command, not both")
		}
		job, err := ParseJobJSON(raw)
		if err != nil {
			return nil, err
		}
		if name, _ := flags.GetString("cluster"); name != "" {
			job.Cluster = name
		}
		if job.WorkDir, err = absWorkDir(job.WorkDir); err != nil {
			return nil, err
		}
		return job, nil
	}
	if len(args) == 0 {
		return nil, ErrMissingCommand
	}

	job := &Job{Command: strings.Join(args, " ")}
	job.Name, _ = flags.GetString("name")
	job.Cluster, _ = flags.GetString("cluster")
	job.Queue, _ = flags.GetString("queue")
	job.Threads, _ = flags.GetInt("threads")
	job.Account, _ = flags.GetString("account")
	job.Priority, _ = flags.GetInt("priority")
	job.Stdout, _ = flags.GetString("out")
	job.Stderr, _ = flags.GetString("err")
	job.Hold, _ = flags.GetBool("hold")
	job.MaxRetries, _ = flags.GetInt("retries")

	mem, _ := flags.GetString("mem")
	var err error
	if job.MemoryMB, err = ParseMemory(mem); err != nil {
		return nil, err
	}
	maxTime, _ := flags.GetString("time")
	if job.MaxTime, err = ParseMaxTime(maxTime); err != nil {
		return nil, err
	}
	dir, _ := flags.GetString("dir")
	if job.WorkDir, err = absWorkDir(dir); err != nil {
		return nil, err
	}
	after, _ := flags.GetStringSlice("after")
	if job.Dependencies, err = ResolveJobRange(after); err != nil {
		return nil, err
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = GetConfigInt("max-retries", 3)
	}
	return job, nil
}

// absWorkDir makes dir absolute, defaulting to the current directory.
func absWorkDir(dir string) (string, error) {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return filepath.Abs(dir)
}

var checkCmd = &cobra.Command{
	Use:   "check [job-ids...]",
	Short: "Refresh job states from the cluster",
	Long:  `Ask the cluster for the state of the given jobs, or of all active jobs when no ids are given.`,
	Run: func(cmd *cobra.Command, args []string) {
		var jobs []*Job
		if len(args) == 0 {
			var err error
			if jobs, err = GetActiveJobs(); err != nil {
				log.Fatalf("Failed to get active jobs: %v", err)
			}
		} else {
			for _, id := range resolveIDs(args) {
				job, err := GetJobByID(id)
				if err != nil {
					log.Fatalf("Failed to get job: %v", err)
				}
				jobs = append(jobs, job)
			}
		}

		clusters := make(clusterSet)
		failed := 0
		for _, job := range jobs {
			if !job.Active() {
				fmt.Printf("%-8d %s\n", job.ID, job.State)
				continue
			}
			c, err := clusters.get(job.Cluster)
			if err != nil {
				exitOnError("resolve cluster", err)
			}
			state, err := refreshJob(cmd.Context(), c, job)
			if err != nil {
				log.Printf("Job %d: %v", job.ID, err)
				failed++
				continue
			}
			fmt.Printf("%-8d %s\n", job.ID, state)
		}
		if failed > 0 {
			os.Exit(1)
		}
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel job-ids...",
	Short: "Cancel queued and running jobs",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		clusters := make(clusterSet)
		for _, id := range resolveIDs(args) {
			job, err := GetJobByID(id)
			if err != nil {
				log.Fatalf("Failed to get job: %v", err)
			}
			if job.State.Terminal() {
				fmt.Printf("Job %d is already %s\n", job.ID, job.State)
				continue
			}
			var c cluster.Cluster
			if job.RemoteID != "" {
				if c, err = clusters.get(job.Cluster); err != nil {
					exitOnError("resolve cluster", err)
				}
			}
			if err := cancelJob(cmd.Context(), c, job); err != nil {
				exitOnError("cancel job", err)
			}
			fmt.Printf("Job %d cancelled\n", job.ID)
		}
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete job-ids...",
	Short: "Cancel active jobs and remove them from the database",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		clusters := make(clusterSet)
		for _, id := range resolveIDs(args) {
			job, err := GetJobByID(id)
			if err != nil {
				log.Fatalf("Failed to get job: %v", err)
			}
			if job.Active() {
				c, err := clusters.get(job.Cluster)
				if err != nil {
					exitOnError("resolve cluster", err)
				}
				if err := cancelJob(cmd.Context(), c, job); err != nil {
					exitOnError("cancel job", err)
				}
			}
			if err := DeleteJob(job.ID); err != nil {
				log.Fatalf("Failed to delete job: %v", err)
			}
			fmt.Printf("Job %d deleted\n", job.ID)
		}
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart job-ids...",
	Short: "Resubmit failed, cancelled or held jobs",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		clusters := make(clusterSet)
		backoffBase := GetConfigFloat("backoff-base", 2.0)
		for _, id := range resolveIDs(args) {
			job, err := GetJobByID(id)
			if err != nil {
				log.Fatalf("Failed to get job: %v", err)
			}
			if job.Active() {
				fmt.Printf("Job %d is still %s on %s, cancel it first\n", job.ID, job.State, job.Cluster)
				continue
			}
			c, err := clusters.get(job.Cluster)
			if err != nil {
				exitOnError("resolve cluster", err)
			}
			if err := ResetJob(job.ID); err != nil {
				log.Fatalf("Failed to reset job: %v", err)
			}
			job.RemoteID, job.State, job.Hold = "", cluster.StatePending, false
			if err := submitJob(cmd.Context(), c, job, backoffBase); err != nil {
				exitOnError("submit job", err)
			}
			fmt.Printf("Submitted %d with remote id %s\n", job.ID, job.RemoteID)
		}
	},
}

var holdCmd = &cobra.Command{
	Use:   "hold job-ids...",
	Short: "Take jobs off the cluster and keep them stored until restart",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		clusters := make(clusterSet)
		for _, id := range resolveIDs(args) {
			job, err := GetJobByID(id)
			if err != nil {
				log.Fatalf("Failed to get job: %v", err)
			}
			var c cluster.Cluster
			if job.Active() {
				if c, err = clusters.get(job.Cluster); err != nil {
					exitOnError("resolve cluster", err)
				}
			}
			if err := holdJob(cmd.Context(), c, job); err != nil {
				if errors.Is(err, ErrJobFinished) {
					fmt.Printf("Job %d is already %s\n", job.ID, job.State)
					continue
				}
				exitOnError("hold job", err)
			}
			fmt.Printf("Job %d on hold\n", job.ID)
		}
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive job-ids...",
	Short: "Hide finished jobs from the job list",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, id := range resolveIDs(args) {
			job, err := GetJobByID(id)
			if err != nil {
				log.Fatalf("Failed to get job: %v", err)
			}
			if job.Active() {
				fmt.Printf("Job %d is still %s on %s, skipping\n", job.ID, job.State, job.Cluster)
				continue
			}
			if err := ArchiveJob(job.ID); err != nil {
				log.Fatalf("Failed to archive job: %v", err)
			}
			fmt.Printf("Job %d archived\n", job.ID)
		}
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean job-ids...",
	Short: "Remove the log files of finished jobs",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, id := range resolveIDs(args) {
			job, err := GetJobByID(id)
			if err != nil {
				log.Fatalf("Failed to get job: %v", err)
			}
			if job.Active() {
				fmt.Printf("Job %d is still %s on %s, skipping\n", job.ID, job.State, job.Cluster)
				continue
			}
			removed, err := cleanJobLogs(job)
			if err != nil {
				log.Fatalf("Failed to clean job %d: %v", job.ID, err)
			}
			for _, p := range removed {
				fmt.Printf("Removed %s\n", p)
			}
		}
	},
}

// cleanJobLogs deletes the stdout and stderr files of a job. Files that are
// already gone are skipped.
func cleanJobLogs(job *Job) ([]string, error) {
	var removed []string
	for _, p := range []string{logPath(job, false), logPath(job, true)} {
		if p == "" || slices.Contains(removed, p) {
			continue
		}
		if err := os.Remove(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, err
		}
		removed = append(removed, p)
	}
	return removed, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show summary of all job states & active watchers",
	Run: func(cmd *cobra.Command, args []string) {
		counts, err := GetJobCountsByState()
		if err != nil {
			log.Fatalf("Failed to get job counts: %v", err)
		}

		fmt.Println("Job Status")
		fmt.Println("==========")
		for _, state := range cluster.States {
			fmt.Printf("%-11s %d\n", strings.ToUpper(string(state[:1]))+string(state[1:])+":", counts[state])
		}
		fmt.Println()
		fmt.Printf("Active Watchers: %d\n", activeWatchers())
	},
}

// activeWatchers reads the watch PID file and checks the process is alive.
func activeWatchers() int {
	pidBytes, err := os.ReadFile(filepath.Join(dataDir, "watch.pid"))
	if err != nil {
		return 0
	}
	lines := strings.Split(strings.TrimSpace(string(pidBytes)), "\n")
	pid, err := strconv.Atoi(lines[0])
	if err != nil {
		return 0
	}
	process, err := os.FindProcess(pid)
	if err != nil || process.Signal(syscall.Signal(0)) != nil {
		return 0
	}
	if len(lines) < 2 {
		return 1
	}
	n, err := strconv.Atoi(lines[1])
	if err != nil {
		return 1
	}
	return n
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"jobs"},
	Short:   "List jobs by state",
	Run: func(cmd *cobra.Command, args []string) {
		stateFlag, err := cmd.Flags().GetString("state")
		if err != nil {
			log.Fatalf("Failed to get state flag: %v", err)
		}

		var state cluster.State
		if stateFlag != "" {
			state = cluster.State(strings.ToLower(stateFlag))
			if !state.Valid() {
				log.Fatalf("Invalid state: %s. Valid states are: pending, running, completed, failed, cancelled, unknown", stateFlag)
			}
		}
		all, _ := cmd.Flags().GetBool("all")
		jobs, err := ListJobs(state, all)
		if err != nil {
			log.Fatalf("Failed to get jobs: %v", err)
		}

		if len(jobs) == 0 {
			fmt.Println("No jobs found")
			return
		}

		fmt.Printf("%-6s %-20s %-10s %-8s %-12s %-10s %-25s\n", "ID", "NAME", "STATE", "CLUSTER", "REMOTE_ID", "ATTEMPTS", "CREATED_AT")
		fmt.Println(strings.Repeat("-", 96))
		for _, job := range jobs {
			fmt.Printf("%-6d %-20s %-10s %-8s %-12s %-10d %-25s\n",
				job.ID,
				truncate(job.Name, 20),
				string(job.State),
				job.Cluster,
				job.RemoteID,
				job.Attempts,
				job.CreatedAt.Format(time.RFC3339),
			)
		}
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

var showCmd = &cobra.Command{
	Use:   "show job-id",
	Short: "Show details of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ids := resolveIDs(args)
		job, err := GetJobByID(ids[0])
		if err != nil {
			log.Fatalf("Failed to get job: %v", err)
		}

		fmt.Println("Job Details")
		fmt.Println(strings.Repeat("=", 80))
		fmt.Printf("%-20s %d\n", "ID:", job.ID)
		fmt.Printf("%-20s %s\n", "UID:", job.UID)
		fmt.Printf("%-20s %s\n", "Name:", job.Name)
		fmt.Printf("%-20s %s\n", "Command:", job.Command)
		fmt.Printf("%-20s %s\n", "State:", string(job.State))
		fmt.Printf("%-20s %s\n", "Cluster:", job.Cluster)
		fmt.Printf("%-20s %s\n", "Remote ID:", job.RemoteID)
		fmt.Printf("%-20s %s\n", "Queue:", job.Queue)
		fmt.Printf("%-20s %d\n", "Threads:", job.Threads)
		if job.MemoryMB > 0 {
			fmt.Printf("%-20s %d MB\n", "Memory:", job.MemoryMB)
		}
		if job.MaxTime > 0 {
			fmt.Printf("%-20s %s\n", "Max Time:", time.Duration(job.MaxTime)*time.Minute)
		}
		fmt.Printf("%-20s %s\n", "Account:", job.Account)
		fmt.Printf("%-20s %d\n", "Priority:", job.Priority)
		fmt.Printf("%-20s %s\n", "Directory:", job.WorkDir)
		if len(job.Dependencies) > 0 {
			fmt.Printf("%-20s %s\n", "After:", joinIDs(job.Dependencies))
		}
		fmt.Printf("%-20s %d/%d\n", "Attempts:", job.Attempts, job.MaxRetries)
		fmt.Printf("%-20s %t\n", "Hold:", job.Hold)
		fmt.Printf("%-20s %t\n", "Archived:", job.Archived)
		if job.Stdout != "" {
			fmt.Printf("%-20s %s\n", "Stdout:", logPath(job, false))
		}
		if job.Stderr != "" {
			fmt.Printf("%-20s %s\n", "Stderr:", logPath(job, true))
		}
		fmt.Printf("%-20s %s\n", "Created At:", job.CreatedAt.Format(time.RFC3339))
		fmt.Printf("%-20s %s\n", "Updated At:", job.UpdatedAt.Format(time.RFC3339))
		if job.LastError != "" {
			fmt.Printf("%-20s %s\n", "Last Error:", job.LastError)
		}
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs job-id",
	Short: "Print the stdout (or stderr) file of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ids := resolveIDs(args)
		job, err := GetJobByID(ids[0])
		if err != nil {
			log.Fatalf("Failed to get job: %v", err)
		}
		showErr, _ := cmd.Flags().GetBool("err")
		path := logPath(job, showErr)
		if path == "" {
			log.Fatalf("Job %d has no log file configured", job.ID)
		}
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("Failed to open log: %v", err)
		}
		defer f.Close()
		if _, err := io.Copy(os.Stdout, f); err != nil {
			log.Fatalf("Failed to read log: %v", err)
		}
	},
}

// logPath expands the scheduler job id placeholders in a job's log path.
func logPath(job *Job, stderr bool) string {
	p := job.Stdout
	if stderr {
		p = job.Stderr
	}
	return strings.NewReplacer("%j", job.RemoteID, "%J", job.RemoteID, "$JOB_ID", job.RemoteID).Replace(p)
}

type clusterInfo struct {
	Name      string   `json:"name"`
	Tools     []string `json:"tools"`
	Missing   []string `json:"missing,omitempty"`
	Available bool     `json:"available"`
}

func clusterAvailability() []clusterInfo {
	cfg, err := loadClusterConfig()
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	runner := cluster.ExecRunner{BinDir: cfg.BinDir}

	var infos []clusterInfo
	for _, name := range cluster.Backends() {
		tools, _ := cluster.Tools(name)
		info := clusterInfo{Name: name, Tools: tools}
		for _, tool := range tools {
			if _, err := runner.LookPath(tool); err != nil {
				info.Missing = append(info.Missing, tool)
			}
		}
		info.Available = len(info.Missing) == 0
		infos = append(infos, info)
	}
	return infos
}

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List supported cluster backends and whether their tools are installed",
	Run: func(cmd *cobra.Command, args []string) {
		current, _ := GetConfig("cluster")
		fmt.Printf("%-8s %-10s %-9s %s\n", "NAME", "AVAILABLE", "DEFAULT", "MISSING")
		fmt.Println(strings.Repeat("-", 50))
		for _, info := range clusterAvailability() {
			def := ""
			if info.Name == current {
				def = "*"
			}
			fmt.Printf("%-8s %-10t %-9s %s\n", info.Name, info.Available, def, strings.Join(info.Missing, ","))
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage configuration such as the default cluster, retry count and backoff base.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set key value",
	Short: "Set a configuration value",
	Long:  `Set a configuration key-value pair. Common keys: cluster, cluster-config, max-retries, backoff-base, poll-interval`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key, value := args[0], args[1]
		if err := SetConfig(key, value); err != nil {
			log.Fatalf("Failed to set config: %v", err)
		}
		fmt.Printf("Configuration '%s' set to '%s'\n", key, value)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get key",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		value, err := GetConfig(args[0])
		if err != nil {
			log.Fatalf("Failed to get config: %v", err)
		}
		fmt.Println(value)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := GetAllConfig()
		if err != nil {
			log.Fatalf("Failed to get config: %v", err)
		}

		if len(config) == 0 {
			fmt.Println("No configuration set")
			return
		}

		fmt.Println("Configuration:")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Printf("%-20s %s\n", "KEY", "VALUE")
		fmt.Println(strings.Repeat("-", 50))
		for key, value := range config {
			fmt.Printf("%-20s %s\n", key, value)
		}
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the cluster for active jobs until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		count, err := cmd.Flags().GetInt("count")
		if err != nil {
			log.Fatalf("failed to get count flag: %v", err)
		}
		if count < 1 {
			log.Fatalln("Watcher count must be at least 1")
		}
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = GetConfigDuration("poll-interval", 30*time.Second)
		}

		pool := NewWatchPool(count, interval)
		if err := pool.Start(); err != nil {
			log.Fatalf("Failed to start watchers: %v", err)
		}
		pool.HandleSignals()
		pool.Wait()
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Start web dashboard server",
	Run: func(cmd *cobra.Command, args []string) {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			log.Fatalf("failed to get port flag: %v", err)
		}
		if port < 1 || port > 65535 {
			log.Fatal("Invalid port")
		}
		server := NewServer(port)
		if err := server.Start(); err != nil {
			log.Fatalf("failed to start dashboard server: %v", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "warn", "Log level: error|warn|info|debug")

	f := submitCmd.Flags()
	f.String("json", "", "Job definition as JSON")
	f.StringP("name", "n", "", "Job name")
	f.StringP("cluster", "C", "", "Cluster backend (slurm, sge, pbs, lsf)")
	f.StringP("queue", "q", "", "Queue or partition")
	f.IntP("threads", "t", 0, "Number of threads")
	f.StringP("mem", "m", "", "Memory, e.g. 512M or 4G")
	f.StringP("time", "T", "", "Max run time: minutes, H:MM[:SS] or 1h30m")
	f.StringP("account", "A", "", "Account to charge")
	f.IntP("priority", "P", 0, "Scheduler priority")
	f.StringP("dir", "d", "", "Working directory (default: current directory)")
	f.String("out", "", "Stdout file")
	f.String("err", "", "Stderr file")
	f.StringSlice("after", nil, "Local job ids that must complete first (ranges allowed)")
	f.Bool("hold", false, "Store the job without submitting it")
	f.Int("retries", 0, "Submission attempts on rejection (default: max-retries config)")
	rootCmd.AddCommand(submitCmd)

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(holdCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(statusCmd)

	listCmd.Flags().StringP("state", "s", "", "Filter jobs by state (pending, running, completed, failed, cancelled, unknown)")
	listCmd.Flags().BoolP("all", "a", false, "Include archived jobs")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)

	logsCmd.Flags().Bool("err", false, "Show the stderr file instead of stdout")
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(clustersCmd)

	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	watchCmd.Flags().IntP("count", "c", 1, "Number of concurrent watchers")
	watchCmd.Flags().Duration("interval", 0, "Poll interval (default: poll-interval config or 30s)")
	rootCmd.AddCommand(watchCmd)

	dashboardCmd.Flags().IntP("port", "p", 8080, "Port to run the dashboard server on")
	rootCmd.AddCommand(dashboardCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
