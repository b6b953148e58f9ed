package cluster

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by all drivers. It is normally loaded
// from a YAML file:
//
//	engine: slurm
//	bin_dir: /opt/slurm/bin
//	queue: short
//	extra_args: ["--qos=normal"]
type Config struct {
	Engine string `yaml:"engine"`
	BinDir string `yaml:"bin_dir"`
	Shell  string `yaml:"shell"`
	// Queue is used when a spec does not name one.
	Queue string `yaml:"queue"`
	// LogDir receives stdout/stderr files when a spec does not name them.
	LogDir string `yaml:"log_dir"`
	// ExtraArgs are appended to every submit command line.
	ExtraArgs []string `yaml:"extra_args"`

	// SGE only.
	ParallelEnv    string `yaml:"parallel_env"`
	MemoryResource string `yaml:"memory_resource"`
}

func (c *Config) defaults() {
	if c.Shell == "" {
		c.Shell = "/bin/bash"
	}
	if c.ParallelEnv == "" {
		c.ParallelEnv = "smp"
	}
	if c.MemoryResource == "" {
		c.MemoryResource = "h_vmem"
	}
}

// LoadConfigFile reads a YAML cluster config.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse cluster config %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}

type options struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// Option customises Get.
type Option func(*options)

// WithConfig sets the driver configuration.
func WithConfig(cfg Config) Option { return func(o *options) { o.cfg = cfg } }

// WithRunner replaces the command runner. Default: ExecRunner{BinDir: cfg.BinDir}.
func WithRunner(r Runner) Option { return func(o *options) { o.runner = r } }

// WithLogger sets the logger used for scheduler command tracing.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }
