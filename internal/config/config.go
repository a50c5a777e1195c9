package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration. Fields map to the flat dotted keys in
// the YAML file; env vars with a CXE_ prefix override the file.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Execution struct {
		Worker struct {
			Count int `yaml:"count"`
		} `yaml:"worker"`
		Compile struct {
			TimeoutSeconds int `yaml:"timeoutSeconds"`
		} `yaml:"compile"`
		Run struct {
			TimeoutSeconds   int     `yaml:"timeoutSeconds"`
			MemoryLimitBytes int64   `yaml:"memoryLimitBytes"`
			CPUShare         float64 `yaml:"cpuShare"`
		} `yaml:"run"`
		KeepWorkdir bool `yaml:"keepWorkdir"`
	} `yaml:"execution"`

	Cache struct {
		RedisAddr  string `yaml:"redisAddr"`
		TTLSeconds int    `yaml:"ttlSeconds"`
	} `yaml:"cache"`

	Sandbox struct {
		PythonImage string `yaml:"pythonImage"`
		NodeImage   string `yaml:"nodeImage"`
	} `yaml:"sandbox"`

	TempDir string `yaml:"tempDir"`
}

// Load reads an optional YAML file, applies defaults, then env overrides,
// then validates. An empty path yields a default config.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAMLStrict(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAMLStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if err.Error() == "EOF" {
			return nil
		}
		return err
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Execution.Worker.Count == 0 {
		cfg.Execution.Worker.Count = 5
	}
	if cfg.Execution.Compile.TimeoutSeconds == 0 {
		cfg.Execution.Compile.TimeoutSeconds = 30
	}
	if cfg.Execution.Run.TimeoutSeconds == 0 {
		cfg.Execution.Run.TimeoutSeconds = 10
	}
	if cfg.Execution.Run.MemoryLimitBytes == 0 {
		cfg.Execution.Run.MemoryLimitBytes = 256 << 20
	}
	if cfg.Execution.Run.CPUShare == 0 {
		cfg.Execution.Run.CPUShare = 0.5
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 3600
	}
	if cfg.Sandbox.PythonImage == "" {
		cfg.Sandbox.PythonImage = "python:3.12-slim"
	}
	if cfg.Sandbox.NodeImage == "" {
		cfg.Sandbox.NodeImage = "node:20-slim"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CXE_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := envInt("CXE_EXECUTION_WORKER_COUNT"); v > 0 {
		cfg.Execution.Worker.Count = v
	}
	if v := envInt("CXE_EXECUTION_COMPILE_TIMEOUT_SECONDS"); v > 0 {
		cfg.Execution.Compile.TimeoutSeconds = v
	}
	if v := envInt("CXE_EXECUTION_RUN_TIMEOUT_SECONDS"); v > 0 {
		cfg.Execution.Run.TimeoutSeconds = v
	}
	if v := os.Getenv("CXE_CACHE_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := envInt("CXE_CACHE_TTL_SECONDS"); v > 0 {
		cfg.Cache.TTLSeconds = v
	}
	if v := os.Getenv("CXE_TEMP_DIR"); v != "" {
		cfg.TempDir = v
	}
}

func envInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func validate(cfg *Config) error {
	if cfg.Execution.Worker.Count < 1 {
		return fmt.Errorf("execution.worker.count must be >= 1")
	}
	if cfg.Execution.Run.CPUShare <= 0 || cfg.Execution.Run.CPUShare > 8 {
		return fmt.Errorf("execution.run.cpuShare must be in (0, 8]")
	}
	if cfg.Cache.TTLSeconds < 1 {
		return fmt.Errorf("cache.ttlSeconds must be >= 1")
	}
	if st, err := os.Stat(cfg.TempDir); err != nil || !st.IsDir() {
		return fmt.Errorf("tempDir %q is not a usable directory", cfg.TempDir)
	}
	return nil
}

// CompileTimeout returns the wall-clock limit for the COMPILE phase.
func (c *Config) CompileTimeout() time.Duration {
	return time.Duration(c.Execution.Compile.TimeoutSeconds) * time.Second
}

// RunTimeout returns the wall-clock limit for the RUN phase.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Execution.Run.TimeoutSeconds) * time.Second
}

// CacheTTL returns the status record lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
