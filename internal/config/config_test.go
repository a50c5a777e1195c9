package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Execution.Worker.Count != 5 {
		t.Fatalf("worker count = %d, want 5", cfg.Execution.Worker.Count)
	}
	if cfg.CompileTimeout() != 30*time.Second {
		t.Fatalf("compile timeout = %v, want 30s", cfg.CompileTimeout())
	}
	if cfg.RunTimeout() != 10*time.Second {
		t.Fatalf("run timeout = %v, want 10s", cfg.RunTimeout())
	}
	if cfg.Execution.Run.MemoryLimitBytes != 256<<20 {
		t.Fatalf("memory limit = %d, want 256 MiB", cfg.Execution.Run.MemoryLimitBytes)
	}
	if cfg.Execution.Run.CPUShare != 0.5 {
		t.Fatalf("cpu share = %v, want 0.5", cfg.Execution.Run.CPUShare)
	}
	if cfg.CacheTTL() != time.Hour {
		t.Fatalf("cache ttl = %v, want 1h", cfg.CacheTTL())
	}
	if cfg.TempDir == "" {
		t.Fatalf("tempDir not defaulted")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cxe.yaml")
	content := `
server:
  addr: ":9090"
execution:
  worker:
    count: 2
  run:
    timeoutSeconds: 3
cache:
  ttlSeconds: 60
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Execution.Worker.Count != 2 {
		t.Fatalf("worker count = %d", cfg.Execution.Worker.Count)
	}
	if cfg.RunTimeout() != 3*time.Second {
		t.Fatalf("run timeout = %v", cfg.RunTimeout())
	}
	// Unset keys still default.
	if cfg.CompileTimeout() != 30*time.Second {
		t.Fatalf("compile timeout = %v, want default", cfg.CompileTimeout())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cxe.yaml")
	if err := os.WriteFile(path, []byte("bogusKey: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected strict decode to reject unknown key")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CXE_EXECUTION_WORKER_COUNT", "9")
	t.Setenv("CXE_CACHE_TTL_SECONDS", "120")
	t.Setenv("CXE_SERVER_ADDR", ":7001")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Execution.Worker.Count != 9 {
		t.Fatalf("worker count = %d, want env override 9", cfg.Execution.Worker.Count)
	}
	if cfg.Cache.TTLSeconds != 120 {
		t.Fatalf("ttl = %d, want 120", cfg.Cache.TTLSeconds)
	}
	if cfg.Server.Addr != ":7001" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cxe.yaml")
	if err := os.WriteFile(path, []byte("execution:\n  run:\n    cpuShare: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for negative cpuShare")
	}
}
