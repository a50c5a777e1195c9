package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/cache"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/config"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/exec"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/harness"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/metrics"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/queue"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/sandbox"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/server"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/worker"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	var configPath string
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(2)
			}
			configPath = args[i]
		case "-h", "--help":
			usage()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			usage()
			os.Exit(2)
		}
	}

	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "cxe: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  cxe [--config <cxe.yaml>]")
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	runner, err := sandbox.NewDockerRunner(logger)
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}

	var store cache.Cache
	if cfg.Cache.RedisAddr != "" {
		store = cache.NewRedis(goredis.NewClient(&goredis.Options{Addr: cfg.Cache.RedisAddr}))
	} else {
		store = cache.NewMemory()
	}
	store = cache.NewBreaker(store)

	q := queue.New()
	m := metrics.New(q.Size)

	registry := harness.NewRegistry(
		harness.NewPython(cfg.Sandbox.PythonImage),
		harness.NewJavaScript(cfg.Sandbox.NodeImage),
	)
	orch := exec.NewOrchestrator(registry, runner, exec.Limits{
		CompileTimeout: cfg.CompileTimeout(),
		RunTimeout:     cfg.RunTimeout(),
		MemoryBytes:    cfg.Execution.Run.MemoryLimitBytes,
		CPUShare:       cfg.Execution.Run.CPUShare,
	}, logger)

	pool := worker.NewPool(worker.Options{
		Count:       cfg.Execution.Worker.Count,
		TempDir:     cfg.TempDir,
		CacheTTL:    cfg.CacheTTL(),
		KeepWorkdir: cfg.Execution.KeepWorkdir,
	}, q, store, orch, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	srv := server.New(server.Options{
		Addr:        cfg.Server.Addr,
		WorkerCount: cfg.Execution.Worker.Count,
		CacheTTL:    cfg.CacheTTL(),
	}, q, store, m, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		srv.Shutdown()
	}()

	if err := srv.ListenAndServe(); err != nil {
		return err
	}

	// Intake is stopped; drain the workers before exiting 0.
	q.Close()
	pool.Wait()
	logger.Info("shutdown complete")
	return nil
}
