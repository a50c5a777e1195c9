// Package exec drives one submission through its compile and run phases
// inside the sandbox and parses harness markers back into structured
// per-test results.
package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/harness"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/sandbox"
)

// Limits carries the per-phase resource bounds.
type Limits struct {
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	MemoryBytes    int64
	CPUShare       float64
}

// Orchestrator executes submissions. It holds no per-submission state; the
// working directory is the only shared medium between phases.
type Orchestrator struct {
	registry *harness.Registry
	runner   sandbox.Runner
	limits   Limits
	backoff  BackoffConfig
	logger   *zap.Logger
}

func NewOrchestrator(registry *harness.Registry, runner sandbox.Runner, limits Limits, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		runner:   runner,
		limits:   limits,
		backoff:  defaultBackoff(),
		logger:   logger.With(zap.String("component", "orchestrator")),
	}
}

// Execute runs WRITE, COMPILE, RUN and PARSE for one submission. onRunning,
// when non-nil, is invoked between the compile and run phases so the caller
// can publish the RUNNING transition. Execute never returns an error for
// user-attributable failures; those are encoded in the result status.
func (o *Orchestrator) Execute(ctx context.Context, req *model.SubmissionRequest, workdir string, onRunning func()) *model.ExecutionResult {
	adapter, err := o.registry.Lookup(req.Language)
	if err != nil {
		return internalError(err)
	}

	// WRITE
	if err := adapter.Generate(req, workdir); err != nil {
		return internalError(fmt.Errorf("generate harness: %w", err))
	}

	// COMPILE
	compileRes, err := o.runPhase(ctx, sandbox.RunSpec{
		Image:   adapter.Image(),
		Workdir: workdir,
		Argv:    adapter.CompileArgv(),
		Name:    containerName(req.SubmissionID, "compile"),
		Limits: sandbox.Limits{
			CPUShare:    o.limits.CPUShare,
			MemoryBytes: o.limits.MemoryBytes,
			WallClock:   o.limits.CompileTimeout,
		},
	})
	if err != nil {
		return internalError(fmt.Errorf("compile phase: %w", err))
	}
	if compileRes.ExitCode != 0 {
		return &model.ExecutionResult{
			Status:            model.ExecCompilationError,
			CompilationOutput: compileRes.Output,
			TestCaseResults:   []model.TestCaseResult{},
		}
	}

	if onRunning != nil {
		onRunning()
	}

	// RUN
	runRes, err := o.runPhase(ctx, sandbox.RunSpec{
		Image:   adapter.Image(),
		Workdir: workdir,
		Argv:    adapter.RunArgv(),
		Name:    containerName(req.SubmissionID, "run"),
		Limits: sandbox.Limits{
			CPUShare:    o.limits.CPUShare,
			MemoryBytes: o.limits.MemoryBytes,
			WallClock:   o.limits.RunTimeout,
		},
	})
	if err != nil {
		return internalError(fmt.Errorf("run phase: %w", err))
	}

	// PARSE
	result := &model.ExecutionResult{
		Status:          model.ExecSuccess,
		TestCaseResults: ParseMarkers(runRes.Output, len(req.TestCases), o.logger),
		RuntimeMs:       runRes.FinishedAt.Sub(runRes.StartedAt).Milliseconds(),
		PeakMemoryBytes: runRes.PeakMemoryBytes,
	}
	switch {
	case runRes.TimedOut:
		result.Status = model.ExecTimeout
		result.ErrorMessage = fmt.Sprintf("execution exceeded the %s wall-clock limit", o.limits.RunTimeout)
	case runRes.ExitCode != 0:
		// The harness itself crashed; per-case errors never exit non-zero.
		result.Status = model.ExecRuntimeError
		result.ErrorMessage = truncate(runRes.Output, 16*1024)
	}
	return result
}

// runPhase invokes the sandbox, retrying infrastructure failures on the
// 200ms, 1s schedule before giving up.
func (o *Orchestrator) runPhase(ctx context.Context, spec sandbox.RunSpec) (*sandbox.RunResult, error) {
	var lastErr error
	for attempt := 0; attempt <= o.backoff.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := DelayForAttempt(attempt, o.backoff)
			o.logger.Warn("sandbox unavailable, retrying",
				zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		res, err := o.runner.Run(ctx, spec)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, sandbox.ErrUnavailable) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func internalError(err error) *model.ExecutionResult {
	return &model.ExecutionResult{
		Status:          model.ExecInternalError,
		ErrorMessage:    err.Error(),
		TestCaseResults: []model.TestCaseResult{},
	}
}

// containerName labels sandbox containers for operator forensics.
func containerName(submissionID, phase string) string {
	short := submissionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("cxe-%s-%s-%s", short, phase, ulid.Make().String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
