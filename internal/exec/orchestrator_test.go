package exec

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/harness"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/sandbox"
)

// fakeRunner replays a scripted sequence of results, one per Run call.
type fakeRunner struct {
	calls   []sandbox.RunSpec
	results []fakeResult
}

type fakeResult struct {
	res *sandbox.RunResult
	err error
}

func (f *fakeRunner) Run(ctx context.Context, spec sandbox.RunSpec) (*sandbox.RunResult, error) {
	f.calls = append(f.calls, spec)
	if len(f.results) == 0 {
		return &sandbox.RunResult{}, nil
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next.res, next.err
}

func okResult(output string) fakeResult {
	now := time.Now()
	return fakeResult{res: &sandbox.RunResult{
		ExitCode:   0,
		Output:     output,
		StartedAt:  now,
		FinishedAt: now.Add(50 * time.Millisecond),
	}}
}

func execRequest() *model.SubmissionRequest {
	return &model.SubmissionRequest{
		SubmissionID: "fedcba98-0000-0000-0000-000000000000",
		Language:     "python",
		Code:         "def add(a, b):\n    return a + b\n",
		Metadata: model.QuestionMetadata{
			FunctionName: "add",
			ReturnType:   "int",
			QuestionType: model.QuestionAlgorithm,
			Parameters:   []model.Parameter{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}},
		},
		TestCases: []model.TestCase{{Input: map[string]any{"a": 1, "b": 2}}},
	}
}

func newTestOrchestrator(runner sandbox.Runner) *Orchestrator {
	o := NewOrchestrator(
		harness.NewRegistry(harness.NewPython("python:3.12-slim")),
		runner,
		Limits{CompileTimeout: 30 * time.Second, RunTimeout: 10 * time.Second, MemoryBytes: 256 << 20, CPUShare: 0.5},
		zap.NewNop(),
	)
	o.backoff.InitialDelay = time.Millisecond
	o.backoff.MaxDelay = time.Millisecond
	return o
}

func TestExecuteSuccess(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		okResult(""),
		okResult(marker(0, "3", "", 5)),
	}}
	res := newTestOrchestrator(runner).Execute(context.Background(), execRequest(), t.TempDir(), nil)
	if res.Status != model.ExecSuccess {
		t.Fatalf("status = %v: %s", res.Status, res.ErrorMessage)
	}
	if len(res.TestCaseResults) != 1 || res.TestCaseResults[0].ActualOutput != "3" {
		t.Fatalf("results = %+v", res.TestCaseResults)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected compile then run, got %d calls", len(runner.calls))
	}
	if runner.calls[0].Limits.WallClock != 30*time.Second {
		t.Fatalf("compile wall clock = %v", runner.calls[0].Limits.WallClock)
	}
	if runner.calls[1].Limits.WallClock != 10*time.Second {
		t.Fatalf("run wall clock = %v", runner.calls[1].Limits.WallClock)
	}
}

func TestExecuteCompilationError(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{res: &sandbox.RunResult{ExitCode: 1, Output: "SyntaxError: invalid syntax"}},
	}}
	onRunningCalled := false
	res := newTestOrchestrator(runner).Execute(context.Background(), execRequest(), t.TempDir(), func() { onRunningCalled = true })
	if res.Status != model.ExecCompilationError {
		t.Fatalf("status = %v", res.Status)
	}
	if res.CompilationOutput != "SyntaxError: invalid syntax" {
		t.Fatalf("compilation output = %q", res.CompilationOutput)
	}
	if len(res.TestCaseResults) != 0 {
		t.Fatalf("expected no test results, got %+v", res.TestCaseResults)
	}
	if onRunningCalled {
		t.Fatalf("onRunning must not fire when compilation fails")
	}
	if len(runner.calls) != 1 {
		t.Fatalf("run phase must be skipped, got %d calls", len(runner.calls))
	}
}

func TestExecuteTimeout(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		okResult(""),
		{res: &sandbox.RunResult{ExitCode: sandbox.TimedOutExitCode, TimedOut: true, Output: marker(0, "3", "", 5)}},
	}}
	res := newTestOrchestrator(runner).Execute(context.Background(), execRequest(), t.TempDir(), nil)
	if res.Status != model.ExecTimeout {
		t.Fatalf("status = %v", res.Status)
	}
	// Markers emitted before the kill are still honored.
	if len(res.TestCaseResults) != 1 || res.TestCaseResults[0].ActualOutput != "3" {
		t.Fatalf("results = %+v", res.TestCaseResults)
	}
}

func TestExecuteRuntimeError(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		okResult(""),
		{res: &sandbox.RunResult{ExitCode: 137, Output: "Killed"}},
	}}
	res := newTestOrchestrator(runner).Execute(context.Background(), execRequest(), t.TempDir(), nil)
	if res.Status != model.ExecRuntimeError {
		t.Fatalf("status = %v", res.Status)
	}
	if res.ErrorMessage != "Killed" {
		t.Fatalf("error message = %q", res.ErrorMessage)
	}
	if len(res.TestCaseResults) != 1 || res.TestCaseResults[0].Error != prematureTermination {
		t.Fatalf("results = %+v", res.TestCaseResults)
	}
}

func TestExecuteRetriesUnavailableSandbox(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: sandbox.ErrUnavailable},
		okResult(""),
		okResult(marker(0, "3", "", 5)),
	}}
	res := newTestOrchestrator(runner).Execute(context.Background(), execRequest(), t.TempDir(), nil)
	if res.Status != model.ExecSuccess {
		t.Fatalf("status = %v: %s", res.Status, res.ErrorMessage)
	}
	if len(runner.calls) != 3 {
		t.Fatalf("expected one retry then success, got %d calls", len(runner.calls))
	}
}

func TestExecuteInternalErrorAfterRetries(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: sandbox.ErrUnavailable},
		{err: sandbox.ErrUnavailable},
		{err: sandbox.ErrUnavailable},
	}}
	res := newTestOrchestrator(runner).Execute(context.Background(), execRequest(), t.TempDir(), nil)
	if res.Status != model.ExecInternalError {
		t.Fatalf("status = %v", res.Status)
	}
	if len(runner.calls) != 3 {
		t.Fatalf("expected initial attempt plus two retries, got %d calls", len(runner.calls))
	}
}

func TestExecuteUnsupportedLanguage(t *testing.T) {
	req := execRequest()
	req.Language = "cobol"
	res := newTestOrchestrator(&fakeRunner{}).Execute(context.Background(), req, t.TempDir(), nil)
	if res.Status != model.ExecInternalError {
		t.Fatalf("status = %v", res.Status)
	}
}
