// Package worker runs the pool of long-lived agents that drain the
// submission queue, drive the orchestrator, and publish status transitions
// to the cache. Workers share nothing but the queue, the cache, and the
// sandbox daemon.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/cache"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/exec"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/metrics"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/queue"
)

// workdirPattern matches per-submission working directories under tempDir.
const workdirPattern = "cxe-*"

// Options configures the pool.
type Options struct {
	Count       int
	TempDir     string
	CacheTTL    time.Duration
	KeepWorkdir bool
}

// Pool owns the worker goroutines.
type Pool struct {
	opts    Options
	queue   *queue.Queue
	cache   cache.Cache
	orch    *exec.Orchestrator
	metrics *metrics.Metrics
	logger  *zap.Logger

	wg sync.WaitGroup
}

func NewPool(opts Options, q *queue.Queue, c cache.Cache, orch *exec.Orchestrator, m *metrics.Metrics, logger *zap.Logger) *Pool {
	return &Pool{
		opts:    opts,
		queue:   q,
		cache:   c,
		orch:    orch,
		metrics: m,
		logger:  logger.With(zap.String("component", "worker")),
	}
}

// Start sweeps orphan working directories left by a previous crash, then
// launches the workers.
func (p *Pool) Start(ctx context.Context) {
	p.sweepOrphans()
	for k := 0; k < p.opts.Count; k++ {
		id := fmt.Sprintf("worker-%d", k)
		p.wg.Add(1)
		go p.run(ctx, id)
	}
}

// Wait blocks until every worker has exited. Close the queue to stop them.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, workerID string) {
	defer p.wg.Done()
	log := p.logger.With(zap.String("worker", workerID))
	for {
		req, err := p.queue.DequeueBlocking(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) && !errors.Is(err, context.Canceled) {
				log.Error("dequeue failed", zap.Error(err))
			}
			return
		}
		start := time.Now()
		p.metrics.ActiveWorkers.Inc()
		p.process(ctx, workerID, req, log)
		p.metrics.ActiveWorkers.Dec()
		elapsed := time.Since(start)
		p.queue.RecordDuration(elapsed)
		p.metrics.Duration.Observe(elapsed.Seconds())
	}
}

// process drives one submission to a terminal status. A panic anywhere in
// the pipeline is recovered here so the worker loop never dies with a
// submission in flight.
func (p *Pool) process(ctx context.Context, workerID string, req *model.SubmissionRequest, log *zap.Logger) {
	log = log.With(zap.String("submission", req.SubmissionID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing submission", zap.Any("panic", r))
			p.publishFailure(ctx, req, workerID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	// Claim the submission. A failed guard means the API cancelled it (or
	// an operator touched the record); either way it is not ours to run.
	now := time.Now().UTC()
	claimed := &model.StatusRecord{
		SubmissionID:      req.SubmissionID,
		Status:            model.StatusCompiling,
		TestCaseResults:   []model.TestCaseResult{},
		SourceFingerprint: model.SourceFingerprint(req.Code),
		QueuedAt:          now,
		StartedAt:         &now,
		WorkerID:          workerID,
	}
	if prev, err := p.cache.Get(ctx, req.SubmissionID); err == nil {
		claimed.QueuedAt = prev.QueuedAt
		claimed.SourceFingerprint = prev.SourceFingerprint
	}
	swapped, err := p.cache.CompareAndSet(ctx, req.SubmissionID, model.StatusQueued, claimed, p.opts.CacheTTL)
	if err != nil {
		log.Error("claim failed, dropping submission", zap.Error(err))
		return
	}
	if !swapped {
		log.Info("submission no longer queued, dropping")
		return
	}

	workdir, err := os.MkdirTemp(p.opts.TempDir, "cxe-"+req.SubmissionID+"-")
	if err != nil {
		p.publishFailure(ctx, req, workerID, fmt.Sprintf("create workdir: %v", err))
		return
	}
	defer func() {
		if p.opts.KeepWorkdir {
			log.Info("keeping workdir for forensics", zap.String("workdir", workdir))
			return
		}
		if err := os.RemoveAll(workdir); err != nil {
			log.Warn("workdir cleanup failed", zap.String("workdir", workdir), zap.Error(err))
		}
	}()

	onRunning := func() {
		running := *claimed
		running.Status = model.StatusRunning
		if err := p.putWithRetry(ctx, &running); err != nil {
			log.Warn("publishing RUNNING failed", zap.Error(err))
		}
	}

	result := p.orch.Execute(ctx, req, workdir, onRunning)
	p.metrics.Executions.WithLabelValues(string(result.Status)).Inc()

	completed := time.Now().UTC()
	final := &model.StatusRecord{
		SubmissionID:      req.SubmissionID,
		Status:            result.Status.RecordStatus(),
		ExecutionStatus:   result.Status,
		CompilationOutput: result.CompilationOutput,
		ErrorMessage:      result.ErrorMessage,
		TestCaseResults:   result.TestCaseResults,
		SourceFingerprint: claimed.SourceFingerprint,
		QueuedAt:          claimed.QueuedAt,
		StartedAt:         claimed.StartedAt,
		CompletedAt:       &completed,
		WorkerID:          workerID,
	}
	if result.RuntimeMs > 0 {
		rt := result.RuntimeMs
		final.RuntimeMs = &rt
	}
	if result.PeakMemoryBytes != nil {
		kb := *result.PeakMemoryBytes / 1024
		final.MemoryKb = &kb
	}
	if err := p.putWithRetry(ctx, final); err != nil {
		// Accepted loss: the submission becomes unreachable for pollers.
		log.Error("dropping final status write", zap.Error(err))
		return
	}
	log.Info("submission finished",
		zap.String("status", string(final.Status)),
		zap.String("executionStatus", string(result.Status)))
}

// publishFailure writes a terminal FAILED record on internal errors,
// carrying the lifecycle timestamps of the record it replaces.
func (p *Pool) publishFailure(ctx context.Context, req *model.SubmissionRequest, workerID, msg string) {
	completed := time.Now().UTC()
	rec := &model.StatusRecord{
		SubmissionID:    req.SubmissionID,
		Status:          model.StatusFailed,
		ExecutionStatus: model.ExecInternalError,
		ErrorMessage:    msg,
		TestCaseResults: []model.TestCaseResult{},
		QueuedAt:        completed,
		CompletedAt:     &completed,
		WorkerID:        workerID,
	}
	if prev, err := p.cache.Get(ctx, req.SubmissionID); err == nil {
		rec.QueuedAt = prev.QueuedAt
		rec.StartedAt = prev.StartedAt
		rec.SourceFingerprint = prev.SourceFingerprint
	}
	if err := p.putWithRetry(ctx, rec); err != nil {
		p.logger.Error("dropping failure status write",
			zap.String("submission", req.SubmissionID), zap.Error(err))
	}
}

// putWithRetry retries cache writes briefly; callers decide whether a final
// failure is an accepted loss.
func (p *Pool) putWithRetry(ctx context.Context, rec *model.StatusRecord) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
		if lastErr = p.cache.Put(ctx, rec, p.opts.CacheTTL); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// sweepOrphans removes working directories a crashed worker process left
// behind. Records are never resurrected; operators detect stale entries via
// startedAt age.
func (p *Pool) sweepOrphans() {
	matches, err := doublestar.Glob(os.DirFS(p.opts.TempDir), workdirPattern)
	if err != nil {
		p.logger.Warn("orphan sweep failed", zap.Error(err))
		return
	}
	for _, m := range matches {
		full := filepath.Join(p.opts.TempDir, m)
		st, err := os.Stat(full)
		if err != nil || !st.IsDir() {
			continue
		}
		if err := os.RemoveAll(full); err != nil {
			p.logger.Warn("orphan removal failed", zap.String("dir", full), zap.Error(err))
			continue
		}
		p.logger.Info("removed orphan workdir", zap.String("dir", full))
	}
}
