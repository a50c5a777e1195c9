package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

// statsInterval is the peak-memory sampling period (>= 2Hz per contract).
const statsInterval = 500 * time.Millisecond

// containerMount is where the submission workdir appears inside the sandbox.
const containerMount = "/workspace"

// DockerRunner runs commands in throwaway containers on the local Docker
// daemon. It is safe for concurrent use; the daemon is the only resource
// shared across workers.
type DockerRunner struct {
	cli    client.APIClient
	logger *zap.Logger

	mu     sync.Mutex
	pulled map[string]bool
}

// NewDockerRunner connects to the daemon from the environment.
func NewDockerRunner(logger *zap.Logger) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &DockerRunner{cli: cli, logger: logger, pulled: map[string]bool{}}, nil
}

// NewDockerRunnerWithClient is for tests and embedding.
func NewDockerRunnerWithClient(cli client.APIClient, logger *zap.Logger) *DockerRunner {
	return &DockerRunner{cli: cli, logger: logger, pulled: map[string]bool{}}
}

// Run implements Runner.
func (r *DockerRunner) Run(ctx context.Context, spec RunSpec) (*RunResult, error) {
	if err := r.ensureImage(ctx, spec.Image); err != nil {
		return nil, err
	}

	hostCfg := &container.HostConfig{
		Binds:       []string{spec.Workdir + ":" + containerMount},
		NetworkMode: "none",
		Resources: container.Resources{
			Memory: spec.Limits.MemoryBytes,
			// Swap disabled: the limit is a hard ceiling, not 2x via swap.
			MemorySwap: spec.Limits.MemoryBytes,
			NanoCPUs:   int64(spec.Limits.CPUShare * 1e9),
		},
	}
	cfg := &container.Config{
		Image:           spec.Image,
		Cmd:             spec.Argv,
		WorkingDir:      containerMount,
		NetworkDisabled: true,
	}

	created, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: create container: %v", ErrUnavailable, err)
	}
	id := created.ID
	defer func() {
		// Removal failures only leak a stopped container; log and move on.
		rmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.cli.ContainerRemove(rmCtx, id, types.ContainerRemoveOptions{Force: true}); err != nil {
			r.logger.Warn("container remove failed", zap.String("container", id), zap.Error(err))
		}
	}()

	startedAt := time.Now().UTC()
	if err := r.cli.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("%w: start container: %v", ErrUnavailable, err)
	}

	peakCh := make(chan *int64, 1)
	sampleCtx, stopSampling := context.WithCancel(ctx)
	go r.samplePeakMemory(sampleCtx, id, peakCh)

	exitCode, timedOut, waitErr := r.waitWithDeadline(ctx, id, spec.Limits.WallClock)
	stopSampling()
	finishedAt := time.Now().UTC()
	peak := <-peakCh
	if waitErr != nil {
		return nil, waitErr
	}

	output, err := r.mergedLogs(ctx, id)
	if err != nil {
		return nil, err
	}

	return &RunResult{
		ExitCode:        exitCode,
		Output:          output,
		PeakMemoryBytes: peak,
		TimedOut:        timedOut,
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
	}, nil
}

func (r *DockerRunner) ensureImage(ctx context.Context, image string) error {
	r.mu.Lock()
	done := r.pulled[image]
	r.mu.Unlock()
	if done {
		return nil
	}
	rc, err := r.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("%w: pull %s: %v", ErrUnavailable, image, err)
	}
	// The pull completes only once the stream is drained.
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
	r.mu.Lock()
	r.pulled[image] = true
	r.mu.Unlock()
	return nil
}

// waitWithDeadline waits for container exit, killing it at the wall-clock
// limit. Hitting the limit yields the synthetic exit code; a daemon-side
// wait failure is an infrastructure error, never a timeout.
func (r *DockerRunner) waitWithDeadline(ctx context.Context, id string, limit time.Duration) (int, bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	statusCh, errCh := r.cli.ContainerWait(waitCtx, id, container.WaitConditionNotRunning)
	var waitErr error
	select {
	case st := <-statusCh:
		return int(st.StatusCode), false, nil
	case waitErr = <-errCh:
	case <-waitCtx.Done():
		waitErr = waitCtx.Err()
	}

	killCtx, killCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer killCancel()
	if err := r.cli.ContainerKill(killCtx, id, "KILL"); err != nil {
		r.logger.Warn("container kill failed", zap.String("container", id), zap.Error(err))
	}

	if errors.Is(waitErr, context.DeadlineExceeded) || errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
		return TimedOutExitCode, true, nil
	}
	if ctx.Err() != nil {
		return 0, false, ctx.Err()
	}
	return 0, false, fmt.Errorf("%w: wait container: %v", ErrUnavailable, waitErr)
}

// mergedLogs fetches stdout and stderr demultiplexed into a single buffer,
// preserving the interleaving the process produced.
func (r *DockerRunner) mergedLogs(ctx context.Context, id string) (string, error) {
	logCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = ctx
	rc, err := r.cli.ContainerLogs(logCtx, id, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", fmt.Errorf("%w: container logs: %v", ErrUnavailable, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, rc); err != nil {
		return "", fmt.Errorf("%w: read logs: %v", ErrUnavailable, err)
	}
	return buf.String(), nil
}

// samplePeakMemory polls container stats until ctx is cancelled and sends
// the peak observation (nil if none was obtained).
func (r *DockerRunner) samplePeakMemory(ctx context.Context, id string, out chan<- *int64) {
	var peak *int64
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	defer func() { out <- peak }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		stats, err := r.cli.ContainerStatsOneShot(ctx, id)
		if err != nil {
			continue
		}
		var sj types.StatsJSON
		decErr := json.NewDecoder(stats.Body).Decode(&sj)
		_ = stats.Body.Close()
		if decErr != nil {
			continue
		}
		usage := int64(sj.MemoryStats.Usage)
		if usage > 0 && (peak == nil || usage > *peak) {
			u := usage
			peak = &u
		}
	}
}
