package sandbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

// fakeAPIClient implements the daemon calls Run makes; everything else
// panics via the embedded nil interface.
type fakeAPIClient struct {
	client.APIClient

	mu       sync.Mutex
	hostCfg  *container.HostConfig
	killed   bool
	waitResp chan container.WaitResponse
	waitErr  chan error
	logs     []byte
}

func newFakeAPIClient() *fakeAPIClient {
	return &fakeAPIClient{
		waitResp: make(chan container.WaitResponse, 1),
		waitErr:  make(chan error, 1),
	}
}

func (f *fakeAPIClient) ImagePull(ctx context.Context, ref string, opts types.ImagePullOptions) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeAPIClient) ContainerCreate(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig, platform *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.mu.Lock()
	f.hostCfg = hostCfg
	f.mu.Unlock()
	return container.CreateResponse{ID: "fake-container"}, nil
}

func (f *fakeAPIClient) ContainerStart(ctx context.Context, id string, opts types.ContainerStartOptions) error {
	return nil
}

func (f *fakeAPIClient) ContainerWait(ctx context.Context, id string, cond container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	return f.waitResp, f.waitErr
}

func (f *fakeAPIClient) ContainerKill(ctx context.Context, id, signal string) error {
	f.mu.Lock()
	f.killed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeAPIClient) ContainerRemove(ctx context.Context, id string, opts types.ContainerRemoveOptions) error {
	return nil
}

func (f *fakeAPIClient) ContainerLogs(ctx context.Context, id string, opts types.ContainerLogsOptions) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.logs)), nil
}

func (f *fakeAPIClient) ContainerStatsOneShot(ctx context.Context, id string) (types.ContainerStats, error) {
	return types.ContainerStats{}, errors.New("no stats")
}

func (f *fakeAPIClient) wasKilled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killed
}

func testSpec(limit time.Duration) RunSpec {
	return RunSpec{
		Image:   "python:3.12-slim",
		Workdir: "/tmp/work",
		Argv:    []string{"python3", "main.py"},
		Name:    "cxe-test",
		Limits:  Limits{CPUShare: 0.5, MemoryBytes: 256 << 20, WallClock: limit},
	}
}

func TestRunExitCodePassthrough(t *testing.T) {
	fake := newFakeAPIClient()
	var logs bytes.Buffer
	stdcopy.NewStdWriter(&logs, stdcopy.Stdout).Write([]byte("hello\n"))
	fake.logs = logs.Bytes()
	fake.waitResp <- container.WaitResponse{StatusCode: 7}

	res, err := NewDockerRunnerWithClient(fake, zap.NewNop()).Run(context.Background(), testSpec(10*time.Second))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 7 || res.TimedOut {
		t.Fatalf("res = %+v", res)
	}
	if res.Output != "hello\n" {
		t.Fatalf("output = %q", res.Output)
	}
	if fake.wasKilled() {
		t.Fatalf("exited container must not be killed")
	}
}

func TestRunDaemonWaitErrorIsNotTimeout(t *testing.T) {
	fake := newFakeAPIClient()
	fake.waitErr <- errors.New("error during connect: EOF")

	res, err := NewDockerRunnerWithClient(fake, zap.NewNop()).Run(context.Background(), testSpec(10*time.Second))
	if err == nil {
		t.Fatalf("daemon wait failure must surface as an error, got %+v", res)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestRunWallClockTimeout(t *testing.T) {
	fake := newFakeAPIClient()
	// Neither channel ever fires; only the deadline ends the wait.

	res, err := NewDockerRunnerWithClient(fake, zap.NewNop()).Run(context.Background(), testSpec(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut || res.ExitCode != TimedOutExitCode {
		t.Fatalf("res = %+v", res)
	}
	if !fake.wasKilled() {
		t.Fatalf("timed-out container must be killed")
	}
}

func TestRunResourceLimits(t *testing.T) {
	fake := newFakeAPIClient()
	fake.waitResp <- container.WaitResponse{StatusCode: 0}

	if _, err := NewDockerRunnerWithClient(fake, zap.NewNop()).Run(context.Background(), testSpec(10*time.Second)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	fake.mu.Lock()
	hostCfg := fake.hostCfg
	fake.mu.Unlock()
	if hostCfg == nil {
		t.Fatalf("container never created")
	}
	if hostCfg.Resources.Memory != 256<<20 {
		t.Fatalf("memory = %d", hostCfg.Resources.Memory)
	}
	if hostCfg.Resources.MemorySwap != hostCfg.Resources.Memory {
		t.Fatalf("swap limit %d must equal memory limit %d to disable swap",
			hostCfg.Resources.MemorySwap, hostCfg.Resources.Memory)
	}
	if hostCfg.Resources.NanoCPUs != int64(0.5*1e9) {
		t.Fatalf("nano cpus = %d", hostCfg.Resources.NanoCPUs)
	}
	if string(hostCfg.NetworkMode) != "none" {
		t.Fatalf("network mode = %q", hostCfg.NetworkMode)
	}
}
