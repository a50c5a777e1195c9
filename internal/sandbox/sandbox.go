// Package sandbox launches commands inside an isolation boundary with CPU,
// memory and wall-clock limits. The Docker engine is the boundary: the
// container gets a read-write bind of the submission workdir, no network,
// and a hard memory limit enforced by the kernel, not by cooperative checks.
package sandbox

import (
	"context"
	"errors"
	"time"
)

// TimedOutExitCode is the synthetic exit code reported when the runner kills
// a process at the wall-clock limit. It is distinct from any real OS exit.
const TimedOutExitCode = -999

// ErrUnavailable marks infrastructure failures (daemon unreachable, image
// pull failed) as opposed to failures of the sandboxed command itself. The
// orchestrator retries these once before surfacing INTERNAL_ERROR.
var ErrUnavailable = errors.New("sandbox unavailable")

// Limits bound one sandboxed process.
type Limits struct {
	CPUShare    float64
	MemoryBytes int64
	WallClock   time.Duration
}

// RunSpec describes one sandboxed invocation.
type RunSpec struct {
	// Image is the language toolchain image.
	Image string
	// Workdir is the host directory bind-mounted read-write into the
	// container; it is the only writable area the process sees.
	Workdir string
	// Argv is the command to run inside the mount.
	Argv []string
	// Name labels the container for operator forensics; optional.
	Name string

	Limits Limits
}

// RunResult is the observed outcome of one sandboxed invocation. Stderr is
// merged into Output to preserve interleaving order of harness markers.
type RunResult struct {
	ExitCode        int
	Output          string
	PeakMemoryBytes *int64 // nil when stats sampling was unavailable
	TimedOut        bool
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Runner executes a command inside the isolation boundary.
type Runner interface {
	Run(ctx context.Context, spec RunSpec) (*RunResult, error)
}
