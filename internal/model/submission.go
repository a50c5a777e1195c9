package model

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// QuestionType distinguishes single-function problems from design problems
// where the driver instantiates a class and replays a method sequence.
type QuestionType string

const (
	QuestionAlgorithm   QuestionType = "ALGORITHM"
	QuestionDesignClass QuestionType = "DESIGN_CLASS"
)

// Parameter is one declared argument of the user function.
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QuestionMetadata describes the shape of the function under test. The
// engine never sees an expected output; it only needs enough to build and
// call the function.
type QuestionMetadata struct {
	PackageOrNamespace string `json:"packageOrNamespace,omitempty"`
	FunctionName       string `json:"functionName"`
	ReturnType         string `json:"returnType"`
	Parameters         []Parameter `json:"parameters"`

	// CustomDataStructures maps a canonical shape name ("ListNode",
	// "TreeNode", "GraphNode") to the concrete type name the user code uses.
	CustomDataStructures map[string]string `json:"customDataStructures,omitempty"`

	QuestionType QuestionType `json:"questionType,omitempty"`

	// MutationTarget names the parameter whose post-call state is the
	// logical output of a void-returning function.
	MutationTarget        string `json:"mutationTarget,omitempty"`
	SerializationStrategy string `json:"serializationStrategy,omitempty"`
}

// TestCase carries only inputs, keyed by parameter name. No expected output
// ever enters the engine.
type TestCase struct {
	Input map[string]any `json:"input"`
}

// SubmissionRequest is one user code + test inputs request.
type SubmissionRequest struct {
	SubmissionID string           `json:"submissionId,omitempty"`
	UserID       string           `json:"userId"`
	QuestionID   string           `json:"questionId"`
	Language     string           `json:"language"`
	Code         string           `json:"code"`
	Metadata     QuestionMetadata `json:"metadata"`
	TestCases    []TestCase       `json:"testCases"`
	ClientIP     string           `json:"clientIp,omitempty"`
	UserAgent    string           `json:"userAgent,omitempty"`
}

// Normalize fills derived fields: a fresh submission ID when absent and the
// ALGORITHM default question type.
func (r *SubmissionRequest) Normalize() {
	if strings.TrimSpace(r.SubmissionID) == "" {
		r.SubmissionID = NewSubmissionID()
	}
	if r.Metadata.QuestionType == "" {
		r.Metadata.QuestionType = QuestionAlgorithm
	}
}

// Validate checks the structural requirements a schema cannot express.
func (r *SubmissionRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("code is required")
	}
	if strings.TrimSpace(r.Language) == "" {
		return fmt.Errorf("language is required")
	}
	if r.Metadata.QuestionType == QuestionAlgorithm && strings.TrimSpace(r.Metadata.FunctionName) == "" {
		return fmt.Errorf("metadata.functionName is required")
	}
	if len(r.TestCases) == 0 {
		return fmt.Errorf("at least one test case is required")
	}
	if r.Metadata.ReturnType == "void" && r.Metadata.QuestionType == QuestionAlgorithm &&
		strings.TrimSpace(r.Metadata.MutationTarget) == "" {
		return fmt.Errorf("metadata.mutationTarget is required for void return type")
	}
	return nil
}

// NewSubmissionID returns a fresh globally unique 36-character identifier.
func NewSubmissionID() string {
	return uuid.NewString()
}

// SourceFingerprint hashes the submitted code for operator-side forensics.
func SourceFingerprint(code string) string {
	sum := blake3.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// TestCaseResult is the raw outcome of one test case. The engine records
// outputs, never judgment: Passed and ExpectedOutput stay null by contract.
type TestCaseResult struct {
	Index           int     `json:"index"`
	Passed          *bool   `json:"passed"`
	ActualOutput    string  `json:"actualOutput,omitempty"`
	ExpectedOutput  *string `json:"expectedOutput"`
	ExecutionTimeMs int64   `json:"executionTimeMs"`
	MemoryBytes     *int64  `json:"memoryBytes,omitempty"`
	Error           string  `json:"error,omitempty"`
	ErrorType       string  `json:"errorType,omitempty"`
}

// StatusRecord is the cache entry pollers read. Verdict is always null; the
// submission service owns judgment.
type StatusRecord struct {
	SubmissionID      string           `json:"submissionId"`
	Status            Status           `json:"status"`
	ExecutionStatus   ExecStatus       `json:"executionStatus,omitempty"`
	Verdict           *string          `json:"verdict"`
	RuntimeMs         *int64           `json:"runtimeMs,omitempty"`
	MemoryKb          *int64           `json:"memoryKb,omitempty"`
	CompilationOutput string           `json:"compilationOutput,omitempty"`
	ErrorMessage      string           `json:"errorMessage,omitempty"`
	TestCaseResults   []TestCaseResult `json:"testCaseResults"`
	QueuePosition     *int             `json:"queuePosition,omitempty"`
	SourceFingerprint string           `json:"sourceFingerprint,omitempty"`
	QueuedAt          time.Time        `json:"queuedAt"`
	StartedAt         *time.Time       `json:"startedAt,omitempty"`
	CompletedAt       *time.Time       `json:"completedAt,omitempty"`
	WorkerID          string           `json:"workerId,omitempty"`
}

// NewQueuedRecord builds the initial cache entry for an accepted submission.
func NewQueuedRecord(req *SubmissionRequest, now time.Time) *StatusRecord {
	return &StatusRecord{
		SubmissionID:      req.SubmissionID,
		Status:            StatusQueued,
		TestCaseResults:   []TestCaseResult{},
		SourceFingerprint: SourceFingerprint(req.Code),
		QueuedAt:          now.UTC(),
	}
}

// ExecutionResult is the orchestrator's output for one submission.
type ExecutionResult struct {
	Status            ExecStatus
	CompilationOutput string
	ErrorMessage      string
	TestCaseResults   []TestCaseResult
	RuntimeMs         int64
	PeakMemoryBytes   *int64
}
