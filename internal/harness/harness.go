// Package harness generates per-language driver sources that feed typed test
// inputs to the user's function and emit one marker line per test case.
//
// The marker wire format is shared with the orchestrator's parser:
//
//	TEST_CASE_RESULT: <index>,<actualOutput-base64>,<durationMs>,<errorInfo>
//
// The actual output is base64-encoded so the four comma-separated fields stay
// unambiguous even when the serialized value or the error message contains
// commas.
package harness

import (
	"fmt"
	"strings"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

// MarkerPrefix starts every per-test-case result line.
const MarkerPrefix = "TEST_CASE_RESULT: "

// TestCasesFile is the JSON file of inputs the driver reads from the workdir.
const TestCasesFile = "test_cases.json"

// Adapter generates sources and knows how to compile and run them for one
// language. Adding a language means adding an adapter, not touching the
// orchestrator.
type Adapter interface {
	// Language is the request-facing identifier, e.g. "python".
	Language() string
	// Image is the toolchain image the sandbox should use.
	Image() string
	// Generate writes the solution, the driver and the test-case file into
	// workdir.
	Generate(req *model.SubmissionRequest, workdir string) error
	// CompileArgv is the COMPILE phase command, relative to the mount.
	CompileArgv() []string
	// RunArgv is the RUN phase command, relative to the mount.
	RunArgv() []string
}

// Registry maps language identifiers to adapters.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: map[string]Adapter{}}
	for _, a := range adapters {
		r.adapters[strings.ToLower(a.Language())] = a
	}
	return r
}

// Lookup returns the adapter for a language, or an error naming the
// supported set.
func (r *Registry) Lookup(language string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q (supported: %s)", language, strings.Join(r.Languages(), ", "))
	}
	return a, nil
}

func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	return out
}

// shape classifies a declared parameter or return type against the canonical
// custom data structures.
type shape int

const (
	shapePlain shape = iota
	shapeList        // singly-linked list
	shapeTree        // binary tree, level order
	shapeGraph       // undirected graph, adjacency list
)

var canonicalShapes = map[string]shape{
	"ListNode":  shapeList,
	"TreeNode":  shapeTree,
	"GraphNode": shapeGraph,
}

// typeSpec is the result of classifying one declared type.
type typeSpec struct {
	shape shape
	// batch is true when the declared type is a list of the canonical shape,
	// so the outer JSON array is a batch of shapes.
	batch bool
	// concrete is the type name user code uses for the canonical shape.
	concrete string
}

// classify matches a declared type name against the canonical shapes,
// honoring the customDataStructures mapping. A declared "List of canonical"
// marks the outer JSON array as a batch.
func classify(declared string, custom map[string]string) typeSpec {
	t := strings.TrimSpace(declared)
	for canonical, sh := range canonicalShapes {
		concrete := canonical
		if c, ok := custom[canonical]; ok && strings.TrimSpace(c) != "" {
			concrete = strings.TrimSpace(c)
		}
		if !mentionsType(t, canonical) && !mentionsType(t, concrete) {
			continue
		}
		return typeSpec{shape: sh, batch: isListWrapper(t), concrete: concrete}
	}
	return typeSpec{shape: shapePlain}
}

// mentionsType reports whether declared names typ directly or inside a
// wrapper like List[typ] or Optional[typ].
func mentionsType(declared, typ string) bool {
	if declared == typ {
		return true
	}
	for _, sep := range []string{"[", "]", "<", ">", ",", " "} {
		declared = strings.ReplaceAll(declared, sep, "|")
	}
	for _, part := range strings.Split(declared, "|") {
		if part == typ {
			return true
		}
	}
	return false
}

// isListWrapper reports whether the outermost construct of declared is a
// list. Optional[...] is transparent, not a batch.
func isListWrapper(declared string) bool {
	t := strings.TrimSpace(declared)
	for strings.HasPrefix(t, "Optional[") && strings.HasSuffix(t, "]") {
		t = strings.TrimSpace(t[len("Optional[") : len(t)-1])
	}
	switch {
	case strings.HasSuffix(t, "[]"):
		return true
	case strings.HasPrefix(t, "List[") || strings.HasPrefix(t, "list[") || strings.HasPrefix(t, "List<"):
		return true
	default:
		return false
	}
}

// usedShapes collects every canonical shape the request touches, across
// parameters and the return type, so generators can emit only the helper
// classes a submission needs.
func usedShapes(meta *model.QuestionMetadata) map[shape]string {
	out := map[shape]string{}
	consider := func(declared string) {
		spec := classify(declared, meta.CustomDataStructures)
		if spec.shape != shapePlain {
			out[spec.shape] = spec.concrete
		}
	}
	for _, p := range meta.Parameters {
		consider(p.Type)
	}
	consider(meta.ReturnType)
	return out
}
