package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

func pythonRequest(meta model.QuestionMetadata) *model.SubmissionRequest {
	return &model.SubmissionRequest{
		SubmissionID: "test-submission",
		Language:     "python",
		Code:         "def add(a, b):\n    return a + b\n",
		Metadata:     meta,
		TestCases: []model.TestCase{
			{Input: map[string]any{"a": 1, "b": 2}},
		},
	}
}

func TestPythonGenerateWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	req := pythonRequest(model.QuestionMetadata{
		FunctionName: "add",
		ReturnType:   "int",
		QuestionType: model.QuestionAlgorithm,
		Parameters:   []model.Parameter{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}},
	})
	if err := NewPython("python:3.12-slim").Generate(req, dir); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, f := range []string{"solution.py", "main.py", TestCasesFile} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Fatalf("missing artifact %s: %v", f, err)
		}
	}
	sol, _ := os.ReadFile(filepath.Join(dir, "solution.py"))
	if string(sol) != req.Code {
		t.Fatalf("solution must be the user's code verbatim")
	}
	driver, _ := os.ReadFile(filepath.Join(dir, "main.py"))
	d := string(driver)
	for _, want := range []string{
		`_fn = getattr(_solution, "add")`,
		`inp.get("a")`,
		`inp.get("b")`,
		"TEST_CASE_RESULT: ",
		"_ser_value(_result)",
	} {
		if !strings.Contains(d, want) {
			t.Fatalf("driver missing %q:\n%s", want, d)
		}
	}
	// No custom shapes declared, so no builders should be emitted.
	if strings.Contains(d, "_build_list") || strings.Contains(d, "_build_graph") {
		t.Fatalf("unexpected shape helpers in driver")
	}
}

func TestPythonGraphDriver(t *testing.T) {
	dir := t.TempDir()
	req := pythonRequest(model.QuestionMetadata{
		FunctionName:         "cloneGraph",
		ReturnType:           "GraphNode",
		QuestionType:         model.QuestionAlgorithm,
		Parameters:           []model.Parameter{{Name: "node", Type: "GraphNode"}},
		CustomDataStructures: map[string]string{"GraphNode": "Node"},
	})
	if err := NewPython("python:3.12-slim").Generate(req, dir); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	driver, _ := os.ReadFile(filepath.Join(dir, "main.py"))
	d := string(driver)
	for _, want := range []string{
		"class Node:",
		`_a0 = _build_graph(inp.get("node"))`,
		"_dumps(_graph_adjacency(_result))",
	} {
		if !strings.Contains(d, want) {
			t.Fatalf("driver missing %q:\n%s", want, d)
		}
	}
}

func TestPythonBatchListParameter(t *testing.T) {
	dir := t.TempDir()
	req := pythonRequest(model.QuestionMetadata{
		FunctionName: "mergeKLists",
		ReturnType:   "ListNode",
		QuestionType: model.QuestionAlgorithm,
		Parameters:   []model.Parameter{{Name: "lists", Type: "List[ListNode]"}},
	})
	if err := NewPython("python:3.12-slim").Generate(req, dir); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	driver, _ := os.ReadFile(filepath.Join(dir, "main.py"))
	d := string(driver)
	if !strings.Contains(d, `[_build_list(x) for x in (inp.get("lists") or [])]`) {
		t.Fatalf("batch conversion missing:\n%s", d)
	}
	if !strings.Contains(d, "_dumps(_list_values(_result))") {
		t.Fatalf("list return serializer missing:\n%s", d)
	}
}

func TestPythonVoidReturnUsesMutationTarget(t *testing.T) {
	dir := t.TempDir()
	req := pythonRequest(model.QuestionMetadata{
		FunctionName:   "reorderList",
		ReturnType:     "void",
		QuestionType:   model.QuestionAlgorithm,
		MutationTarget: "head",
		Parameters:     []model.Parameter{{Name: "head", Type: "ListNode"}},
	})
	if err := NewPython("python:3.12-slim").Generate(req, dir); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	driver, _ := os.ReadFile(filepath.Join(dir, "main.py"))
	if !strings.Contains(string(driver), "_dumps(_list_values(_a0))") {
		t.Fatalf("void return must serialize the mutation target parameter:\n%s", driver)
	}
}

func TestPythonVoidReturnUnknownTargetFails(t *testing.T) {
	dir := t.TempDir()
	req := pythonRequest(model.QuestionMetadata{
		FunctionName:   "reorderList",
		ReturnType:     "void",
		QuestionType:   model.QuestionAlgorithm,
		MutationTarget: "nope",
		Parameters:     []model.Parameter{{Name: "head", Type: "ListNode"}},
	})
	if err := NewPython("python:3.12-slim").Generate(req, dir); err == nil {
		t.Fatalf("expected error for mutation target that is not a parameter")
	}
}

func TestPythonDesignClassDriver(t *testing.T) {
	dir := t.TempDir()
	req := pythonRequest(model.QuestionMetadata{
		FunctionName: "MinStack",
		ReturnType:   "void",
		QuestionType: model.QuestionDesignClass,
	})
	req.TestCases = []model.TestCase{{Input: map[string]any{
		"operations": []any{"MinStack", "push", "top"},
		"arguments":  []any{[]any{}, []any{5}, []any{}},
	}}}
	if err := NewPython("python:3.12-slim").Generate(req, dir); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	driver, _ := os.ReadFile(filepath.Join(dir, "main.py"))
	d := string(driver)
	for _, want := range []string{
		`ops = inp.get("operations") or []`,
		"cls = getattr(_solution, ops[0])",
		"results = [None]",
	} {
		if !strings.Contains(d, want) {
			t.Fatalf("design driver missing %q:\n%s", want, d)
		}
	}
}

func TestPythonCommands(t *testing.T) {
	p := NewPython("python:3.12-slim")
	if p.Image() != "python:3.12-slim" {
		t.Fatalf("image = %q", p.Image())
	}
	compile := strings.Join(p.CompileArgv(), " ")
	if !strings.Contains(compile, "py_compile") {
		t.Fatalf("compile must be a real syntax check, got %q", compile)
	}
	run := strings.Join(p.RunArgv(), " ")
	if run != "python3 main.py" {
		t.Fatalf("run argv = %q", run)
	}
}
