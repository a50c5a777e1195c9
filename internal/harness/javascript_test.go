package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

func TestJavaScriptGenerateWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	req := &model.SubmissionRequest{
		SubmissionID: "test-submission",
		Language:     "javascript",
		Code:         "function add(a, b) { return a + b; }",
		Metadata: model.QuestionMetadata{
			FunctionName: "add",
			ReturnType:   "number",
			QuestionType: model.QuestionAlgorithm,
			Parameters:   []model.Parameter{{Name: "a", Type: "number"}, {Name: "b", Type: "number"}},
		},
		TestCases: []model.TestCase{{Input: map[string]any{"a": 1, "b": 2}}},
	}
	if err := NewJavaScript("node:20-slim").Generate(req, dir); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sol, _ := os.ReadFile(filepath.Join(dir, "solution.js"))
	if !strings.HasPrefix(string(sol), req.Code) {
		t.Fatalf("solution must start with the user's code verbatim")
	}
	if !strings.Contains(string(sol), `module.exports["add"] = add;`) {
		t.Fatalf("export shim missing:\n%s", sol)
	}
	driver, _ := os.ReadFile(filepath.Join(dir, "main.js"))
	d := string(driver)
	for _, want := range []string{
		`_solution["add"]`,
		`inp["a"]`,
		"TEST_CASE_RESULT: ",
		"_serValue(_result)",
	} {
		if !strings.Contains(d, want) {
			t.Fatalf("driver missing %q:\n%s", want, d)
		}
	}
}

func TestJavaScriptTreeDriver(t *testing.T) {
	dir := t.TempDir()
	req := &model.SubmissionRequest{
		SubmissionID: "test-submission",
		Language:     "javascript",
		Code:         "function invertTree(root) { return root; }",
		Metadata: model.QuestionMetadata{
			FunctionName: "invertTree",
			ReturnType:   "TreeNode",
			QuestionType: model.QuestionAlgorithm,
			Parameters:   []model.Parameter{{Name: "root", Type: "TreeNode"}},
		},
		TestCases: []model.TestCase{{Input: map[string]any{"root": []any{1, 2, 3}}}},
	}
	if err := NewJavaScript("node:20-slim").Generate(req, dir); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	driver, _ := os.ReadFile(filepath.Join(dir, "main.js"))
	d := string(driver)
	for _, want := range []string{
		"class TreeNode {",
		`const _a0 = _buildTree(inp["root"]);`,
		"JSON.stringify(_treeValues(_result))",
	} {
		if !strings.Contains(d, want) {
			t.Fatalf("driver missing %q:\n%s", want, d)
		}
	}
}

func TestJavaScriptCompileIsSyntaxCheck(t *testing.T) {
	j := NewJavaScript("node:20-slim")
	argv := strings.Join(j.CompileArgv(), " ")
	if argv != "node --check solution.js" {
		t.Fatalf("compile argv = %q", argv)
	}
}
