package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

// Python generates a driver around a solution.py. The COMPILE phase is a
// real syntax check via py_compile, so COMPILATION_ERROR is reachable for an
// interpreted language.
type Python struct {
	image string
}

func NewPython(image string) *Python { return &Python{image: image} }

func (p *Python) Language() string { return "python" }
func (p *Python) Image() string    { return p.image }

func (p *Python) CompileArgv() []string {
	return []string{"python3", "-m", "py_compile", "solution.py", "main.py"}
}

func (p *Python) RunArgv() []string {
	return []string{"python3", "main.py"}
}

// Generate writes solution.py (user code verbatim), test_cases.json, and the
// generated main.py driver into workdir.
func (p *Python) Generate(req *model.SubmissionRequest, workdir string) error {
	if err := os.WriteFile(filepath.Join(workdir, "solution.py"), []byte(req.Code), 0o644); err != nil {
		return fmt.Errorf("write solution: %w", err)
	}
	cases, err := json.Marshal(req.TestCases)
	if err != nil {
		return fmt.Errorf("marshal test cases: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workdir, TestCasesFile), cases, 0o644); err != nil {
		return fmt.Errorf("write test cases: %w", err)
	}
	driver, err := p.driverSource(&req.Metadata)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(workdir, "main.py"), []byte(driver), 0o644); err != nil {
		return fmt.Errorf("write driver: %w", err)
	}
	return nil
}

func (p *Python) driverSource(meta *model.QuestionMetadata) (string, error) {
	var b strings.Builder
	b.WriteString(pyPrelude)

	shapes := usedShapes(meta)
	if name, ok := shapes[shapeList]; ok {
		b.WriteString(pyListHelpers(name))
	}
	if name, ok := shapes[shapeTree]; ok {
		b.WriteString(pyTreeHelpers(name))
	}
	if name, ok := shapes[shapeGraph]; ok {
		b.WriteString(pyGraphHelpers(name))
	}

	switch meta.QuestionType {
	case model.QuestionDesignClass:
		b.WriteString(pyDesignMain)
	default:
		if err := p.writeAlgorithmMain(&b, meta); err != nil {
			return "", err
		}
	}

	b.WriteString("\n\nif __name__ == \"__main__\":\n    main()\n")
	return b.String(), nil
}

func (p *Python) writeAlgorithmMain(b *strings.Builder, meta *model.QuestionMetadata) error {
	fmt.Fprintf(b, "\n_fn = getattr(_solution, %q)\n", meta.FunctionName)
	b.WriteString(`

def main():
    with open("test_cases.json") as f:
        cases = json.load(f)
    for i, case in enumerate(cases):
        t0 = None
        try:
            inp = case.get("input") or {}
`)
	// One conversion line per declared parameter, in declaration order.
	argNames := make([]string, 0, len(meta.Parameters))
	for idx, param := range meta.Parameters {
		v := fmt.Sprintf("_a%d", idx)
		argNames = append(argNames, v)
		fmt.Fprintf(b, "            %s = %s\n", v, pyConvertExpr(param, meta.CustomDataStructures))
	}
	b.WriteString("            t0 = time.perf_counter()\n")
	fmt.Fprintf(b, "            _result = _fn(%s)\n", strings.Join(argNames, ", "))
	b.WriteString("            dur = int((time.perf_counter() - t0) * 1000)\n")

	serialized, err := pySerializeExpr(meta, argNames)
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "            out = %s\n", serialized)
	b.WriteString(`            _emit(i, _b64(out), dur, "")
        except Exception as e:
            dur = int((time.perf_counter() - t0) * 1000) if t0 is not None else 0
            _emit(i, "", dur, _err_info(e))
`)
	return nil
}

// pyConvertExpr returns the expression that turns the raw JSON input value
// for one parameter into the value passed to the user function.
func pyConvertExpr(param model.Parameter, custom map[string]string) string {
	raw := fmt.Sprintf("inp.get(%q)", param.Name)
	spec := classify(param.Type, custom)
	builder := ""
	switch spec.shape {
	case shapeList:
		builder = "_build_list"
	case shapeTree:
		builder = "_build_tree"
	case shapeGraph:
		builder = "_build_graph"
	default:
		return raw
	}
	if spec.batch {
		return fmt.Sprintf("[%s(x) for x in (%s or [])]", builder, raw)
	}
	return fmt.Sprintf("%s(%s)", builder, raw)
}

// pySerializeExpr returns the expression serializing the logical output: the
// function result, or for void returns the post-call state of the mutation
// target parameter.
func pySerializeExpr(meta *model.QuestionMetadata, argNames []string) (string, error) {
	subject := "_result"
	declared := meta.ReturnType
	if strings.TrimSpace(declared) == "void" {
		found := false
		for idx, p := range meta.Parameters {
			if p.Name == meta.MutationTarget {
				subject = argNames[idx]
				declared = p.Type
				if meta.SerializationStrategy != "" {
					declared = meta.SerializationStrategy
				}
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("mutationTarget %q does not name a parameter", meta.MutationTarget)
		}
	}
	spec := classify(declared, meta.CustomDataStructures)
	values := ""
	switch spec.shape {
	case shapeList:
		values = "_list_values"
	case shapeTree:
		values = "_tree_values"
	case shapeGraph:
		values = "_graph_adjacency"
	default:
		return fmt.Sprintf("_ser_value(%s)", subject), nil
	}
	if spec.batch {
		return fmt.Sprintf("_dumps([%s(x) for x in (%s or [])])", values, subject), nil
	}
	return fmt.Sprintf("_dumps(%s(%s))", values, subject), nil
}

const pyPrelude = `import base64
import json
import sys
import time
from collections import deque

import solution as _solution


def _dumps(v):
    return json.dumps(v, separators=(",", ":"))


def _ser_value(v):
    if v is None:
        return "null"
    if isinstance(v, bool):
        return "true" if v else "false"
    if isinstance(v, str):
        return v
    if isinstance(v, (int, float)):
        return repr(v)
    return _dumps(v)


def _b64(s):
    return base64.b64encode(s.encode("utf-8")).decode("ascii")


def _err_info(e):
    msg = str(e).replace("\r", " ").replace("\n", " ")
    return "%s: %s" % (type(e).__name__, msg)


def _emit(i, out, dur, err):
    sys.stdout.write("TEST_CASE_RESULT: %d,%s,%d,%s\n" % (i, out, dur, err))
    sys.stdout.flush()
`

func pyListHelpers(name string) string {
	return fmt.Sprintf(`

class %[1]s:
    def __init__(self, val=0, next=None):
        self.val = val
        self.next = next


def _build_list(values):
    head = None
    tail = None
    for v in values or []:
        node = %[1]s(v)
        if head is None:
            head = node
        else:
            tail.next = node
        tail = node
    return head


def _list_values(head):
    out = []
    while head is not None:
        out.append(head.val)
        head = head.next
    return out
`, name)
}

func pyTreeHelpers(name string) string {
	return fmt.Sprintf(`

class %[1]s:
    def __init__(self, val=0, left=None, right=None):
        self.val = val
        self.left = left
        self.right = right


def _build_tree(values):
    values = list(values or [])
    if not values or values[0] is None:
        return None
    root = %[1]s(values[0])
    q = deque([root])
    i = 1
    while q and i < len(values):
        node = q.popleft()
        if i < len(values):
            v = values[i]
            i += 1
            if v is not None:
                node.left = %[1]s(v)
                q.append(node.left)
        if i < len(values):
            v = values[i]
            i += 1
            if v is not None:
                node.right = %[1]s(v)
                q.append(node.right)
    return root


def _tree_values(root):
    if root is None:
        return []
    out = []
    q = deque([root])
    while q:
        node = q.popleft()
        if node is None:
            out.append(None)
            continue
        out.append(node.val)
        q.append(node.left)
        q.append(node.right)
    while out and out[-1] is None:
        out.pop()
    return out
`, name)
}

func pyGraphHelpers(name string) string {
	// Nodes are built keyed by 1-based value and edges resolved in a second
	// pass, so cyclic structures never require recursive construction.
	return fmt.Sprintf(`

class %[1]s:
    def __init__(self, val=0, neighbors=None):
        self.val = val
        self.neighbors = neighbors if neighbors is not None else []


def _build_graph(adjacency):
    adjacency = adjacency or []
    if not adjacency:
        return None
    nodes = {i + 1: %[1]s(i + 1) for i in range(len(adjacency))}
    for i, neighbors in enumerate(adjacency):
        nodes[i + 1].neighbors = [nodes[n] for n in neighbors or []]
    return nodes[1]


def _graph_adjacency(node):
    if node is None:
        return []
    seen = {}
    q = deque([node])
    seen[id(node)] = node
    order = []
    while q:
        cur = q.popleft()
        order.append(cur)
        for n in cur.neighbors:
            if id(n) not in seen:
                seen[id(n)] = n
                q.append(n)
    adjacency = [[] for _ in order]
    for cur in order:
        adjacency[cur.val - 1] = [n.val for n in cur.neighbors]
    return adjacency
`, name)
}

// pyDesignMain drives DESIGN_CLASS problems: the first operation names the
// constructor, the rest are method calls replayed against one instance. One
// marker per sequence carries the vector of results.
const pyDesignMain = `

def main():
    with open("test_cases.json") as f:
        cases = json.load(f)
    for i, case in enumerate(cases):
        t0 = None
        try:
            inp = case.get("input") or {}
            ops = inp.get("operations") or []
            args = inp.get("arguments") or []
            if not ops:
                raise ValueError("operations must not be empty")
            cls = getattr(_solution, ops[0])
            t0 = time.perf_counter()
            obj = cls(*(args[0] if args else []))
            results = [None]
            for op, a in zip(ops[1:], args[1:]):
                results.append(getattr(obj, op)(*(a or [])))
            dur = int((time.perf_counter() - t0) * 1000)
            out = json.dumps(results, separators=(",", ":"), default=str)
            _emit(i, _b64(out), dur, "")
        except Exception as e:
            dur = int((time.perf_counter() - t0) * 1000) if t0 is not None else 0
            _emit(i, "", dur, _err_info(e))
`
