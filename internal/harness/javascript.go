package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

// JavaScript generates a driver around a solution.js. `node --check` gives
// the COMPILE phase a real syntax pass.
type JavaScript struct {
	image string
}

func NewJavaScript(image string) *JavaScript { return &JavaScript{image: image} }

func (j *JavaScript) Language() string { return "javascript" }
func (j *JavaScript) Image() string    { return j.image }

func (j *JavaScript) CompileArgv() []string {
	return []string{"node", "--check", "solution.js"}
}

func (j *JavaScript) RunArgv() []string {
	return []string{"node", "main.js"}
}

// Generate writes solution.js (user code plus an export shim),
// test_cases.json, and the generated main.js driver into workdir.
func (j *JavaScript) Generate(req *model.SubmissionRequest, workdir string) error {
	source := req.Code + jsExportShim(&req.Metadata)
	if err := os.WriteFile(filepath.Join(workdir, "solution.js"), []byte(source), 0o644); err != nil {
		return fmt.Errorf("write solution: %w", err)
	}
	cases, err := json.Marshal(req.TestCases)
	if err != nil {
		return fmt.Errorf("marshal test cases: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workdir, TestCasesFile), cases, 0o644); err != nil {
		return fmt.Errorf("write test cases: %w", err)
	}
	driver, err := j.driverSource(&req.Metadata)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(workdir, "main.js"), []byte(driver), 0o644); err != nil {
		return fmt.Errorf("write driver: %w", err)
	}
	return nil
}

// jsExportShim makes the user's function or class reachable via require()
// without forcing users to write module.exports themselves.
func jsExportShim(meta *model.QuestionMetadata) string {
	name := strings.TrimSpace(meta.FunctionName)
	if name == "" {
		return ""
	}
	return fmt.Sprintf("\n\ntry { module.exports[%q] = %s; } catch (e) {}\n", name, name)
}

func (j *JavaScript) driverSource(meta *model.QuestionMetadata) (string, error) {
	var b strings.Builder
	b.WriteString(jsPrelude)

	shapes := usedShapes(meta)
	if name, ok := shapes[shapeList]; ok {
		b.WriteString(jsListHelpers(name))
	}
	if name, ok := shapes[shapeTree]; ok {
		b.WriteString(jsTreeHelpers(name))
	}
	if name, ok := shapes[shapeGraph]; ok {
		b.WriteString(jsGraphHelpers(name))
	}

	switch meta.QuestionType {
	case model.QuestionDesignClass:
		b.WriteString(jsDesignMain)
	default:
		if err := j.writeAlgorithmMain(&b, meta); err != nil {
			return "", err
		}
	}

	b.WriteString("\nmain();\n")
	return b.String(), nil
}

func (j *JavaScript) writeAlgorithmMain(b *strings.Builder, meta *model.QuestionMetadata) error {
	fmt.Fprintf(b, "\nconst _fn = typeof _solution === \"function\" ? _solution : _solution[%q];\n", meta.FunctionName)
	b.WriteString(`
function main() {
  const cases = JSON.parse(fs.readFileSync("test_cases.json", "utf8"));
  for (let i = 0; i < cases.length; i++) {
    let t0 = null;
    try {
      const inp = (cases[i] && cases[i].input) || {};
`)
	argNames := make([]string, 0, len(meta.Parameters))
	for idx, param := range meta.Parameters {
		v := fmt.Sprintf("_a%d", idx)
		argNames = append(argNames, v)
		fmt.Fprintf(b, "      const %s = %s;\n", v, jsConvertExpr(param, meta.CustomDataStructures))
	}
	b.WriteString("      t0 = process.hrtime.bigint();\n")
	fmt.Fprintf(b, "      const _result = _fn(%s);\n", strings.Join(argNames, ", "))
	b.WriteString("      const dur = _elapsedMs(t0);\n")

	serialized, err := jsSerializeExpr(meta, argNames)
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "      const out = %s;\n", serialized)
	b.WriteString(`      _emit(i, _b64(out), dur, "");
    } catch (e) {
      _emit(i, "", t0 === null ? 0 : _elapsedMs(t0), _errInfo(e));
    }
  }
}
`)
	return nil
}

func jsConvertExpr(param model.Parameter, custom map[string]string) string {
	raw := fmt.Sprintf("inp[%q]", param.Name)
	spec := classify(param.Type, custom)
	builder := ""
	switch spec.shape {
	case shapeList:
		builder = "_buildList"
	case shapeTree:
		builder = "_buildTree"
	case shapeGraph:
		builder = "_buildGraph"
	default:
		return raw
	}
	if spec.batch {
		return fmt.Sprintf("(%s || []).map((x) => %s(x))", raw, builder)
	}
	return fmt.Sprintf("%s(%s)", builder, raw)
}

func jsSerializeExpr(meta *model.QuestionMetadata, argNames []string) (string, error) {
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
		values = "_listValues"
	case shapeTree:
		values = "_treeValues"
	case shapeGraph:
		values = "_graphAdjacency"
	default:
		return fmt.Sprintf("_serValue(%s)", subject), nil
	}
	if spec.batch {
		return fmt.Sprintf("JSON.stringify((%s || []).map((x) => %s(x)))", subject, values), nil
	}
	return fmt.Sprintf("JSON.stringify(%s(%s))", values, subject), nil
}

const jsPrelude = `"use strict";
const fs = require("fs");
const _solution = require("./solution.js");

function _serValue(v) {
  if (v === null || v === undefined) return "null";
  if (typeof v === "boolean") return v ? "true" : "false";
  if (typeof v === "string") return v;
  if (typeof v === "number") return String(v);
  return JSON.stringify(v);
}

function _b64(s) {
  return Buffer.from(s, "utf8").toString("base64");
}

function _errInfo(e) {
  const name = (e && e.name) || "Error";
  const msg = String((e && e.message) || e).replace(/[\r\n]+/g, " ");
  return name + ": " + msg;
}

function _elapsedMs(t0) {
  return Number((process.hrtime.bigint() - t0) / 1000000n);
}

function _emit(i, out, dur, err) {
  process.stdout.write("TEST_CASE_RESULT: " + i + "," + out + "," + dur + "," + err + "\n");
}
`

func jsListHelpers(name string) string {
	return fmt.Sprintf(`
class %[1]s {
  constructor(val = 0, next = null) {
    this.val = val;
    this.next = next;
  }
}

function _buildList(values) {
  let head = null;
  let tail = null;
  for (const v of values || []) {
    const node = new %[1]s(v);
    if (head === null) head = node;
    else tail.next = node;
    tail = node;
  }
  return head;
}

function _listValues(head) {
  const out = [];
  while (head !== null && head !== undefined) {
    out.push(head.val);
    head = head.next;
  }
  return out;
}
`, name)
}

func jsTreeHelpers(name string) string {
	return fmt.Sprintf(`
class %[1]s {
  constructor(val = 0, left = null, right = null) {
    this.val = val;
    this.left = left;
    this.right = right;
  }
}

function _buildTree(values) {
  values = values || [];
  if (values.length === 0 || values[0] === null) return null;
  const root = new %[1]s(values[0]);
  const q = [root];
  let i = 1;
  while (q.length > 0 && i < values.length) {
    const node = q.shift();
    if (i < values.length) {
      const v = values[i++];
      if (v !== null) {
        node.left = new %[1]s(v);
        q.push(node.left);
      }
    }
    if (i < values.length) {
      const v = values[i++];
      if (v !== null) {
        node.right = new %[1]s(v);
        q.push(node.right);
      }
    }
  }
  return root;
}

function _treeValues(root) {
  if (root === null || root === undefined) return [];
  const out = [];
  const q = [root];
  while (q.length > 0) {
    const node = q.shift();
    if (node === null || node === undefined) {
      out.push(null);
      continue;
    }
    out.push(node.val);
    q.push(node.left);
    q.push(node.right);
  }
  while (out.length > 0 && out[out.length - 1] === null) out.pop();
  return out;
}
`, name)
}

func jsGraphHelpers(name string) string {
	return fmt.Sprintf(`
class %[1]s {
  constructor(val = 0, neighbors = null) {
    this.val = val;
    this.neighbors = neighbors === null ? [] : neighbors;
  }
}

function _buildGraph(adjacency) {
  adjacency = adjacency || [];
  if (adjacency.length === 0) return null;
  const nodes = new Map();
  for (let i = 0; i < adjacency.length; i++) nodes.set(i + 1, new %[1]s(i + 1));
  for (let i = 0; i < adjacency.length; i++) {
    nodes.get(i + 1).neighbors = (adjacency[i] || []).map((n) => nodes.get(n));
  }
  return nodes.get(1);
}

function _graphAdjacency(node) {
  if (node === null || node === undefined) return [];
  const seen = new Set([node]);
  const q = [node];
  const order = [];
  while (q.length > 0) {
    const cur = q.shift();
    order.push(cur);
    for (const n of cur.neighbors) {
      if (!seen.has(n)) {
        seen.add(n);
        q.push(n);
      }
    }
  }
  const adjacency = order.map(() => []);
  for (const cur of order) {
    adjacency[cur.val - 1] = cur.neighbors.map((n) => n.val);
  }
  return adjacency;
}
`, name)
}

const jsDesignMain = `
function main() {
  const cases = JSON.parse(fs.readFileSync("test_cases.json", "utf8"));
  for (let i = 0; i < cases.length; i++) {
    let t0 = null;
    try {
      const inp = (cases[i] && cases[i].input) || {};
      const ops = inp.operations || [];
      const args = inp.arguments || [];
      if (ops.length === 0) throw new Error("operations must not be empty");
      const cls = _solution[ops[0]] || (typeof _solution === "function" ? _solution : undefined);
      if (typeof cls !== "function") throw new Error("constructor " + ops[0] + " not found");
      t0 = process.hrtime.bigint();
      const obj = new cls(...(args[0] || []));
      const results = [null];
      for (let k = 1; k < ops.length; k++) {
        const r = obj[ops[k]](...(args[k] || []));
        results.push(r === undefined ? null : r);
      }
      const dur = _elapsedMs(t0);
      const out = JSON.stringify(results);
      _emit(i, _b64(out), dur, "");
    } catch (e) {
      _emit(i, "", t0 === null ? 0 : _elapsedMs(t0), _errInfo(e));
    }
  }
}
`
