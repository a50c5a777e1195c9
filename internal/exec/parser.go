package exec

import (
	"bufio"
	"encoding/base64"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/harness"
	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

// prematureTermination fills test-case slots the harness never reported,
// e.g. when the process was killed mid-run.
const prematureTermination = "PrematureTermination"

// ParseMarkers scans merged process output for marker lines and returns one
// result per submitted test case, in index order. Lines that are not markers
// are ignored, so user print output is tolerated; malformed markers are
// logged and skipped. Missing indices are gap-filled.
func ParseMarkers(output string, numCases int, logger *zap.Logger) []model.TestCaseResult {
	found := make(map[int]model.TestCaseResult)

	sc := bufio.NewScanner(strings.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, harness.MarkerPrefix) {
			continue
		}
		res, ok := parseMarkerLine(strings.TrimPrefix(line, harness.MarkerPrefix))
		if !ok {
			logger.Warn("malformed marker line skipped", zap.String("line", line))
			continue
		}
		if res.Index < 0 || res.Index >= numCases {
			logger.Warn("marker index out of range", zap.Int("index", res.Index))
			continue
		}
		found[res.Index] = res
	}

	results := make([]model.TestCaseResult, numCases)
	for i := 0; i < numCases; i++ {
		if res, ok := found[i]; ok {
			results[i] = res
			continue
		}
		results[i] = model.TestCaseResult{
			Index:           i,
			Error:           prematureTermination,
			ExecutionTimeMs: 0,
		}
	}
	return results
}

// parseMarkerLine splits the post-prefix body into exactly four fields,
// preserving any extra commas in the last one. The output field is base64
// on the wire, so it can never collide with the delimiters.
func parseMarkerLine(body string) (model.TestCaseResult, bool) {
	parts := strings.SplitN(body, ",", 4)
	if len(parts) != 4 {
		return model.TestCaseResult{}, false
	}
	index, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return model.TestCaseResult{}, false
	}
	durationMs, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		return model.TestCaseResult{}, false
	}

	res := model.TestCaseResult{Index: index, ExecutionTimeMs: durationMs}

	encoded := strings.TrimSpace(parts[1])
	errorInfo := strings.TrimSpace(parts[3])

	if encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return model.TestCaseResult{}, false
		}
		// Output present: prefer the success interpretation even when an
		// error field also appeared.
		res.ActualOutput = string(decoded)
		return res, true
	}
	if errorInfo != "" {
		errType, errMsg := splitErrorInfo(errorInfo)
		res.ErrorType = errType
		res.Error = errMsg
	}
	return res, true
}

// splitErrorInfo splits "<ErrorTypeName>: <message>" at the first colon.
func splitErrorInfo(info string) (string, string) {
	idx := strings.Index(info, ":")
	if idx < 0 {
		return info, ""
	}
	return strings.TrimSpace(info[:idx]), strings.TrimSpace(info[idx+1:])
}
