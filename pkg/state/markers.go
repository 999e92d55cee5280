package state

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	planRe    = regexp.MustCompile(`<ml_plan>([\s\S]*?)</ml_plan>`)
	metricsRe = regexp.MustCompile(`METRICS_JSON:\s*(\{[^}]+\})`)
)

// ExtractPlan pulls the plan body out of an orchestrator response. Returns
// the trimmed content between the markers, or "" when no plan is present.
func ExtractPlan(text string) string {
	m := planRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// HasTaskSummary reports whether an agent response contains the task
// completion marker. The full response text is kept as the summary, not
// just the marker body.
func HasTaskSummary(text string) bool {
	return strings.Contains(text, "<task_summary>")
}

// ExtractMetrics finds a METRICS_JSON line in tool output and parses the
// inline object. Returns nil when the marker is absent or the payload does
// not parse; a malformed payload never fails the command.
func ExtractMetrics(text string) map[string]any {
	m := metricsRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(m[1]), &out); err != nil {
		return nil
	}
	return out
}
