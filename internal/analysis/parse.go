package analysis

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"codesense/pkg/models"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```")
	fencedAnyRe  = regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n```")
)

// extractJSONBlock pulls the JSON payload out of a model answer. Fenced
// blocks win over raw text because models often wrap JSON in prose.
func extractJSONBlock(text string) string {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fencedAnyRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// parseReport decodes a model answer into an analysis report. Anything the
// model got wrong, missing keys, wrong value types, malformed JSON, is
// repaired or replaced with a fallback so callers always get a full report.
func parseReport(text, source string) *models.AnalysisReport {
	payload := extractJSONBlock(text)

	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return parseFailureReport(source)
	}

	report := &models.AnalysisReport{
		Errors:        parseErrorItems(raw["errors"]),
		Suggestions:   stringList(raw["suggestions"]),
		Optimizations: stringList(raw["optimizations"]),
		Output:        stringOr(raw["output"], ""),
	}

	if len(report.Suggestions) == 0 {
		report.Suggestions = []string{"No suggestions available"}
	}
	if len(report.Optimizations) == 0 {
		report.Optimizations = []string{"No optimizations suggested"}
	}
	if report.Output == "" {
		report.Output = "No output detected"
	}

	if qm, ok := raw["quality_metrics"].(map[string]any); ok {
		report.QualityMetrics = models.QualityMetrics{
			Summary:          stringOr(qm["summary"], ""),
			SecurityIssues:   stringList(qm["security_issues"]),
			Recommendations:  stringList(qm["recommendations"]),
			SecurityAnalysis: stringOr(qm["security_analysis"], ""),
		}
	}

	return report
}

func parseErrorItems(v any) []models.ErrorItem {
	list, ok := v.([]any)
	if !ok {
		return []models.ErrorItem{}
	}
	items := make([]models.ErrorItem, 0, len(list))
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := models.ErrorItem{
			Line:     intOr(obj["line"], 1),
			Message:  stringOr(obj["message"], "Unknown error"),
			Severity: stringOr(obj["severity"], "error"),
		}
		items = append(items, item)
	}
	return items
}

func stringList(v any) []string {
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if vv == "" {
			return nil
		}
		return []string{vv}
	default:
		return nil
	}
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func intOr(v any, fallback int) int {
	switch vv := v.(type) {
	case float64:
		return int(vv)
	case string:
		if n, err := strconv.Atoi(vv); err == nil {
			return n
		}
	}
	return fallback
}

// hasOutputStatement detects print-like statements so fallbacks can at least
// say whether output was expected.
func hasOutputStatement(source string) bool {
	lowered := strings.ToLower(source)
	for _, marker := range []string{"print", "console.log", "system.out", "printf", "cout", "fmt.print"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func parseFailureReport(source string) *models.AnalysisReport {
	output := "No output detected"
	if hasOutputStatement(source) {
		output = "The code contains output statements but prediction failed"
	}
	return &models.AnalysisReport{
		Errors:        []models.ErrorItem{},
		Suggestions:   []string{"AI response could not be parsed; try again"},
		Optimizations: []string{"No optimizations suggested"},
		Output:        output,
	}
}

func providerErrorReport(err error) *models.AnalysisReport {
	return &models.AnalysisReport{
		Errors:        []models.ErrorItem{},
		Suggestions:   []string{"AI analysis unavailable: " + err.Error()},
		Optimizations: []string{"No optimizations suggested"},
		Output:        "No output detected",
	}
}

func blockedReport(reason string) *models.AnalysisReport {
	return &models.AnalysisReport{
		Errors:        []models.ErrorItem{},
		Suggestions:   []string{"AI analysis was blocked: " + reason},
		Optimizations: []string{"No optimizations suggested"},
		Output:        "No output detected",
	}
}
