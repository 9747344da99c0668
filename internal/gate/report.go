// Package gate implements the quality gate: scoring reports produced by
// the quality specialist and the routing decision that moves a campaign
// forward, retries the stage, or rolls it back to an earlier specialist.
package gate

import (
	"fmt"
	"strings"
)

// Severity levels for quality issues, ordered most severe first.
type Severity string

const (
	SeverityCritical Severity = "/critical"
	SeverityHigh     Severity = "/high"
	SeverityMedium   Severity = "/medium"
	SeverityLow      Severity = "/low"
)

// Issue is a single finding in a quality report.
type Issue struct {
	Severity      Severity `json:"severity"`
	Category      string   `json:"category"` // technical, content, accessibility, performance, compatibility
	Description   string   `json:"description"`
	FixSuggestion string   `json:"fix_suggestion,omitempty"`
	AutoFixable   bool     `json:"auto_fixable"`
}

// Report is the outcome of one quality-stage invocation. Reports are
// never mutated; a retry supersedes the old report with a new one.
type Report struct {
	OverallScore    int            `json:"overall_score"` // 0-100, clamped on intake
	CategoryScores  map[string]int `json:"category_scores"`
	Issues          []Issue        `json:"issues"`
	PassedChecks    []string       `json:"passed_checks,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// CriticalIssues returns the issues with /critical severity, in report
// order.
func (r Report) CriticalIssues() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityCritical {
			out = append(out, is)
		}
	}
	return out
}

// Clamp bounds every score to [0,100]. Scores come from a best-effort
// upstream estimator, so out-of-range values are corrected rather than
// rejected.
func (r Report) Clamp() Report {
	next := r
	next.OverallScore = clampScore(r.OverallScore)
	if len(r.CategoryScores) > 0 {
		next.CategoryScores = make(map[string]int, len(r.CategoryScores))
		for k, v := range r.CategoryScores {
			next.CategoryScores[k] = clampScore(v)
		}
	}
	return next
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ParseReport builds a Report from an extracted record. Missing fields
// default to zero values; scores are clamped.
func ParseReport(record map[string]any) Report {
	r := Report{CategoryScores: make(map[string]int)}

	if v, ok := asInt(record["overall_score"]); ok {
		r.OverallScore = v
	}
	if scores, ok := record["category_scores"].(map[string]any); ok {
		for k, raw := range scores {
			if v, ok := asInt(raw); ok {
				r.CategoryScores[k] = v
			}
		}
	}
	if issues, ok := record["issues"].([]any); ok {
		for _, raw := range issues {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			r.Issues = append(r.Issues, parseIssue(m))
		}
	}
	r.PassedChecks = asStrings(record["passed_checks"])
	r.Recommendations = asStrings(record["recommendations"])

	return r.Clamp()
}

func parseIssue(m map[string]any) Issue {
	is := Issue{
		Severity:      normalizeSeverity(asString(m["severity"])),
		Category:      strings.ToLower(asString(m["category"])),
		Description:   asString(m["description"]),
		FixSuggestion: asString(m["fix_suggestion"]),
	}
	if b, ok := m["auto_fixable"].(bool); ok {
		is.AutoFixable = b
	}
	return is
}

// normalizeSeverity coerces free-form severity strings into the atom
// form, defaulting unknown values to /medium.
func normalizeSeverity(s string) Severity {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "/")
	switch v {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	case "low":
		return SeverityLow
	default:
		return SeverityMedium
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func asStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		out = append(out, asString(item))
	}
	return out
}
