// Package extract turns free-form text-provider output into validated
// structured records. Generative providers routinely wrap JSON in prose
// or markdown fences, quote it, or truncate it mid-object; this package
// recovers what it can and synthesizes a schema-shaped fallback when it
// cannot, always tagging the result with its provenance so downstream
// code never silently trusts a degraded record.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"adcraft/internal/logging"
)

// Provenance describes how a record was obtained.
type Provenance string

const (
	ProvenanceParsed    Provenance = "/parsed"    // Direct parse after unwrapping
	ProvenanceRecovered Provenance = "/recovered" // Parsed after truncation repair
	ProvenanceFallback  Provenance = "/fallback"  // Synthesized placeholder
)

// Result is a validated structured record plus its provenance flag.
type Result struct {
	Field      string         `json:"field"`
	Record     map[string]any `json:"record"`
	Provenance Provenance     `json:"provenance"`
}

// Degraded reports whether the record is anything other than a clean
// parse. Degraded results surface as data-quality warnings, not errors.
func (r Result) Degraded() bool {
	return r.Provenance != ProvenanceParsed
}

// Extractor recovers structured records for named fields. Each known
// field maps to a fallback shape: the keys a synthesized record carries
// when recovery fails outright.
type Extractor struct {
	fallbacks map[string][]string
}

// NewExtractor creates an extractor with the fallback shapes for every
// field the pipeline's specialists produce.
func NewExtractor() *Extractor {
	return &Extractor{
		fallbacks: map[string][]string{
			"content_draft":     {"headline", "body", "call_to_action", "keywords", "tone"},
			"design_selection":  {"template", "selected_assets", "color_palette", "layout_notes"},
			"quality_report":    {"overall_score", "category_scores", "issues", "passed_checks", "recommendations"},
			"delivery_manifest": {"artifacts", "channel", "notes"},
		},
	}
}

// RegisterField adds (or replaces) a fallback shape for a field name.
func (e *Extractor) RegisterField(field string, keys []string) {
	e.fallbacks[field] = keys
}

// Extract converts raw provider output into a structured record for the
// named field. It never fails for malformed input; the only error is an
// unrecognized field name, for which no fallback shape exists.
func (e *Extractor) Extract(field, raw string) (Result, error) {
	keys, known := e.fallbacks[field]
	if !known {
		return Result{}, fmt.Errorf("unknown extraction field %q", field)
	}

	log := logging.Get(logging.CategoryExtract)

	cleaned := stripWrappers(raw)
	if strings.TrimSpace(cleaned) == "" {
		log.Warn("Empty provider output for field %s, using fallback", field)
		return e.fallback(field, keys), nil
	}

	// Attempt 1: direct parse of the unwrapped text.
	if record, ok := parseObject(cleaned); ok {
		return Result{Field: field, Record: record, Provenance: ProvenanceParsed}, nil
	}

	// Attempt 2: balanced-bracket truncation repair.
	if repaired, ok := repairTruncation(cleaned); ok {
		if record, ok := parseObject(repaired); ok {
			log.Info("Recovered truncated record for field %s", field)
			return Result{Field: field, Record: record, Provenance: ProvenanceRecovered}, nil
		}
	}

	// Attempt 3: schema-shaped fallback.
	log.Warn("Extraction failed for field %s, synthesizing fallback record", field)
	return e.fallback(field, keys), nil
}

// fallback builds the placeholder record for a field.
func (e *Extractor) fallback(field string, keys []string) Result {
	record := make(map[string]any, len(keys))
	for _, k := range keys {
		record[k] = placeholderFor(k)
	}
	return Result{Field: field, Record: record, Provenance: ProvenanceFallback}
}

// placeholderFor picks a neutral placeholder value by key convention:
// plural keys get empty arrays, score keys get zero, everything else
// gets a pending marker.
func placeholderFor(key string) any {
	switch {
	case strings.HasSuffix(key, "_scores"):
		return map[string]any{}
	case strings.HasSuffix(key, "score"):
		return float64(0)
	case strings.HasSuffix(key, "s"):
		return []any{}
	default:
		return "pending"
	}
}

// parseObject attempts a strict JSON object parse.
func parseObject(s string) (map[string]any, bool) {
	var record map[string]any
	if err := json.Unmarshal([]byte(s), &record); err != nil {
		return nil, false
	}
	return record, true
}

// stripWrappers removes markdown code fences and a single layer of
// outer quoting, then trims to the outermost JSON object if prose
// surrounds it.
func stripWrappers(raw string) string {
	s := strings.TrimSpace(raw)

	// Fenced code block: keep only the fence body.
	if idx := strings.Index(s, "```"); idx != -1 {
		rest := s[idx+3:]
		// Language tag on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			first := strings.TrimSpace(rest[:nl])
			if first == "json" || first == "" {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end != -1 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	// Single outer quoting around the whole object.
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
			s = strings.TrimSpace(unquoted)
		}
	}

	// Prose around the object: cut to the first opening brace. The
	// closing side is handled by the parse or the repair pass.
	if start := strings.IndexByte(s, '{'); start > 0 {
		s = s[start:]
	}

	return s
}

// repairTruncation walks the text tracking brace/bracket depth outside
// string literals. If the depth never returns to zero, it either
// truncates at the last position where a closing brace brought the
// depth back to zero, or appends the minimum closers needed to balance.
func repairTruncation(s string) (string, bool) {
	depth := 0
	lastBalanced := -1
	inString := false
	escaped := false
	var stack []byte

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
			stack = append(stack, '}')
		case '[':
			depth++
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				// Mismatched closer: unrepairable here.
				return "", false
			}
			stack = stack[:len(stack)-1]
			depth--
			if depth == 0 && ch == '}' {
				lastBalanced = i
			}
		}
	}

	if depth == 0 && !inString {
		// Balanced but still unparseable; nothing to repair.
		return "", false
	}

	if lastBalanced != -1 {
		return s[:lastBalanced+1], true
	}

	// Truncation inside an array is not repairable: appending brackets
	// would invent elements. Callers fall back instead.
	for _, closer := range stack {
		if closer == ']' {
			return "", false
		}
	}

	// No balanced prefix exists: close the open string, then append
	// the pending closers innermost-first.
	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), true
}
