// Package extract turns free-text model output into a structured result.
// The heuristics here are best-effort by nature; the orchestrator only
// depends on the Result shape, so a schema-constrained backend can replace
// this package without touching the batch loop.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// summaryLen bounds the leading excerpt used when no clear summary line exists
const summaryLen = 200

// Result is the structured form of one model response.
type Result struct {
	Summary   string
	Findings  []string
	FixedCode string
}

var (
	jsonFenceRe = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{[\\s\\S]*\\})\\s*```")
	jsonObjRe   = regexp.MustCompile(`(?s)(\{.*\})`)
	codeFenceRe = regexp.MustCompile("```[a-zA-Z0-9_+-]*[ \\t]*\\r?\\n?([\\s\\S]*?)```")

	// Vulnerability-tag shape: a classification identifier immediately
	// followed by a colon or dash. The prefix vocabulary is fixed.
	findingRe = regexp.MustCompile(`(CWE-\d+|CVE-\d{4}-\d+|OWASP-A\d+(?::\d{4})?|GHSA-[a-z0-9]{4}-[a-z0-9]{4}-[a-z0-9]{4})\s*[:-]`)
)

// structuredPayload is the JSON shape the prompt templates ask the model for.
type structuredPayload struct {
	FixedCode string   `json:"fixed_code"`
	Summary   string   `json:"summary"`
	Findings  []string `json:"findings"`
}

// Extract parses raw model output. A structured JSON payload is preferred;
// anything else falls back to line and tag heuristics. Extraction never
// fails: degenerate output yields an empty (but valid) result.
func Extract(raw string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{Findings: []string{}}
	}

	if res, ok := extractStructured(raw); ok {
		return res
	}

	return Result{
		Summary:   extractSummary(raw),
		Findings:  extractFindings(raw),
		FixedCode: ExtractCode(raw),
	}
}

// extractStructured tries to interpret the response as the requested JSON
// object, tolerating a code-fence wrapper around it.
func extractStructured(raw string) (Result, bool) {
	candidate := raw
	if m := jsonFenceRe.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	}

	var payload structuredPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		// Last resort: first JSON object embedded in surrounding prose
		m := jsonObjRe.FindStringSubmatch(raw)
		if m == nil {
			return Result{}, false
		}
		if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
			return Result{}, false
		}
	}

	if payload.Summary == "" && payload.FixedCode == "" && len(payload.Findings) == 0 {
		return Result{}, false
	}

	res := Result{
		Summary:   payload.Summary,
		Findings:  dedupe(payload.Findings),
		FixedCode: payload.FixedCode,
	}
	if res.Summary == "" {
		res.Summary = extractSummary(raw)
	}
	if len(res.Findings) == 0 {
		res.Findings = extractFindings(res.Summary + "\n" + raw)
	}
	if res.FixedCode == "" {
		res.FixedCode = ExtractCode(raw)
	}
	return res, true
}

// extractSummary returns the first non-empty line, bounded to summaryLen.
func extractSummary(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > summaryLen {
			return line[:summaryLen]
		}
		return line
	}
	if len(raw) > summaryLen {
		return raw[:summaryLen]
	}
	return raw
}

// extractFindings returns the distinct vulnerability tags in first-seen order.
func extractFindings(raw string) []string {
	matches := findingRe.FindAllStringSubmatch(raw, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return dedupe(tags)
}

// ExtractCode returns the code to persist for a response: the first fenced
// code block if one exists, otherwise the full trimmed response.
func ExtractCode(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}

// dedupe removes duplicates while preserving first-seen order. The result
// is never nil so empty findings serialize as an empty sequence.
func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
