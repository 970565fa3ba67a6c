// Package extract turns raw backend response text into structured findings
// and judges whether a response is complete or truncated. Backends are asked
// to produce a free-text deliberation section followed by a labelled JSON
// findings array; in practice the text arrives fenced, unlabelled, truncated,
// or wrapped in commentary, so extraction applies an ordered list of
// strategies and returns the first success.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/resilience"
)

// Section markers the detection and validation prompts instruct backends to
// emit. Matching is case-insensitive.
const (
	DeliberationMarker = "DELIBERATION:"
	FindingsMarker     = "FINDINGS:"
)

// alternate findings markers seen in the wild from backends that ignore the
// exact label.
var findingsMarkers = []string{FindingsMarker, "OUTPUT:", "JSON:", "RESULTS:"}

// noFindingsPhrases are textual assertions of an empty result. A response
// containing one of these with no parseable array maps to an empty array,
// not a failure.
var noFindingsPhrases = []string{
	"no figurative language",
	"no instances of figurative language",
	"no findings",
	"none found",
	"contains no figurative",
	"is not figurative",
	"nothing figurative",
}

// ExtractArray parses the findings array out of raw response text. Strategies
// are tried in order: fenced code block, labelled section, balanced-bracket
// scan, common-defect repair, explicit empty-result recognition. Returns
// resilience.ErrNoStructure when every strategy fails; it never panics and
// never guesses partial data.
func ExtractArray(raw string) ([]map[string]any, error) {
	if records, ok := fromFencedBlock(raw); ok {
		return records, nil
	}
	if records, ok := fromLabelledSection(raw); ok {
		return records, nil
	}
	if records, ok := fromBalancedScan(raw); ok {
		return records, nil
	}
	if records, ok := fromRepairedDefects(raw); ok {
		return records, nil
	}
	if ok := assertsNoFindings(raw); ok {
		return []map[string]any{}, nil
	}
	return nil, resilience.ErrNoStructure
}

// Deliberation returns the free-text deliberation section of a response:
// the text between the deliberation marker (or the start of the response)
// and the findings section.
func Deliberation(raw string) string {
	text := raw
	if idx := markerIndex(text, DeliberationMarker); idx >= 0 {
		text = text[idx+len(DeliberationMarker):]
	}
	if idx, _ := firstFindingsMarker(text); idx >= 0 {
		text = text[:idx]
	} else if idx := strings.Index(text, "["); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// HasDeliberationSection reports whether the response carries an explicit
// deliberation label.
func HasDeliberationSection(raw string) bool {
	return markerIndex(raw, DeliberationMarker) >= 0
}

// HasFindingsSection reports whether the response carries any findings label.
func HasFindingsSection(raw string) bool {
	idx, _ := firstFindingsMarker(raw)
	return idx >= 0
}

// --- strategy 1: fenced code block ---

func fromFencedBlock(raw string) ([]map[string]any, bool) {
	text := raw
	for {
		start := strings.Index(text, "```")
		if start < 0 {
			return nil, false
		}
		rest := text[start+3:]
		// Skip the language tag (e.g. "json") up to the first newline.
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			if tag := strings.TrimSpace(rest[:nl]); tag == "" || len(tag) <= 10 && !strings.ContainsAny(tag, "[]{}") {
				rest = rest[nl+1:]
			}
		}
		end := strings.Index(rest, "```")
		block := rest
		if end >= 0 {
			block = rest[:end]
		}
		if records, ok := parseRecords(block); ok {
			return records, true
		}
		// Truncated fences leave no closing marker; don't loop forever.
		if end < 0 {
			return nil, false
		}
		text = rest[end+3:]
	}
}

// --- strategy 2: labelled section ---

func fromLabelledSection(raw string) ([]map[string]any, bool) {
	idx, marker := firstFindingsMarker(raw)
	if idx < 0 {
		return nil, false
	}
	section := raw[idx+len(marker):]
	if arr, ok := balancedArray(section); ok {
		if records, ok := parseRecords(arr); ok {
			return records, true
		}
	}
	return nil, false
}

// --- strategy 3: balanced-bracket scan ---

func fromBalancedScan(raw string) ([]map[string]any, bool) {
	text := raw
	for {
		start := strings.Index(text, "[")
		if start < 0 {
			return nil, false
		}
		if arr, ok := balancedArray(text[start:]); ok {
			if records, okParse := parseRecords(arr); okParse {
				return records, true
			}
		}
		text = text[start+1:]
	}
}

// balancedArray scans from the first '[' for a syntactically balanced array,
// tracking quoted-string state so brackets inside quoted text (common in
// scripture excerpts) do not break the count.
func balancedArray(text string) (string, bool) {
	start := strings.Index(text, "[")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		if c == '\\' && inString {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// --- strategy 4: common-defect repair ---

// bareKeyRe matches unquoted object keys ({key: or ,key:).
var bareKeyRe = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// trailingCommaRe matches a comma before a closing bracket or brace.
var trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)

func fromRepairedDefects(raw string) ([]map[string]any, bool) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	candidate := raw[start : end+1]
	candidate = trailingCommaRe.ReplaceAllString(candidate, "$1")
	candidate = bareKeyRe.ReplaceAllString(candidate, `$1"$2":`)
	return parseRecords(candidate)
}

// --- strategy 5: explicit empty-result recognition ---

func assertsNoFindings(raw string) bool {
	lower := strings.ToLower(raw)
	for _, phrase := range noFindingsPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// --- helpers ---

// parseRecords unmarshals text as an array of objects. A bare object is
// accepted and wrapped, since backends occasionally emit a single record
// where an array was requested.
func parseRecords(text string) ([]map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	var records []map[string]any
	if err := json.Unmarshal([]byte(text), &records); err == nil {
		if records == nil {
			records = []map[string]any{}
		}
		return records, true
	}

	var single map[string]any
	if err := json.Unmarshal([]byte(text), &single); err == nil {
		return []map[string]any{single}, true
	}

	return nil, false
}

func markerIndex(raw, marker string) int {
	return strings.Index(strings.ToUpper(raw), strings.ToUpper(marker))
}

func firstFindingsMarker(raw string) (int, string) {
	best := -1
	bestMarker := ""
	for _, m := range findingsMarkers {
		if idx := markerIndex(raw, m); idx >= 0 && (best < 0 || idx < best) {
			best = idx
			bestMarker = m
		}
	}
	return best, bestMarker
}
