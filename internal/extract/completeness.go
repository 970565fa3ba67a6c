package extract

import (
	"strings"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
)

// Completeness is the detector's judgement of a response.
type Completeness struct {
	Truncated bool
	// Reason names the predicate that fired, empty when complete.
	Reason string
}

// affirmativePhrases signal in the deliberation text that the backend found
// figurative language. An affirmative deliberation paired with an empty
// findings array indicates the array was cut off before any record was
// written.
var affirmativePhrases = []string{
	"clearly figurative",
	"is figurative",
	"contains a metaphor",
	"contains figurative",
	"identified a metaphor",
	"identified figurative",
	"this is a metaphor",
	"this is a simile",
	"personification here",
	"instance of figurative",
}

// predicate inspects a response and reports whether it looks cut off.
// Predicates run in order; the first to fire names the reason.
type predicate struct {
	name  string
	apply func(raw, deliberation string, records []map[string]any, extracted bool) bool
}

// truncationPredicates is the ordered suspicion table. Order matters only
// for which reason gets reported; any firing predicate marks the response
// truncated unless the well-formed override holds.
var truncationPredicates = []predicate{
	{
		name: "dangling_deliberation",
		apply: func(_, deliberation string, _ []map[string]any, _ bool) bool {
			return deliberation != "" && !endsTerminally(deliberation)
		},
	},
	{
		name: "affirmative_with_empty_findings",
		apply: func(_, deliberation string, records []map[string]any, extracted bool) bool {
			if !extracted || len(records) > 0 {
				return false
			}
			lower := strings.ToLower(deliberation)
			for _, phrase := range affirmativePhrases {
				if strings.Contains(lower, phrase) {
					return true
				}
			}
			return false
		},
	},
	{
		name: "missing_findings_section",
		apply: func(raw, _ string, _ []map[string]any, extracted bool) bool {
			return HasDeliberationSection(raw) && !HasFindingsSection(raw) && !extracted
		},
	},
	{
		name: "unbalanced_structure",
		apply: func(raw, _ string, _ []map[string]any, extracted bool) bool {
			if extracted {
				return false
			}
			start := strings.Index(raw, "[")
			if start < 0 {
				return false
			}
			_, balanced := balancedArray(raw[start:])
			return !balanced
		},
	},
}

// DetectCompleteness judges whether a response was cut off mid-generation.
// A successfully extracted array whose every record carries the full
// required key set is taken as complete no matter what the surrounding prose
// looks like; models routinely end their deliberation mid-sentence and still
// emit a whole array. Without that override, the first firing suspicion
// predicate marks the response truncated.
//
// requiredKeys names the key set the caller expects per record; detection
// and validation responses carry different shapes. Nil falls back to
// detection record keys.
func DetectCompleteness(raw string, records []map[string]any, extracted bool, requiredKeys []string) Completeness {
	if len(requiredKeys) == 0 {
		requiredKeys = model.CandidateRequiredKeys()
	}
	if extracted && wellFormedRecords(records, requiredKeys) {
		return Completeness{}
	}

	deliberation := Deliberation(raw)
	for _, p := range truncationPredicates {
		if p.apply(raw, deliberation, records, extracted) {
			return Completeness{Truncated: true, Reason: p.name}
		}
	}
	return Completeness{}
}

// wellFormedRecords reports whether every record carries the full required
// key set. An empty array is well formed only when something in the text
// asserts emptiness; otherwise emptiness proves nothing either way and the
// suspicion predicates decide.
func wellFormedRecords(records []map[string]any, requiredKeys []string) bool {
	if len(records) == 0 {
		return false
	}
	for _, rec := range records {
		for _, key := range requiredKeys {
			if _, ok := rec[key]; !ok {
				return false
			}
		}
	}
	return true
}

// endsTerminally reports whether text ends with sentence-terminating
// punctuation, allowing for closing quotes and parentheses after the
// terminator.
func endsTerminally(text string) bool {
	text = strings.TrimSpace(text)
	for len(text) > 0 {
		last := text[len(text)-1]
		switch last {
		case '"', '\'', ')', ']', '*':
			text = text[:len(text)-1]
			continue
		}
		break
	}
	if text == "" {
		return false
	}
	switch text[len(text)-1] {
	case '.', '!', '?', ':':
		return true
	}
	// Hebrew sof pasuq terminates quoted verse text.
	return strings.HasSuffix(text, "׃")
}
