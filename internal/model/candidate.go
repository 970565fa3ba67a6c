package model

import "strings"

// Candidate is a structurally parsed, not-yet-validated detection from a
// backend response. Candidates are read-only after extraction; validation
// verdicts reference them via CorrelationID, which is unique within a passage.
type Candidate struct {
	CorrelationID int `json:"id"`

	// Category flags as emitted by the detection pass.
	Figurative      bool `json:"figurative_language"`
	Metaphor        bool `json:"metaphor"`
	Simile          bool `json:"simile"`
	Personification bool `json:"personification"`
	Idiom           bool `json:"idiom"`
	Hyperbole       bool `json:"hyperbole"`
	Metonymy        bool `json:"metonymy"`
	Other           bool `json:"other"`

	FigurativeText string  `json:"figurative_text"`
	Explanation    string  `json:"explanation"`
	Speaker        string  `json:"speaker"`
	Purpose        string  `json:"purpose"`
	Confidence     float64 `json:"confidence"`
}

// candidateRequiredKeys is the key set a fully formed detection record carries.
// The completeness detector treats a balanced array whose records carry all of
// these as conclusive evidence of a complete response.
var candidateRequiredKeys = []string{
	"figurative_language",
	"figurative_text",
	"explanation",
	"confidence",
}

// CandidateRequiredKeys returns the required key set for a detection record.
func CandidateRequiredKeys() []string {
	return candidateRequiredKeys
}

// DecodeCandidate builds a Candidate from a raw parsed record. Backends emit
// flags as "yes"/"no" strings or booleans; absent flags default to false and
// absent text fields to "", so downstream code never null-checks fields.
// The correlation id falls back to ordinal when the record omits one.
func DecodeCandidate(raw map[string]any, ordinal int) Candidate {
	c := Candidate{
		CorrelationID:   ordinal,
		Figurative:      truthy(raw["figurative_language"]),
		Metaphor:        truthy(raw["metaphor"]),
		Simile:          truthy(raw["simile"]),
		Personification: truthy(raw["personification"]),
		Idiom:           truthy(raw["idiom"]),
		Hyperbole:       truthy(raw["hyperbole"]),
		Metonymy:        truthy(raw["metonymy"]),
		Other:           truthy(raw["other"]),
		FigurativeText:  stringField(raw, "figurative_text"),
		Explanation:     stringField(raw, "explanation"),
		Speaker:         stringField(raw, "speaker"),
		Purpose:         stringField(raw, "purpose"),
	}
	if id, ok := toInt(raw["id"]); ok {
		c.CorrelationID = id
	}
	if conf, ok := toFloat(raw["confidence"]); ok {
		c.Confidence = conf
	}
	// Any positive device flag implies the gate flag.
	if len(c.PositiveCategories()) > 0 {
		c.Figurative = true
	}
	return c
}

// DecodeCandidates decodes a parsed findings array, assigning ordinal
// correlation ids where records omit them and deduplicating colliding ids
// so ids stay unique within the passage.
func DecodeCandidates(records []map[string]any) []Candidate {
	out := make([]Candidate, 0, len(records))
	seen := make(map[int]bool, len(records))
	next := 1
	for _, raw := range records {
		c := DecodeCandidate(raw, next)
		for seen[c.CorrelationID] {
			c.CorrelationID = next
			next++
		}
		seen[c.CorrelationID] = true
		if c.CorrelationID >= next {
			next = c.CorrelationID + 1
		}
		out = append(out, c)
	}
	return out
}

// CategoryFlag returns the flag value for one category.
func (c Candidate) CategoryFlag(cat Category) bool {
	switch cat {
	case CategoryMetaphor:
		return c.Metaphor
	case CategorySimile:
		return c.Simile
	case CategoryPersonification:
		return c.Personification
	case CategoryIdiom:
		return c.Idiom
	case CategoryHyperbole:
		return c.Hyperbole
	case CategoryMetonymy:
		return c.Metonymy
	case CategoryOther:
		return c.Other
	default:
		return false
	}
}

// PositiveCategories returns the categories flagged true on the candidate,
// in canonical order.
func (c Candidate) PositiveCategories() []Category {
	var out []Category
	for _, cat := range AllCategories() {
		if c.CategoryFlag(cat) {
			out = append(out, cat)
		}
	}
	return out
}

// truthy normalizes the value shapes backends emit for flags: booleans,
// "yes"/"no", "true"/"false". Anything else is false.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "true", "y":
			return true
		}
	}
	return false
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
