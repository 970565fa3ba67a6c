package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCandidate_YesNoFlags(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"id":                  float64(4),
		"figurative_language": "yes",
		"metaphor":            "yes",
		"simile":              "no",
		"figurative_text":     "the LORD is my shepherd",
		"explanation":         "God portrayed as a shepherd",
		"confidence":          0.9,
	}

	c := DecodeCandidate(raw, 1)

	assert.Equal(t, 4, c.CorrelationID)
	assert.True(t, c.Figurative)
	assert.True(t, c.Metaphor)
	assert.False(t, c.Simile)
	assert.Equal(t, "the LORD is my shepherd", c.FigurativeText)
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)
}

func TestDecodeCandidate_DefaultsMissingFields(t *testing.T) {
	t.Parallel()

	c := DecodeCandidate(map[string]any{"metaphor": true}, 7)

	assert.Equal(t, 7, c.CorrelationID)
	assert.True(t, c.Metaphor)
	assert.False(t, c.Simile)
	assert.False(t, c.Hyperbole)
	assert.Empty(t, c.FigurativeText)
	assert.Empty(t, c.Speaker)
	assert.Zero(t, c.Confidence)
	// Device flag implies the gate flag.
	assert.True(t, c.Figurative)
}

func TestDecodeCandidates_AssignsUniqueIDs(t *testing.T) {
	t.Parallel()

	records := []map[string]any{
		{"metaphor": "yes"},
		{"simile": "yes"},
		{"id": float64(2), "idiom": "yes"}, // collides with ordinal 2
	}

	out := DecodeCandidates(records)
	require.Len(t, out, 3)

	seen := make(map[int]bool)
	for _, c := range out {
		assert.False(t, seen[c.CorrelationID], "duplicate correlation id %d", c.CorrelationID)
		seen[c.CorrelationID] = true
	}
}

func TestCandidate_PositiveCategories(t *testing.T) {
	t.Parallel()

	c := Candidate{Simile: true, Metonymy: true}
	assert.Equal(t, []Category{CategorySimile, CategoryMetonymy}, c.PositiveCategories())
}

func TestValidCategory(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidCategory("metaphor"))
	assert.True(t, ValidCategory("other"))
	assert.False(t, ValidCategory("figurative_language"))
	assert.False(t, ValidCategory("sarcasm"))
}
