package pipeline

import (
	"fmt"
	"strings"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/extract"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
)

const detectionSystemPrompt = `You are a scholar of biblical Hebrew analyzing verses for figurative language. Work through the verse first, then report findings.

Respond in exactly two sections. First a ` + extract.DeliberationMarker + ` section: your reasoning about what, if anything, is figurative in this verse. Then a ` + extract.FindingsMarker + ` section: a JSON array of finding objects, or [] if the verse contains no figurative language.

Each finding object must carry these keys:
  "id": integer, unique within this response, starting at 1
  "figurative_language": "yes" or "no"
  "metaphor", "simile", "personification", "idiom", "hyperbole", "metonymy", "other": "yes" or "no" each
  "figurative_text": the exact words from the verse
  "explanation": why this is figurative
  "speaker": who utters the words, or "narrator"
  "purpose": what the figure accomplishes
  "confidence": 0.0 to 1.0

Judge against the plain sense of the Hebrew; do not count ordinary anthropomorphic idioms of divine action as personification unless the imagery is developed.`

// buildDetectionPrompt renders one passage for the detection pass.
func buildDetectionPrompt(p model.Passage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Passage %s\n", p.Reference())
	if p.HebrewText != "" {
		fmt.Fprintf(&b, "Hebrew: %s\n", p.HebrewText)
	}
	if p.EnglishText != "" {
		fmt.Fprintf(&b, "English: %s\n", p.EnglishText)
	}
	if p.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", p.Context)
	}
	return b.String()
}
