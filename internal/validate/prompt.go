package validate

import (
	"fmt"
	"strings"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/extract"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
)

const validationSystemPrompt = `You are a careful scholar of biblical Hebrew reviewing figurative language classifications. For each numbered finding, judge each claimed category independently. Respond with a ` + extract.DeliberationMarker + ` section explaining your reasoning, then a ` + extract.FindingsMarker + ` section containing a JSON array of verdicts.

Each verdict object must have exactly these keys:
  "id": the finding id, echoed verbatim
  "category": the category under review, echoed verbatim
  "decision": "confirmed", "rejected", or "reclassified"
  "new_category": required only when decision is "reclassified"; one of metaphor, simile, personification, idiom, hyperbole, metonymy, other
  "reason": one sentence of justification

Emit one verdict object per (id, category) pair listed. Do not add pairs that were not listed.`

// buildPrompt renders the batched validation request for one passage: the
// passage text, then every candidate with its claimed categories.
func buildPrompt(passage model.Passage, candidates []model.Candidate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Passage %s\n", passage.Reference())
	if passage.HebrewText != "" {
		fmt.Fprintf(&b, "Hebrew: %s\n", passage.HebrewText)
	}
	if passage.EnglishText != "" {
		fmt.Fprintf(&b, "English: %s\n", passage.EnglishText)
	}
	if passage.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", passage.Context)
	}
	b.WriteString("\nFindings to review:\n")

	for _, c := range candidates {
		cats := c.PositiveCategories()
		if len(cats) == 0 {
			continue
		}
		names := make([]string, len(cats))
		for i, cat := range cats {
			names[i] = string(cat)
		}
		fmt.Fprintf(&b, "\nid: %d\ncategories claimed: %s\ntext: %s\nexplanation: %s\nconfidence: %.2f\n",
			c.CorrelationID, strings.Join(names, ", "), c.FigurativeText, c.Explanation, c.Confidence)
	}

	return b.String()
}
