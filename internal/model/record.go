package model

// Record is the persisted union of a candidate and its verdicts. Final is
// recomputed from the verdicts on every write, never patched in place.
type Record struct {
	Candidate Candidate         `json:"candidate"`
	Verdicts  []Verdict         `json:"verdicts"`
	Final     map[Category]bool `json:"final"`
	// OverallPositive is false when no category survived validation; the
	// candidate is still recorded for audit.
	OverallPositive bool `json:"overall_positive"`
}

// NewRecord computes the final category set for a candidate from its
// verdicts. A category is final-true when an original slot on the candidate
// was confirmed, or when it is the target of a reclassification originating
// from a different slot.
func NewRecord(c Candidate, verdicts []Verdict) Record {
	final := make(map[Category]bool, len(AllCategories()))
	for _, cat := range AllCategories() {
		final[cat] = false
	}
	for _, v := range verdicts {
		if v.CorrelationID != c.CorrelationID {
			continue
		}
		switch v.Decision {
		case DecisionConfirmed:
			final[v.Category] = true
		case DecisionReclassified:
			if v.NewCategory != "" && v.NewCategory != v.Category {
				final[v.NewCategory] = true
			}
		}
	}

	positive := false
	for _, on := range final {
		if on {
			positive = true
			break
		}
	}

	return Record{
		Candidate:       c,
		Verdicts:        verdicts,
		Final:           final,
		OverallPositive: positive,
	}
}
