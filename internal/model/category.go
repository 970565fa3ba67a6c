package model

// Category identifies one type of figurative language.
type Category string

// The closed category set. Validation may reclassify a detection into any
// other member of this set, never outside it.
const (
	CategoryMetaphor        Category = "metaphor"
	CategorySimile          Category = "simile"
	CategoryPersonification Category = "personification"
	CategoryIdiom           Category = "idiom"
	CategoryHyperbole       Category = "hyperbole"
	CategoryMetonymy        Category = "metonymy"
	CategoryOther           Category = "other"
)

// AllCategories returns the closed category set in canonical order.
func AllCategories() []Category {
	return []Category{
		CategoryMetaphor,
		CategorySimile,
		CategoryPersonification,
		CategoryIdiom,
		CategoryHyperbole,
		CategoryMetonymy,
		CategoryOther,
	}
}

// ValidCategory reports whether s names a member of the closed set.
func ValidCategory(s string) bool {
	for _, c := range AllCategories() {
		if string(c) == s {
			return true
		}
	}
	return false
}
