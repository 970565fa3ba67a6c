package model

// Decision is the outcome of one validation pass over one (candidate,
// category) pair.
type Decision string

const (
	DecisionConfirmed    Decision = "confirmed"
	DecisionRejected     Decision = "rejected"
	DecisionReclassified Decision = "reclassified"
)

// Verdict records one validation decision. It is traceable to its candidate
// purely via CorrelationID plus the echoed category name.
type Verdict struct {
	CorrelationID int      `json:"id"`
	Category      Category `json:"category"`
	Decision      Decision `json:"decision"`
	// NewCategory is set only for reclassifications and always names a
	// member of the closed set distinct from Category.
	NewCategory Category `json:"new_category,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// verdictRequiredKeys is the key set a fully formed verdict record carries.
// new_category and reason are conditional and not required.
var verdictRequiredKeys = []string{
	"id",
	"category",
	"decision",
}

// VerdictRequiredKeys returns the required key set for a verdict record.
func VerdictRequiredKeys() []string {
	return verdictRequiredKeys
}
