package model

// Outcome classifies the terminal state of a backend attempt.
type Outcome string

const (
	// OutcomeComplete means the response parsed cleanly and passed the
	// completeness check.
	OutcomeComplete Outcome = "complete"
	// OutcomeEmpty means the backend asserted no findings; this is a
	// legitimate result, not a failure.
	OutcomeEmpty Outcome = "empty"
	// OutcomeTruncated means every tier was exhausted with the last
	// response still judged incomplete. Never silently backfilled.
	OutcomeTruncated Outcome = "truncated"
	// OutcomeFailed means no tier produced a usable response.
	OutcomeFailed Outcome = "failed"
)

// Attempt records the terminal backend call for one passage. Intermediate
// attempts live only inside the cascade; only the attempt that satisfied the
// passage (or exhausted the chain) is retained.
type Attempt struct {
	Tier         int         `json:"tier"`
	Backend      string      `json:"backend"`
	RawText      string      `json:"raw_text,omitempty"`
	Deliberation string      `json:"deliberation,omitempty"`
	Candidates   []Candidate `json:"candidates,omitempty"`
	Outcome      Outcome     `json:"outcome"`
	Escalated    bool        `json:"escalated"`
	FailureClass string      `json:"failure_class,omitempty"`
	Usage        TokenUsage  `json:"usage"`
}

// TokenUsage tallies token consumption for one or more backend calls.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}
