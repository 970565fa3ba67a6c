package model

// UnitOutcome is the per-passage entry in a batch outcome report.
type UnitOutcome struct {
	Ref        string  `json:"ref"`
	Outcome    Outcome `json:"outcome"`
	Tier       int     `json:"tier,omitempty"`
	Candidates int     `json:"candidates"`
	Positive   int     `json:"positive"`
	Error      string  `json:"error,omitempty"`
}

// Summary is the batch-level result returned by the processor. Unresolved
// truncations are reported separately from errors so they can be queued for
// reprocessing rather than mistaken for clean empty results.
type Summary struct {
	Processed           int           `json:"processed"`
	Succeeded           int           `json:"succeeded"`
	Failed              int           `json:"failed"`
	TruncatedUnresolved int           `json:"truncated_unresolved"`
	Units               []UnitOutcome `json:"units"`
	Usage               TokenUsage    `json:"usage"`
	EstimatedCostUSD    float64       `json:"estimated_cost_usd"`
}
