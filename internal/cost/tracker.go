// Package cost accumulates token usage and estimated spend across workers.
package cost

import (
	"sync"
	"sync/atomic"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
)

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates maps backend names (e.g. "gemini/gemini-2.5-flash") to pricing.
type Rates map[string]ModelRate

// DefaultRates returns pricing for the default tier models.
func DefaultRates() Rates {
	return Rates{
		"gemini/gemini-2.5-flash":              {Input: 0.30, Output: 2.50},
		"gemini/gemini-2.5-pro":                {Input: 1.25, Output: 10.00},
		"anthropic/claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
	}
}

// counters is one backend's running tally. All fields are atomic so workers
// accumulate without a lock.
type counters struct {
	calls  atomic.Int64
	input  atomic.Int64
	output atomic.Int64
}

// Tracker accumulates usage per backend across concurrent workers.
type Tracker struct {
	rates Rates

	mu       sync.RWMutex
	backends map[string]*counters
}

// NewTracker creates a tracker with the given pricing.
func NewTracker(rates Rates) *Tracker {
	if rates == nil {
		rates = DefaultRates()
	}
	return &Tracker{
		rates:    rates,
		backends: make(map[string]*counters),
	}
}

// Record adds one call's usage for a backend.
func (t *Tracker) Record(backend string, usage model.TokenUsage) {
	c := t.get(backend)
	c.calls.Add(1)
	c.input.Add(int64(usage.InputTokens))
	c.output.Add(int64(usage.OutputTokens))
}

func (t *Tracker) get(backend string) *counters {
	t.mu.RLock()
	c, ok := t.backends[backend]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.backends[backend]; ok {
		return c
	}
	c = &counters{}
	t.backends[backend] = c
	return c
}

// BackendUsage is a point-in-time tally for one backend.
type BackendUsage struct {
	Backend          string  `json:"backend"`
	Calls            int64   `json:"calls"`
	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// Snapshot reports every backend's tally. Order is unspecified.
func (t *Tracker) Snapshot() []BackendUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]BackendUsage, 0, len(t.backends))
	for name, c := range t.backends {
		in := c.input.Load()
		outTok := c.output.Load()
		out = append(out, BackendUsage{
			Backend:          name,
			Calls:            c.calls.Load(),
			InputTokens:      in,
			OutputTokens:     outTok,
			EstimatedCostUSD: t.estimate(name, in, outTok),
		})
	}
	return out
}

// Total sums usage across all backends.
func (t *Tracker) Total() model.TokenUsage {
	var total model.TokenUsage
	for _, u := range t.Snapshot() {
		total.Add(model.TokenUsage{
			InputTokens:  int(u.InputTokens),
			OutputTokens: int(u.OutputTokens),
		})
	}
	return total
}

// EstimatedCostUSD sums estimated spend across all backends. Backends with
// no configured rate contribute zero.
func (t *Tracker) EstimatedCostUSD() float64 {
	total := 0.0
	for _, u := range t.Snapshot() {
		total += u.EstimatedCostUSD
	}
	return total
}

func (t *Tracker) estimate(backend string, input, output int64) float64 {
	rate, ok := t.rates[backend]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}
