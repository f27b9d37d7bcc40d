package pricing

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1000)

	// snapshotSuffix matches the stamps OpenAI appends to pinned models:
	// "-2024-08-06" or "-0613".
	snapshotSuffix = regexp.MustCompile(`^-(\d{4}-\d{2}-\d{2}|\d{4})$`)
)

// Rate is a model's price in fractional cents per 1K tokens.
type Rate struct {
	InputPer1K  decimal.Decimal
	OutputPer1K decimal.Decimal
}

// Table maps a model identifier to its rate.
type Table map[string]Rate

// DefaultTable returns the built-in OpenAI rates.
func DefaultTable() Table {
	return Table{
		"gpt-4":         rate("3", "6"),
		"gpt-4-turbo":   rate("1", "3"),
		"gpt-4o":        rate("0.25", "1"),
		"gpt-4o-mini":   rate("0.015", "0.06"),
		"gpt-3.5-turbo": rate("0.05", "0.15"),
	}
}

func rate(input, output string) Rate {
	return Rate{
		InputPer1K:  decimal.RequireFromString(input),
		OutputPer1K: decimal.RequireFromString(output),
	}
}

// Calculator turns token counts into whole cents. It is immutable and safe
// for concurrent use.
type Calculator struct {
	table    Table
	fallback Rate
}

// NewCalculator builds a calculator over table, or DefaultTable when empty.
// Unknown models are billed at the highest input and output rates found.
func NewCalculator(table Table) *Calculator {
	if len(table) == 0 {
		table = DefaultTable()
	}
	copied := make(Table, len(table))
	fallback := Rate{InputPer1K: decimal.Zero, OutputPer1K: decimal.Zero}
	for model, r := range table {
		copied[normalize(model)] = r
		if r.InputPer1K.GreaterThan(fallback.InputPer1K) {
			fallback.InputPer1K = r.InputPer1K
		}
		if r.OutputPer1K.GreaterThan(fallback.OutputPer1K) {
			fallback.OutputPer1K = r.OutputPer1K
		}
	}
	return &Calculator{table: copied, fallback: fallback}
}

// Calculate returns the cost in cents, rounded up. Negative counts are
// treated as zero.
func (c *Calculator) Calculate(model string, inputTokens, outputTokens int64) int64 {
	r, ok := c.Rates(model)
	if !ok {
		r = c.fallback
	}
	in := decimal.NewFromInt(max(inputTokens, 0)).Mul(r.InputPer1K)
	out := decimal.NewFromInt(max(outputTokens, 0)).Mul(r.OutputPer1K)
	return in.Add(out).Div(thousand).Ceil().IntPart()
}

// Rates resolves model to its rate. Snapshots such as "gpt-4o-2024-08-06"
// or "gpt-4-0613" resolve to their base model; any other variant
// ("gpt-4o-audio-preview") is unknown.
func (c *Calculator) Rates(model string) (Rate, bool) {
	key := normalize(model)
	if r, ok := c.table[key]; ok {
		return r, true
	}
	for candidate, r := range c.table {
		if strings.HasPrefix(key, candidate) && snapshotSuffix.MatchString(key[len(candidate):]) {
			return r, true
		}
	}
	return Rate{}, false
}

// Known reports whether model is priced, directly or as a snapshot.
func (c *Calculator) Known(model string) bool {
	_, ok := c.Rates(model)
	return ok
}

// Models lists the priced models in sorted order.
func (c *Calculator) Models() []string {
	out := make([]string, 0, len(c.table))
	for model := range c.table {
		out = append(out, model)
	}
	sort.Strings(out)
	return out
}

func normalize(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}
