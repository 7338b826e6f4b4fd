package statements

import "context"

// DryRunStats summarises what a Run would send without contacting the endpoint.
type DryRunStats struct {
	Model                string `json:"model"`
	Workers              int    `json:"workers"`
	MaxRetries           int    `json:"maxRetries"`
	Items                int    `json:"items"`                // Items in the source
	Prompts              int    `json:"prompts"`              // Items that render a prompt
	Skipped              int    `json:"skipped"`              // Items with no prompt
	Errors               int    `json:"errors"`               // Items that failed to load or render
	EstimatedInputTokens int    `json:"estimatedInputTokens"` // Per attempt, all prompts
	MaxCalls             int    `json:"maxCalls"`             // Upper bound with every retry used
}

// DryRun renders every prompt and estimates the request volume of a Run.
func (e *Extractor) DryRun(ctx context.Context) (*DryRunStats, error) {
	stats := &DryRunStats{
		Model:      e.coord.endpoint.Name(),
		Workers:    e.opts.Workers,
		MaxRetries: e.coord.maxRetries,
		Items:      e.source.Len(),
	}
	prefix := buildMessages(e.coord.system, e.coord.history, "")
	prefixTokens := 0
	for _, m := range prefix {
		prefixTokens += EstimateTokensFromText(m.Content)
	}

	for i := 0; i < stats.Items; i++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		item, err := e.source.Get(i)
		if err != nil {
			stats.Errors++
			e.log.Warn("Failed to load record", "index", i, "error", err)
			continue
		}
		prompt, err := e.formatter.Format(item)
		if err != nil {
			stats.Errors++
			e.log.Warn("Failed to render prompt", "index", i, "error", err)
			continue
		}
		if prompt == "" {
			stats.Skipped++
			continue
		}
		stats.Prompts++
		stats.EstimatedInputTokens += prefixTokens + EstimateTokensFromText(prompt)
	}
	stats.MaxCalls = stats.Prompts * e.coord.maxRetries
	return stats, nil
}
