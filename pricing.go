package tiergate

// Price is the per-million-token price pair for one model.
type Price struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// PriceTable maps model identifiers to prices. Unknown identifiers fall
// back to the designated default row; with no default the cost is zero.
type PriceTable struct {
	Rows    map[string]Price
	Default string
}

// Cost computes the dollar cost of a call from token usage.
func (t PriceTable) Cost(model string, inputTokens, outputTokens int64) float64 {
	p, ok := t.Rows[model]
	if !ok {
		p, ok = t.Rows[t.Default]
		if !ok {
			return 0
		}
	}
	return (float64(inputTokens)*p.Input + float64(outputTokens)*p.Output) / 1e6
}
