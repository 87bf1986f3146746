package model

// CostReport accounts for token usage, monetary cost, and per-layer
// wall-clock time of a single parse run.
type CostReport struct {
	InputTokens     int                `json:"total_tokens_input"`
	OutputTokens    int                `json:"total_tokens_output"`
	CostUSD         float64            `json:"total_cost_usd"`
	Retries         int                `json:"retries"`
	PagesProcessed  int                `json:"pages_processed"`
	LayerSeconds    map[string]float64 `json:"layer_seconds"`
	ParsingSeconds  float64            `json:"parsing_time_seconds"`
	ExplainDegraded bool               `json:"explain_degraded,omitempty"`
}

// AddTokens accumulates one LLM call's usage into the report.
func (c *CostReport) AddTokens(in, out, retries int) {
	c.InputTokens += in
	c.OutputTokens += out
	c.Retries += retries
}

// ParseResult is the full JSON document produced for one parse run:
// the validated exam plus validation findings and cost accounting.
type ParseResult struct {
	ModelSpec  string            `json:"model_name"`
	ParsedExam *ParsedExam       `json:"parsed_exam"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Cost       CostReport        `json:"cost"`
	Error      string            `json:"error,omitempty"`
}
