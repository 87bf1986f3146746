package config

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultModelSpec is used when the caller does not choose a model.
const DefaultModelSpec = "mineru+gemini-3-pro-preview"

// ModelConfig describes one parser+LLM combination with its pricing.
type ModelConfig struct {
	Spec             string  `json:"spec"`
	ParserEngine     string  `json:"parser"`
	LLMModel         string  `json:"llm"`
	InputPricePer1M  float64 `json:"input_price_per_1m"`
	OutputPricePer1M float64 `json:"output_price_per_1m"`
}

// Cost returns the USD cost of a call at this model's pricing.
func (m ModelConfig) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*m.InputPricePer1M +
		float64(outputTokens)/1e6*m.OutputPricePer1M
}

// llmPricing is per-million-token USD pricing for the supported LLMs.
var llmPricing = map[string][2]float64{
	"gemini-3-flash-preview": {0.30, 2.50},
	"gemini-3-pro-preview":   {1.25, 10.00},
	"gpt-5.1":                {1.25, 10.00},
}

// parserEngines lists the document parser variants in preference order.
var parserEngines = []string{"mineru", "marker", "docling", "pdftext"}

// Models returns the full catalog of supported model specs, sorted.
func Models() []ModelConfig {
	var out []ModelConfig
	for _, parser := range parserEngines {
		for llmName, price := range llmPricing {
			out = append(out, ModelConfig{
				Spec:             parser + "+" + llmName,
				ParserEngine:     parser,
				LLMModel:         llmName,
				InputPricePer1M:  price[0],
				OutputPricePer1M: price[1],
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Spec < out[j].Spec })
	return out
}

// SplitSpec parses a "{parser}+{llm}" model spec and validates both
// halves against the catalog.
func SplitSpec(spec string) (parser, llmModel string, err error) {
	parser, llmModel, ok := strings.Cut(spec, "+")
	if !ok {
		return "", "", fmt.Errorf("model spec %q must have the form {parser}+{llm}", spec)
	}
	if !validParser(parser) {
		return "", "", fmt.Errorf("unknown document parser %q", parser)
	}
	if _, ok := llmPricing[llmModel]; !ok {
		return "", "", fmt.Errorf("unknown LLM model %q", llmModel)
	}
	return parser, llmModel, nil
}

// Lookup returns the catalog entry for a spec string.
func Lookup(spec string) (ModelConfig, error) {
	parser, llmModel, err := SplitSpec(spec)
	if err != nil {
		return ModelConfig{}, err
	}
	price := llmPricing[llmModel]
	return ModelConfig{
		Spec:             spec,
		ParserEngine:     parser,
		LLMModel:         llmModel,
		InputPricePer1M:  price[0],
		OutputPricePer1M: price[1],
	}, nil
}

// SanitizeSpec converts a model spec into a filesystem-safe name.
func SanitizeSpec(spec string) string {
	r := strings.NewReplacer("+", "_", ".", "-", "/", "-")
	return r.Replace(spec)
}

func validParser(name string) bool {
	for _, p := range parserEngines {
		if p == name {
			return true
		}
	}
	return false
}
