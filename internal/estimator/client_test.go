package estimator

import (
	"strings"
	"testing"

	"fred-agent/internal/feature"
)

func TestParseEstimate_PlainJSON(t *testing.T) {
	raw := `{"symbol":"SOL/USDT:USDT","probability":0.62,"confidence":0.7,"reasoning":"趋势多头排列"}`
	estimate, err := parseEstimate(raw)
	if err != nil {
		t.Fatalf("parseEstimate returned error: %v", err)
	}
	if estimate.Symbol != "SOL/USDT:USDT" {
		t.Errorf("unexpected symbol %q", estimate.Symbol)
	}
	if estimate.Probability != 0.62 || estimate.Confidence != 0.7 {
		t.Errorf("unexpected values: %+v", estimate)
	}
}

func TestParseEstimate_StripsSurroundingText(t *testing.T) {
	raw := "分析如下：\n```json\n{\"symbol\":\"SOL\",\"probability\":0.55,\"confidence\":0.4,\"reasoning\":\"震荡偏多\"}\n```\n以上。"
	estimate, err := parseEstimate(raw)
	if err != nil {
		t.Fatalf("parseEstimate returned error: %v", err)
	}
	if estimate.Probability != 0.55 {
		t.Errorf("unexpected probability %v", estimate.Probability)
	}
}

func TestParseEstimate_NoJSONFails(t *testing.T) {
	if _, err := parseEstimate("抱歉，我无法评估。"); err == nil {
		t.Errorf("expected error when no JSON present")
	}
}

func TestEstimateValidate(t *testing.T) {
	valid := Estimate{Symbol: "SOL", Probability: 0.6, Confidence: 0.5, Reasoning: "ok"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid estimate, got %v", err)
	}

	cases := []struct {
		name     string
		estimate Estimate
	}{
		{"empty symbol", Estimate{Probability: 0.6, Confidence: 0.5, Reasoning: "ok"}},
		{"probability zero", Estimate{Symbol: "SOL", Probability: 0, Confidence: 0.5, Reasoning: "ok"}},
		{"probability one", Estimate{Symbol: "SOL", Probability: 1, Confidence: 0.5, Reasoning: "ok"}},
		{"confidence above one", Estimate{Symbol: "SOL", Probability: 0.6, Confidence: 1.5, Reasoning: "ok"}},
		{"empty reasoning", Estimate{Symbol: "SOL", Probability: 0.6, Confidence: 0.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.estimate.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestBuildPrompt_ContainsSymbolAndFeatures(t *testing.T) {
	features := feature.Set{
		Symbol:  "SOL/USDT:USDT",
		RSI:     55.2,
		EMARank: "bullish_alignment",
	}

	prompt, err := BuildPrompt(features)
	if err != nil {
		t.Fatalf("BuildPrompt returned error: %v", err)
	}
	if !strings.Contains(prompt, "SOL/USDT:USDT") {
		t.Errorf("prompt missing symbol")
	}
	if !strings.Contains(prompt, "bullish_alignment") {
		t.Errorf("prompt missing feature payload")
	}
	if !strings.Contains(prompt, "probability") {
		t.Errorf("prompt missing output schema")
	}
}
