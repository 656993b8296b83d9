package estimator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"fred-agent/internal/feature"
)

const estimateTemplate = `
你是一个专业的加密货币量化分析师。你的任务是根据提供的技术特征，评估该交易对在未来一个持仓周期内上涨的概率。

交易对: {{ .Features.Symbol }}

当前技术特征：
{{ .FeaturesJSON }}

评估时请遵循：
1. 先看均线排列与 RSI 状态判断趋势方向；
2. 结合成交量比率确认趋势是否有量能支撑；
3. 波动率偏高时适当降低信心度；
4. 概率表达的是统计意义上的胜率，不确定时应接近 0.5，而非随意给出极端值。

请严格输出唯一的 JSON 对象，格式如下：
{
  "symbol": "{{ .Features.Symbol }}",
  "probability": 0.0-1.0,     // 未来一个持仓周期内上涨的概率，禁止输出 0 或 1
  "confidence": 0.0-1.0,      // 对该概率评估本身的信心度
  "reasoning": "..."          // 支撑结论的关键理由
}

注意事项：
- probability 与 confidence 是两个独立维度：前者是方向胜率，后者是评估可靠度。
- 所有字段均需填写，不要输出 JSON 以外的任何内容。
`

var tmpl = template.Must(template.New("estimate").Parse(estimateTemplate))

type promptContext struct {
	Features     feature.Set
	FeaturesJSON string
}

// BuildPrompt 将技术特征渲染成提示词字符串。
func BuildPrompt(features feature.Set) (string, error) {
	featuresJSONBytes, err := json.MarshalIndent(features, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化特征失败: %w", err)
	}

	ctx := promptContext{
		Features:     features,
		FeaturesJSON: string(featuresJSONBytes),
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("渲染提示词失败: %w", err)
	}

	return buf.String(), nil
}
