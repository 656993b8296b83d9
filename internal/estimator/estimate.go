package estimator

import (
	"errors"
	"fmt"
	"strings"
)

// Estimate 表示大模型对单个交易对的概率评估。
type Estimate struct {
	Symbol      string  `json:"symbol"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// Validate 校验评估字段合法性。概率取开区间：0 和 1 代表模型声称
// 确定无疑，视为输出异常而非有效评估。
func (e Estimate) Validate() error {
	if strings.TrimSpace(e.Symbol) == "" {
		return errors.New("symbol 不能为空")
	}
	if e.Probability <= 0 || e.Probability >= 1 {
		return fmt.Errorf("probability 必须位于 (0,1)，当前为 %f", e.Probability)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence 必须位于 [0,1]，当前为 %f", e.Confidence)
	}
	if strings.TrimSpace(e.Reasoning) == "" {
		return errors.New("reasoning 不能为空")
	}
	return nil
}
