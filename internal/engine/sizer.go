package engine

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput 表示概率、信心度或赔率不合法，在任何计算前拒绝。
var ErrInvalidInput = errors.New("engine: invalid input")

// 凯利公式的固定阻尼系数。半凯利牺牲部分增长率换取方差大幅下降。
const kellyDamping = 0.5

// Size 按封顶半凯利公式计算仓位比例。
//
// f = (b·p − q) / b，其中 b 为净赔付比例（b=1 即平赔），q = 1−p。
// f ≤ 0 说明没有统计优势，直接返回 0。结果乘以阻尼系数与信心度后
// 截断到 [0,1]；超过 1 的杠杆优势封顶而非拒绝，单笔上限由风控闸门
// 按 max_position_pct 另行收紧。
//
// 纯函数：相同输入永远得到相同输出，回测回放与实盘决策完全一致。
func Size(probability, confidence, odds float64) (float64, error) {
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return 0, fmt.Errorf("%w: probability 必须位于 [0,1]，当前为 %v", ErrInvalidInput, probability)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return 0, fmt.Errorf("%w: confidence 必须位于 [0,1]，当前为 %v", ErrInvalidInput, confidence)
	}
	if math.IsNaN(odds) || odds <= 0 {
		return 0, fmt.Errorf("%w: odds 必须大于0，当前为 %v", ErrInvalidInput, odds)
	}

	q := 1 - probability
	kelly := (odds*probability - q) / odds
	if kelly <= 0 {
		return 0, nil
	}

	adjusted := kelly * kellyDamping * confidence
	if adjusted > 1 {
		adjusted = 1
	}
	return adjusted, nil
}
