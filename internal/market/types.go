package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidSignal 表示上游信号字段越界，需在计算前直接拒绝。
var ErrInvalidSignal = errors.New("market: invalid signal")

// Signal 表示上游估计器针对单个市场机会给出的信号。
// 每个扫描周期生成一次，生成后不再修改。
type Signal struct {
	Symbol      string
	Probability float64 // 主结果的估计概率，(0,1)
	Confidence  float64 // 估计器自身的信心度，[0,1]
	Price       float64
	Timestamp   time.Time
}

// Validate 校验信号字段范围。
func (s Signal) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("%w: symbol 不能为空", ErrInvalidSignal)
	}
	if !isFinite(s.Probability) || s.Probability <= 0 || s.Probability >= 1 {
		return fmt.Errorf("%w: probability 必须位于 (0,1)，当前为 %v", ErrInvalidSignal, s.Probability)
	}
	if !isFinite(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: confidence 必须位于 [0,1]，当前为 %v", ErrInvalidSignal, s.Confidence)
	}
	if !isFinite(s.Price) || s.Price <= 0 {
		return fmt.Errorf("%w: price 必须为正，当前为 %v", ErrInvalidSignal, s.Price)
	}
	return nil
}

// TradeOutcome 在交易平仓后由执行侧回报，用于更新风险计数器与历史记忆。
type TradeOutcome struct {
	Symbol   string
	PnL      float64 // 已实现盈亏（计价货币）
	Win      bool
	ClosedAt time.Time
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
