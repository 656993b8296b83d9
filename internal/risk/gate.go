package risk

import (
	"math"
	"time"

	"go.uber.org/zap"

	"fred-agent/internal/market"
)

// Gate 按固定优先级校验拟定交易：回撤熔断与日亏损属于组合级致命条件，
// 必须先于任何仓位计算短路；其后依次为最小优势、频率限制、单笔上限与
// 总敞口上限。该顺序决定了多条规则同时触发时对外展示的首要原因，
// 属于可测试的对外契约，不得调整。
type Gate struct {
	limits Limits
	logger *zap.Logger
}

// NewGate 创建风控闸门。
func NewGate(limits Limits, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		limits: limits,
		logger: logger,
	}
}

// BreakEvenProbability 返回给定赔率下的盈亏平衡概率。
// 赔率 b 表示净赔付比例（b=1 即平赔），平衡点为 1/(1+b)。
func BreakEvenProbability(odds float64) float64 {
	if odds <= 0 {
		return 1
	}
	return 1 / (1 + odds)
}

// Evaluate 对原始仓位比例执行全部风控检查，返回最终决策。
// 纯函数：只读 State 快照，不产生任何副作用。
func (g *Gate) Evaluate(rawFraction float64, sig market.Signal, odds float64, st State, now time.Time) Decision {
	decision := Decision{
		Symbol:      sig.Symbol,
		Action:      ActionSkip,
		ReasonCodes: make([]ReasonCode, 0, 4),
		EvaluatedAt: now,
	}

	// 回撤熔断优先于一切规则，触发后在外部复位前持续拒绝。
	if st.Halted || st.Drawdown() >= g.limits.MaxDrawdownPct {
		decision.ReasonCodes = append(decision.ReasonCodes, ReasonDrawdownHalt)
		decision.Vetoed = true
		decision.Halted = true
		g.logger.Warn("回撤熔断生效，拒绝全部交易",
			zap.String("symbol", sig.Symbol),
			zap.Float64("drawdown", st.Drawdown()),
			zap.Float64("limit", g.limits.MaxDrawdownPct),
		)
		return decision
	}

	// 当日亏损达到上限后，当日剩余时间停止开仓。
	if st.DailyLossPct() <= -g.limits.MaxDailyLossPct {
		decision.ReasonCodes = append(decision.ReasonCodes, ReasonDailyLoss)
		decision.Vetoed = true
		return decision
	}

	edge := sig.Probability - BreakEvenProbability(odds)
	if edge < g.limits.MinEdgePct {
		decision.ReasonCodes = append(decision.ReasonCodes, ReasonMinEdge)
		decision.Vetoed = true
		return decision
	}

	if st.TradesWithin(RateWindow, now) >= g.limits.MaxTradesPerHour {
		decision.ReasonCodes = append(decision.ReasonCodes, ReasonRateLimit)
		decision.Vetoed = true
		return decision
	}

	fraction := rawFraction
	if fraction <= 0 {
		decision.ReasonCodes = append(decision.ReasonCodes, ReasonNoEdge)
		decision.Vetoed = true
		return decision
	}

	if fraction > g.limits.MaxPositionPct {
		fraction = g.limits.MaxPositionPct
		decision.ReasonCodes = append(decision.ReasonCodes, ReasonPositionCap)
	}

	headroom := g.limits.MaxTotalExposurePct - st.OpenExposurePct
	if headroom <= 0 {
		decision.ReasonCodes = append(decision.ReasonCodes, ReasonExposureCap)
		decision.Vetoed = true
		return decision
	}
	if fraction > headroom {
		fraction = headroom
		decision.ReasonCodes = append(decision.ReasonCodes, ReasonExposureCap)
	}

	decision.Action = ActionTrade
	decision.SizeFraction = roundFraction(fraction)
	return decision
}

// roundFraction 去除浮点残差，避免敞口累计越过上限。
func roundFraction(v float64) float64 {
	return math.Round(v*1e12) / 1e12
}
