package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fred-agent/internal/market"
	"fred-agent/internal/risk"
)

// ConfidenceSource 为可选的历史记忆协作方：按符号给出 (0,1] 的信心度
// 乘数。缺省等价于乘数 1.0，引擎在没有任何记忆后端时也能完整工作。
type ConfidenceSource interface {
	ConfidenceMultiplier(ctx context.Context, symbol string) (float64, error)
}

// Engine 串联仓位计算与风控闸门，产出最终交易决策。
// 自身不持有任何可变状态：风险状态由调用方以快照显式传入，
// 同一个引擎实例可同时服务实盘决策与确定性回测回放。
type Engine struct {
	limits risk.Limits
	gate   *risk.Gate
	memory ConfidenceSource
	logger *zap.Logger
}

// New 创建决策引擎。memory 可为 nil。
func New(limits risk.Limits, memory ConfidenceSource, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		limits: limits,
		gate:   risk.NewGate(limits, logger),
		memory: memory,
		logger: logger,
	}
}

// Decide 对单个信号给出决策。capital 为可用资金（计价货币），
// odds 为上游行情方提供的净赔付比例。state 为风险状态快照；
// 引擎不缓存也不修改它，状态变更全部由调用方经 Tracker 完成。
func (e *Engine) Decide(ctx context.Context, sig market.Signal, odds, capital float64, state risk.State, now time.Time) (risk.Decision, error) {
	if err := sig.Validate(); err != nil {
		return risk.Decision{}, err
	}
	if odds <= 0 {
		return risk.Decision{}, fmt.Errorf("%w: odds 必须大于0，当前为 %v", ErrInvalidInput, odds)
	}
	if capital < 0 {
		return risk.Decision{}, fmt.Errorf("%w: capital 不能为负，当前为 %v", ErrInvalidInput, capital)
	}

	confidence := sig.Confidence
	if e.memory != nil {
		multiplier, err := e.memory.ConfidenceMultiplier(ctx, sig.Symbol)
		if err != nil {
			// 记忆后端故障不阻断决策，按无调整处理。
			e.logger.Warn("获取历史信心度乘数失败",
				zap.String("symbol", sig.Symbol),
				zap.Error(err),
			)
			multiplier = 1
		}
		confidence *= clampMultiplier(multiplier)
	}

	rawFraction, err := Size(sig.Probability, confidence, odds)
	if err != nil {
		return risk.Decision{}, err
	}

	decision := e.gate.Evaluate(rawFraction, sig, odds, state, now)
	if decision.Action == risk.ActionTrade {
		decision.SizeQuote = decision.SizeFraction * capital
	}

	e.logger.Debug("决策完成",
		zap.String("symbol", sig.Symbol),
		zap.String("action", string(decision.Action)),
		zap.Float64("raw_fraction", rawFraction),
		zap.Float64("size_fraction", decision.SizeFraction),
		zap.Float64("size_quote", decision.SizeQuote),
		zap.Bool("vetoed", decision.Vetoed),
		zap.String("reason", string(decision.FirstReason())),
	)

	return decision, nil
}

// clampMultiplier 把记忆乘数限制在 (0,1]：历史表现只允许压低信心度，
// 永远不能放大到超过估计器原始值，避免对近期走势过拟合放大下行风险。
func clampMultiplier(m float64) float64 {
	if m <= 0 || m > 1 {
		return 1
	}
	return m
}
