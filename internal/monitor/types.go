package monitor

import (
	"time"

	"fred-agent/internal/estimator"
	"fred-agent/internal/feature"
	"fred-agent/internal/market"
	"fred-agent/internal/risk"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventSignal   EventType = "signal"
	EventEstimate EventType = "estimate"
	EventDecision EventType = "decision"
	EventOutcome  EventType = "outcome"
	EventHalt     EventType = "halt"
	EventError    EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SignalPayload 记录进入决策引擎的信号与特征。
type SignalPayload struct {
	Signal   market.Signal `json:"signal"`
	Features feature.Set   `json:"features"`
}

// EstimatePayload 记录模型的概率评估。
type EstimatePayload struct {
	Estimate estimator.Estimate `json:"estimate"`
	Features feature.Set        `json:"features"`
}

// DecisionPayload 记录决策结果及其依据的风险状态快照。
type DecisionPayload struct {
	Signal   market.Signal `json:"signal"`
	Decision risk.Decision `json:"decision"`
	State    risk.State    `json:"state"`
}

// OutcomePayload 记录一笔已平仓交易。
type OutcomePayload struct {
	Outcome market.TradeOutcome `json:"outcome"`
}

// HaltPayload 记录熔断触发。
type HaltPayload struct {
	Drawdown float64 `json:"drawdown"`
	Equity   float64 `json:"equity"`
}

// Stats 为基于平仓事件汇总的绩效指标。ProfitFactor 在尚无亏损交易时为 0。
type Stats struct {
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"win_rate"`
	TotalPnL     float64 `json:"total_pnl"`
	ProfitFactor float64 `json:"profit_factor"`
	Expectancy   float64 `json:"expectancy"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
