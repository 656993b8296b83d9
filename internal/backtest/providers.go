package backtest

import (
	"context"

	"fred-agent/internal/market"
)

// Event 为回测的单个历史样本：入场信号、赔率与持仓周期结束时的价格。
type Event struct {
	Signal    market.Signal
	Odds      float64
	ExitPrice float64
}

// EventProvider 按时间顺序提供历史事件。
type EventProvider interface {
	Next(ctx context.Context) (Event, bool, error)
}

// SliceProvider 以固定序列提供事件。
type SliceProvider struct {
	events []Event
	index  int
}

// NewSliceProvider 创建基于内存切片的事件源。
func NewSliceProvider(events []Event) *SliceProvider {
	return &SliceProvider{events: events}
}

// Next 返回下一个事件，序列耗尽时 ok 为 false。
func (p *SliceProvider) Next(ctx context.Context) (Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, false, err
	}
	if p.index >= len(p.events) {
		return Event{}, false, nil
	}
	event := p.events[p.index]
	p.index++
	return event, true, nil
}
