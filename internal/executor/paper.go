package executor

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"fred-agent/internal/market"
	"fred-agent/internal/risk"
)

// Position 表示一笔模拟持仓。
type Position struct {
	Symbol     string
	Fraction   float64
	Quote      float64
	EntryPrice float64
	OpenedAt   time.Time
}

// PaperTrader 以纸面方式执行决策：开仓价按滑点容忍度上浮，
// 持仓到期后按最新价平仓并产出已实现盈亏。
type PaperTrader struct {
	mu            sync.Mutex
	slippagePct   float64
	holdingPeriod time.Duration
	positions     map[string]Position
	logger        *zap.Logger
}

// NewPaperTrader 创建模拟执行器。
func NewPaperTrader(slippagePct float64, holdingPeriod time.Duration, logger *zap.Logger) (*PaperTrader, error) {
	if slippagePct < 0 {
		return nil, fmt.Errorf("executor: 滑点容忍度不能为负，当前为 %v", slippagePct)
	}
	if holdingPeriod <= 0 {
		return nil, fmt.Errorf("executor: 持仓周期必须为正，当前为 %v", holdingPeriod)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperTrader{
		slippagePct:   slippagePct,
		holdingPeriod: holdingPeriod,
		positions:     make(map[string]Position),
		logger:        logger,
	}, nil
}

// Open 按决策开仓。入场价按滑点容忍度向不利方向调整。
func (p *PaperTrader) Open(decision risk.Decision, price float64, now time.Time) (Position, error) {
	if decision.Action != risk.ActionTrade {
		return Position{}, errors.New("executor: 只接受可执行决策")
	}
	if price <= 0 {
		return Position{}, fmt.Errorf("executor: 价格必须为正，当前为 %v", price)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.positions[decision.Symbol]; exists {
		return Position{}, fmt.Errorf("executor: %s 已有未平仓头寸", decision.Symbol)
	}

	pos := Position{
		Symbol:     decision.Symbol,
		Fraction:   decision.SizeFraction,
		Quote:      decision.SizeQuote,
		EntryPrice: price * (1 + p.slippagePct),
		OpenedAt:   now.UTC(),
	}
	p.positions[decision.Symbol] = pos

	p.logger.Info("模拟开仓",
		zap.String("symbol", pos.Symbol),
		zap.Float64("quote", pos.Quote),
		zap.Float64("entry_price", pos.EntryPrice),
	)

	return pos, nil
}

// Close 按给定价格平仓，返回已实现盈亏。
func (p *PaperTrader) Close(symbol string, exitPrice float64, now time.Time) (market.TradeOutcome, error) {
	if exitPrice <= 0 {
		return market.TradeOutcome{}, fmt.Errorf("executor: 平仓价必须为正，当前为 %v", exitPrice)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, exists := p.positions[symbol]
	if !exists {
		return market.TradeOutcome{}, fmt.Errorf("executor: %s 没有未平仓头寸", symbol)
	}
	delete(p.positions, symbol)

	pnl := pos.Quote * (exitPrice/pos.EntryPrice - 1)
	outcome := market.TradeOutcome{
		Symbol:   symbol,
		PnL:      pnl,
		Win:      pnl > 0,
		ClosedAt: now.UTC(),
	}

	p.logger.Info("模拟平仓",
		zap.String("symbol", symbol),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl", pnl),
		zap.Bool("win", outcome.Win),
	)

	return outcome, nil
}

// MatureSymbols 返回持仓时间已达到持仓周期的交易对，按符号排序。
func (p *PaperTrader) MatureSymbols(now time.Time) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var symbols []string
	for symbol, pos := range p.positions {
		if now.Sub(pos.OpenedAt) >= p.holdingPeriod {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// HasPosition 判断交易对是否已有未平仓头寸。
func (p *PaperTrader) HasPosition(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, exists := p.positions[symbol]
	return exists
}

// OpenFractions 返回全部未平仓头寸的敞口比例，用于与风控状态核对。
func (p *PaperTrader) OpenFractions() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	fractions := make(map[string]float64, len(p.positions))
	for symbol, pos := range p.positions {
		fractions[symbol] = pos.Fraction
	}
	return fractions
}
