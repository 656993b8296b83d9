package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fred-agent/internal/engine"
	"fred-agent/internal/market"
	"fred-agent/internal/risk"
)

// Config 控制一次回测。
type Config struct {
	InitialEquity float64
	SlippagePct   float64
}

func (c Config) normalize() Config {
	if c.InitialEquity <= 0 {
		c.InitialEquity = 1000
	}
	if c.SlippagePct < 0 {
		c.SlippagePct = 0
	}
	return c
}

// Result 汇总回测结果。
type Result struct {
	Metrics      Metrics
	EquityCurve  []float64
	ReturnSeries []float64
	Trades       int
	Vetoes       int
	FinalEquity  float64
}

// Engine 在历史事件序列上回放完整的决策与风控流程。
// 状态跟踪器不带持久化，每次 Run 都从初始资金重新开始。
type Engine struct {
	cfg      Config
	provider EventProvider
	decider  *engine.Engine
	tracker  *risk.Tracker
	logger   *zap.Logger
}

// NewEngine 构建回测引擎。
func NewEngine(cfg Config, provider EventProvider, limits risk.Limits, memory engine.ConfidenceSource, start time.Time, logger *zap.Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("backtest: provider 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg = cfg.normalize()
	tracker, err := risk.NewTracker(nil, limits, cfg.InitialEquity, start, logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		provider: provider,
		decider:  engine.New(limits, memory, logger),
		tracker:  tracker,
		logger:   logger,
	}, nil
}

// Run 执行完整回测流程。每个事件开仓后立即以持仓周期末价格结算。
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var (
		equity  []float64
		returns []float64
		trades  int
		vetoes  int
		wins    int
	)

	equity = append(equity, e.cfg.InitialEquity)

	for {
		event, ok, err := e.provider.Next(ctx)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}

		now := event.Signal.Timestamp
		snapshot := e.tracker.Snapshot()
		capital := snapshot.CurrentEquity

		decision, err := e.decider.Decide(ctx, event.Signal, event.Odds, capital, snapshot, now)
		if err != nil {
			return Result{}, fmt.Errorf("backtest: 决策失败: %w", err)
		}

		if decision.Action != risk.ActionTrade {
			vetoes++
			continue
		}

		if err := e.tracker.RecordOpened(ctx, decision.Symbol, decision.SizeFraction, now); err != nil {
			return Result{}, fmt.Errorf("backtest: 登记开仓失败: %w", err)
		}

		if event.ExitPrice <= 0 {
			return Result{}, fmt.Errorf("backtest: %s 的平仓价非法 (%v)", decision.Symbol, event.ExitPrice)
		}

		entryPrice := event.Signal.Price * (1 + e.cfg.SlippagePct)
		pnl := decision.SizeQuote * (event.ExitPrice/entryPrice - 1)
		outcome := market.TradeOutcome{
			Symbol:   decision.Symbol,
			PnL:      pnl,
			Win:      pnl > 0,
			ClosedAt: now,
		}

		if err := e.tracker.RecordOutcome(ctx, outcome, now); err != nil {
			return Result{}, fmt.Errorf("backtest: 记录平仓失败: %w", err)
		}

		trades++
		if outcome.Win {
			wins++
		}

		prevEquity := equity[len(equity)-1]
		currEquity := e.tracker.Snapshot().CurrentEquity
		equity = append(equity, currEquity)
		if prevEquity > 0 {
			returns = append(returns, currEquity/prevEquity-1)
		}
	}

	finalEquity := e.tracker.Snapshot().CurrentEquity
	metrics := calculateMetrics(equity, returns, wins, trades)

	e.logger.Info("回测完成",
		zap.Int("trades", trades),
		zap.Int("vetoes", vetoes),
		zap.Float64("final_equity", finalEquity),
		zap.Float64("total_return", metrics.TotalReturn),
		zap.Float64("max_drawdown", metrics.MaxDrawdown),
		zap.Float64("win_rate", metrics.WinRate),
	)

	return Result{
		Metrics:      metrics,
		EquityCurve:  equity,
		ReturnSeries: returns,
		Trades:       trades,
		Vetoes:       vetoes,
		FinalEquity:  finalEquity,
	}, nil
}
