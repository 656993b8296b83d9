package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fred-agent/internal/config"
	"fred-agent/internal/engine"
	"fred-agent/internal/estimator"
	"fred-agent/internal/executor"
	"fred-agent/internal/feature"
	"fred-agent/internal/market"
	"fred-agent/internal/memory"
	"fred-agent/internal/monitor"
	"fred-agent/internal/risk"
	"fred-agent/internal/scanner"
	"fred-agent/internal/store"
)

// orchestrator 串联一次完整的决策循环：
// 平掉到期持仓 → 扫描市场 → 提取特征 → 概率评估 → 风控决策 → 模拟开仓。
type orchestrator struct {
	cfg       *config.Config
	scanner   *scanner.Scanner
	extractor *feature.Extractor
	estimator *estimator.Client
	engine    *engine.Engine
	tracker   *risk.Tracker
	trader    *executor.PaperTrader
	memory    *memory.Memory
	monitor   *monitor.Service
	prices    map[string]float64
	logger    *zap.Logger
}

func newOrchestrator(cfg *config.Config, logger *zap.Logger, st *store.Store) (*orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	limits, err := risk.NewLimits(cfg.Risk)
	if err != nil {
		return nil, fmt.Errorf("初始化风控参数失败: %w", err)
	}

	client, err := scanner.NewClient(cfg.Exchange, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化行情客户端失败: %w", err)
	}

	estimatorClient, err := estimator.NewClient(cfg.OpenAI, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化概率评估客户端失败: %w", err)
	}

	var mem *memory.Memory
	if cfg.Memory.Enabled {
		mem, err = memory.New(st, logger)
		if err != nil {
			return nil, fmt.Errorf("初始化记忆组件失败: %w", err)
		}
	}

	tracker, err := risk.NewTracker(st, limits, cfg.Risk.InitialEquity, time.Now().UTC(), logger)
	if err != nil {
		return nil, fmt.Errorf("初始化风险状态跟踪失败: %w", err)
	}

	trader, err := executor.NewPaperTrader(cfg.Risk.SlippageTolerancePct, cfg.Engine.HoldingPeriod, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化执行器失败: %w", err)
	}

	monitorSvc, err := monitor.NewService(st, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	// 重启后执行器为空仓，风控敞口以执行器台账为准。
	if err := tracker.Reconcile(context.Background(), trader.OpenFractions()); err != nil {
		return nil, fmt.Errorf("核对风控敞口失败: %w", err)
	}

	var source engine.ConfidenceSource
	if mem != nil {
		source = mem
	}

	return &orchestrator{
		cfg:       cfg,
		scanner:   scanner.NewScanner(client, cfg.Exchange.Markets, logger),
		extractor: feature.NewExtractor(logger),
		estimator: estimatorClient,
		engine:    engine.New(limits, source, logger),
		tracker:   tracker,
		trader:    trader,
		memory:    mem,
		monitor:   monitorSvc,
		prices:    make(map[string]float64),
		logger:    logger,
	}, nil
}

func (o *orchestrator) Monitor() *monitor.Service {
	return o.monitor
}

// Tick 执行一轮完整决策循环。
func (o *orchestrator) Tick(ctx context.Context) error {
	now := time.Now().UTC()

	if err := o.closeMatured(ctx, now); err != nil {
		return err
	}

	candidates, err := o.scanner.Scan(ctx)
	if err != nil {
		if errors.Is(err, scanner.ErrMaintenance) {
			o.logger.Warn("交易所维护中，跳过本轮扫描")
			return nil
		}
		o.monitor.RecordError(ctx, "市场扫描失败", err, nil)
		return err
	}

	for _, candidate := range candidates {
		o.prices[candidate.Symbol] = candidate.LastPrice

		if o.trader.HasPosition(candidate.Symbol) {
			continue
		}

		if err := o.evaluateCandidate(ctx, candidate, now); err != nil {
			if errors.Is(err, risk.ErrStateInconsistency) {
				return err
			}
			o.logger.Warn("处理候选失败，跳过",
				zap.String("symbol", candidate.Symbol),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (o *orchestrator) evaluateCandidate(ctx context.Context, candidate scanner.Candidate, now time.Time) error {
	features, err := o.extractor.Extract(ctx, candidate)
	if err != nil {
		return fmt.Errorf("特征计算失败: %w", err)
	}

	estimate, err := o.estimator.Estimate(ctx, features)
	if err != nil {
		o.monitor.RecordError(ctx, "概率评估失败", err, map[string]interface{}{"symbol": candidate.Symbol})
		return err
	}
	o.monitor.RecordEstimate(ctx, estimate, features)

	sig := market.Signal{
		Symbol:      candidate.Symbol,
		Probability: estimate.Probability,
		Confidence:  estimate.Confidence,
		Price:       candidate.LastPrice,
		Timestamp:   now,
	}
	o.monitor.RecordSignal(ctx, sig, features)

	snapshot := o.tracker.Snapshot()
	decision, err := o.engine.Decide(ctx, sig, o.cfg.Engine.PayoutRatio, snapshot.CurrentEquity, snapshot, now)
	if err != nil {
		o.monitor.RecordError(ctx, "决策失败", err, map[string]interface{}{"symbol": candidate.Symbol})
		return err
	}
	o.monitor.RecordDecision(ctx, sig, decision, snapshot)

	if decision.Halted {
		o.monitor.RecordHalt(ctx, snapshot.Drawdown(), snapshot.CurrentEquity)
	}
	if decision.Action != risk.ActionTrade {
		o.logger.Info("决策跳过",
			zap.String("symbol", sig.Symbol),
			zap.String("reason", string(decision.FirstReason())),
		)
		return nil
	}

	if _, err := o.trader.Open(decision, candidate.LastPrice, now); err != nil {
		return fmt.Errorf("模拟开仓失败: %w", err)
	}
	if err := o.tracker.RecordOpened(ctx, decision.Symbol, decision.SizeFraction, now); err != nil {
		return fmt.Errorf("登记开仓失败: %w", err)
	}

	return nil
}

// closeMatured 平掉持仓到期的头寸，回写风控状态与记忆。
func (o *orchestrator) closeMatured(ctx context.Context, now time.Time) error {
	for _, symbol := range o.trader.MatureSymbols(now) {
		price, ok := o.prices[symbol]
		if !ok || price <= 0 {
			o.logger.Warn("缺少平仓价格，延后到下一轮", zap.String("symbol", symbol))
			continue
		}

		outcome, err := o.trader.Close(symbol, price, now)
		if err != nil {
			return fmt.Errorf("模拟平仓失败: %w", err)
		}
		o.monitor.RecordOutcome(ctx, outcome)

		if err := o.tracker.RecordOutcome(ctx, outcome, now); err != nil {
			o.monitor.RecordError(ctx, "记录平仓失败", err, map[string]interface{}{"symbol": symbol})
			return err
		}

		if o.memory != nil {
			if err := o.memory.Record(ctx, outcome); err != nil {
				o.logger.Warn("写入交易记忆失败", zap.Error(err))
			}
		}

		snapshot := o.tracker.Snapshot()
		if snapshot.Halted {
			o.monitor.RecordHalt(ctx, snapshot.Drawdown(), snapshot.CurrentEquity)
		}
	}
	return nil
}
