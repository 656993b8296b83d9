package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"fred-agent/internal/market"
	"fred-agent/internal/store"
)

// ErrStateInconsistency 表示风险状态出现无法解释的矛盾（如敞口为负）。
// 该错误不可本地恢复：Tracker 拒绝继续变更，需运维人员对照外部
// 成交台账核对后重建状态。
var ErrStateInconsistency = errors.New("risk: state inconsistency")

const exposureEpsilon = 1e-9

// Tracker 独占持有可变的风险状态，所有读-评-改序列都经过同一把互斥锁。
// 每次变更成功后立即写入 SQLite 检查点，进程重启时恢复，
// 避免回撤与频率限制统计被清零。
type Tracker struct {
	mu     sync.Mutex
	limits Limits
	state  State
	broken bool
	db     *sql.DB // 为空时关闭检查点（回测模式）
	logger *zap.Logger
}

// NewTracker 创建状态跟踪器。存在检查点时从中恢复，否则以初始资金起步。
// store 传入 nil 时不做持久化，供回测与单元测试使用。
func NewTracker(st *store.Store, limits Limits, initialEquity float64, now time.Time, logger *zap.Logger) (*Tracker, error) {
	if initialEquity <= 0 {
		return nil, fmt.Errorf("risk: 初始资金必须为正，当前为 %v", initialEquity)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tracker := &Tracker{
		limits: limits,
		state:  NewState(initialEquity, now, limits.DailyResetHour),
		logger: logger,
	}

	if st != nil {
		tracker.db = st.DB()
		if err := tracker.initSchema(); err != nil {
			return nil, err
		}
		restored, found, err := tracker.loadCheckpoint()
		if err != nil {
			return nil, err
		}
		if found {
			if err := restored.validate(); err != nil {
				return nil, fmt.Errorf("risk: 检查点校验失败: %w", err)
			}
			tracker.state = restored
			logger.Info("已从检查点恢复风险状态",
				zap.Float64("equity", restored.CurrentEquity),
				zap.Float64("high_water_mark", restored.EquityHighWaterMark),
				zap.Float64("open_exposure_pct", restored.OpenExposurePct),
				zap.Bool("halted", restored.Halted),
			)
		}
	}

	return tracker, nil
}

func (t *Tracker) initSchema() error {
	schema := `CREATE TABLE IF NOT EXISTS risk_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := t.db.Exec(schema); err != nil {
		return fmt.Errorf("risk: 初始化状态表失败: %w", err)
	}
	return nil
}

func (t *Tracker) loadCheckpoint() (State, bool, error) {
	var payload string
	err := t.db.QueryRow(`SELECT payload FROM risk_state WHERE id = 1`).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return State{}, false, nil
	case err != nil:
		return State{}, false, fmt.Errorf("risk: 读取检查点失败: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return State{}, false, fmt.Errorf("risk: 解析检查点失败: %w", err)
	}
	if state.OpenFractions == nil {
		state.OpenFractions = make(map[string]float64)
	}
	return state, true, nil
}

func (t *Tracker) checkpoint(ctx context.Context) error {
	if t.db == nil {
		return nil
	}
	payload, err := json.Marshal(t.state)
	if err != nil {
		return fmt.Errorf("risk: 序列化状态失败: %w", err)
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO risk_state (id, payload, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(payload), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("risk: 写入检查点失败: %w", err)
	}
	return nil
}

// Snapshot 返回当前状态的值拷贝，供 Gate 评估与监控读取。
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// RecordOpened 在交易开仓时登记敞口与频率窗口。
// 敞口从开仓时刻起计入，而非等到平仓回报。
func (t *Tracker) RecordOpened(ctx context.Context, symbol string, fraction float64, now time.Time) error {
	if symbol == "" {
		return errors.New("risk: symbol 不能为空")
	}
	if fraction <= 0 || fraction > 1 {
		return fmt.Errorf("risk: 开仓比例必须位于 (0,1]，当前为 %v", fraction)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.broken {
		return fmt.Errorf("%w: 状态已损坏，拒绝登记开仓", ErrStateInconsistency)
	}
	if _, exists := t.state.OpenFractions[symbol]; exists {
		return fmt.Errorf("risk: %s 已有未平仓头寸，不能重复开仓", symbol)
	}

	t.rollTradingDay(now)
	t.pruneRateWindow(now)

	t.state.TradeTimes = append(t.state.TradeTimes, now.UTC())
	t.state.OpenExposurePct += fraction
	t.state.OpenFractions[symbol] = fraction

	if err := t.checkpoint(ctx); err != nil {
		t.logger.Warn("风险状态检查点写入失败", zap.Error(err))
	}
	return nil
}

// RecordOutcome 在平仓后回写已实现盈亏，更新净值、高水位与当日计数，
// 并释放开仓时登记的敞口。时钟由调用方显式传入，引擎保持时钟无关。
func (t *Tracker) RecordOutcome(ctx context.Context, outcome market.TradeOutcome, now time.Time) error {
	if outcome.Symbol == "" {
		return errors.New("risk: outcome.symbol 不能为空")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.broken {
		return fmt.Errorf("%w: 状态已损坏，拒绝记录平仓", ErrStateInconsistency)
	}

	fraction, open := t.state.OpenFractions[outcome.Symbol]
	if !open {
		t.broken = true
		return fmt.Errorf("%w: 收到未登记头寸 %s 的平仓回报", ErrStateInconsistency, outcome.Symbol)
	}

	t.rollTradingDay(now)

	t.state.OpenExposurePct -= fraction
	if t.state.OpenExposurePct < 0 {
		if t.state.OpenExposurePct < -exposureEpsilon {
			t.broken = true
			return fmt.Errorf("%w: 释放敞口后出现负值 %v", ErrStateInconsistency, t.state.OpenExposurePct)
		}
		t.state.OpenExposurePct = 0
	}
	delete(t.state.OpenFractions, outcome.Symbol)

	t.state.CurrentEquity += outcome.PnL
	if t.state.CurrentEquity < 0 {
		t.broken = true
		return fmt.Errorf("%w: 净值变为负数 %v", ErrStateInconsistency, t.state.CurrentEquity)
	}
	t.state.RealizedPnLToday += outcome.PnL

	if t.state.CurrentEquity > t.state.EquityHighWaterMark {
		t.state.EquityHighWaterMark = t.state.CurrentEquity
	}

	if !t.state.Halted && t.state.Drawdown() >= t.limits.MaxDrawdownPct {
		t.state.Halted = true
		t.logger.Warn("回撤达到熔断阈值，标记停止交易",
			zap.Float64("drawdown", t.state.Drawdown()),
			zap.Float64("limit", t.limits.MaxDrawdownPct),
			zap.Float64("equity", t.state.CurrentEquity),
		)
	}

	if err := t.checkpoint(ctx); err != nil {
		t.logger.Warn("风险状态检查点写入失败", zap.Error(err))
	}
	return nil
}

// ResetHalt 由运维人员在确认风险后手动复位熔断状态。
// 高水位重置为当前净值，否则复位后会立即再次触发。
func (t *Tracker) ResetHalt(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.broken {
		return fmt.Errorf("%w: 状态已损坏，复位前需先重建", ErrStateInconsistency)
	}

	t.state.Halted = false
	t.state.EquityHighWaterMark = t.state.CurrentEquity
	t.logger.Info("熔断状态已手动复位", zap.Float64("equity", t.state.CurrentEquity))

	if err := t.checkpoint(ctx); err != nil {
		t.logger.Warn("风险状态检查点写入失败", zap.Error(err))
	}
	return nil
}

// Reconcile 用外部成交台账核对敞口。崩溃后重启时以台账为准重置，
// 不做任何猜测式修补。
func (t *Tracker) Reconcile(ctx context.Context, openFractions map[string]float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0.0
	fractions := make(map[string]float64, len(openFractions))
	for symbol, fraction := range openFractions {
		if fraction <= 0 {
			return fmt.Errorf("%w: 台账中 %s 敞口非法 (%v)", ErrStateInconsistency, symbol, fraction)
		}
		fractions[symbol] = fraction
		total += fraction
	}

	t.state.OpenFractions = fractions
	t.state.OpenExposurePct = total
	t.broken = false

	t.logger.Info("已按外部台账核对敞口",
		zap.Int("open_positions", len(fractions)),
		zap.Float64("open_exposure_pct", total),
	)

	if err := t.checkpoint(ctx); err != nil {
		t.logger.Warn("风险状态检查点写入失败", zap.Error(err))
	}
	return nil
}

func (t *Tracker) rollTradingDay(now time.Time) {
	day := TradingDay(now, t.limits.DailyResetHour)
	if day == t.state.TradingDay {
		return
	}
	t.state.TradingDay = day
	t.state.RealizedPnLToday = 0
	t.state.DayStartEquity = t.state.CurrentEquity
}

func (t *Tracker) pruneRateWindow(now time.Time) {
	cutoff := now.Add(-RateWindow)
	kept := t.state.TradeTimes[:0]
	for _, ts := range t.state.TradeTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.state.TradeTimes = kept
}
