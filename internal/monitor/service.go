package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fred-agent/internal/estimator"
	"fred-agent/internal/feature"
	"fred-agent/internal/market"
	"fred-agent/internal/risk"
	"fred-agent/internal/store"
)

// Service 负责持久化监控事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordSignal 记录进入决策引擎的信号。
func (s *Service) RecordSignal(ctx context.Context, sig market.Signal, features feature.Set) {
	if err := s.Record(ctx, Event{
		Type:      EventSignal,
		Timestamp: time.Now().UTC(),
		Payload:   SignalPayload{Signal: sig, Features: features},
	}); err != nil {
		s.logger.Warn("记录信号事件失败", zap.Error(err))
	}
}

// RecordEstimate 记录模型概率评估。
func (s *Service) RecordEstimate(ctx context.Context, estimate estimator.Estimate, features feature.Set) {
	if err := s.Record(ctx, Event{
		Type:      EventEstimate,
		Timestamp: time.Now().UTC(),
		Payload:   EstimatePayload{Estimate: estimate, Features: features},
	}); err != nil {
		s.logger.Warn("记录评估事件失败", zap.Error(err))
	}
}

// RecordDecision 记录决策结果。
func (s *Service) RecordDecision(ctx context.Context, sig market.Signal, decision risk.Decision, state risk.State) {
	if err := s.Record(ctx, Event{
		Type:      EventDecision,
		Timestamp: time.Now().UTC(),
		Payload:   DecisionPayload{Signal: sig, Decision: decision, State: state},
	}); err != nil {
		s.logger.Warn("记录决策事件失败", zap.Error(err))
	}
}

// RecordOutcome 记录已平仓交易。
func (s *Service) RecordOutcome(ctx context.Context, outcome market.TradeOutcome) {
	if err := s.Record(ctx, Event{
		Type:      EventOutcome,
		Timestamp: time.Now().UTC(),
		Payload:   OutcomePayload{Outcome: outcome},
	}); err != nil {
		s.logger.Warn("记录平仓事件失败", zap.Error(err))
	}
}

// RecordHalt 记录熔断触发。
func (s *Service) RecordHalt(ctx context.Context, drawdown, equity float64) {
	if err := s.Record(ctx, Event{
		Type:      EventHalt,
		Timestamp: time.Now().UTC(),
		Payload:   HaltPayload{Drawdown: drawdown, Equity: equity},
	}); err != nil {
		s.logger.Warn("记录熔断事件失败", zap.Error(err))
	}
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Error:   err.Error(),
		Context: ctxMap,
	}
	if recErr := s.Record(ctx, Event{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// Stats 汇总全部已平仓交易的绩效指标。
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM monitor_events WHERE event_type = ? ORDER BY id`,
		string(EventOutcome),
	)
	if err != nil {
		return Stats{}, fmt.Errorf("monitor: 查询平仓事件失败: %w", err)
	}
	defer rows.Close()

	var stats Stats
	var grossProfit, grossLoss float64
	for rows.Next() {
		var payload string
		if scanErr := rows.Scan(&payload); scanErr != nil {
			return Stats{}, fmt.Errorf("monitor: 解析平仓事件失败: %w", scanErr)
		}

		var record OutcomePayload
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			s.logger.Warn("跳过无法解析的平仓事件", zap.Error(err))
			continue
		}

		stats.Trades++
		stats.TotalPnL += record.Outcome.PnL
		if record.Outcome.Win {
			stats.Wins++
		}
		if record.Outcome.PnL > 0 {
			grossProfit += record.Outcome.PnL
		} else {
			grossLoss += -record.Outcome.PnL
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("monitor: 读取平仓事件失败: %w", err)
	}

	if stats.Trades > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Trades)
		stats.Expectancy = stats.TotalPnL / float64(stats.Trades)
	}
	if grossLoss > 0 {
		stats.ProfitFactor = grossProfit / grossLoss
	}

	return stats, nil
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM monitor_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}
