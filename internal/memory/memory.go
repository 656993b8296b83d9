package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fred-agent/internal/market"
	"fred-agent/internal/store"
)

const (
	// 统计最近多少笔已平仓交易。
	lookbackTrades = 20
	// 样本不足此数时不做任何调整。
	minTrades = 5
	// 胜率低于该阈值时压低信心度。
	coldStreakWinRate = 0.4
	// 压低时使用的乘数。
	coldStreakMultiplier = 0.8
)

// Memory 记录每笔已平仓交易，并按符号的近期胜率给出信心度乘数。
// 乘数只会压低信心度，表现恢复后自动回到 1.0，无需人工干预。
type Memory struct {
	db     *sql.DB
	logger *zap.Logger
}

// New 创建记忆组件并初始化表结构。
func New(st *store.Store, logger *zap.Logger) (*Memory, error) {
	if st == nil {
		return nil, errors.New("memory: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Memory{db: st.DB(), logger: logger}
	if err := m.initSchema(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Memory) initSchema() error {
	schema := `CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		pnl REAL NOT NULL,
		win INTEGER NOT NULL,
		closed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trade_history_symbol ON trade_history(symbol, id DESC);`
	if _, err := m.db.Exec(schema); err != nil {
		return fmt.Errorf("memory: 初始化交易历史表失败: %w", err)
	}
	return nil
}

// Record 写入一笔已平仓交易。
func (m *Memory) Record(ctx context.Context, outcome market.TradeOutcome) error {
	if outcome.Symbol == "" {
		return errors.New("memory: outcome.symbol 不能为空")
	}

	win := 0
	if outcome.Win {
		win = 1
	}
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO trade_history (symbol, pnl, win, closed_at) VALUES (?, ?, ?, ?)`,
		outcome.Symbol, outcome.PnL, win, outcome.ClosedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("memory: 写入交易历史失败: %w", err)
	}
	return nil
}

// ConfidenceMultiplier 按符号最近 lookbackTrades 笔交易的胜率返回乘数。
// 样本不足 minTrades 笔时返回 1.0。
func (m *Memory) ConfidenceMultiplier(ctx context.Context, symbol string) (float64, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT win FROM trade_history WHERE symbol = ? ORDER BY id DESC LIMIT ?`,
		symbol, lookbackTrades,
	)
	if err != nil {
		return 1, fmt.Errorf("memory: 查询交易历史失败: %w", err)
	}
	defer rows.Close()

	total, wins := 0, 0
	for rows.Next() {
		var win int
		if err := rows.Scan(&win); err != nil {
			return 1, fmt.Errorf("memory: 读取交易历史失败: %w", err)
		}
		total++
		if win == 1 {
			wins++
		}
	}
	if err := rows.Err(); err != nil {
		return 1, fmt.Errorf("memory: 遍历交易历史失败: %w", err)
	}

	if total < minTrades {
		return 1, nil
	}

	winRate := float64(wins) / float64(total)
	if winRate < coldStreakWinRate {
		m.logger.Debug("近期胜率偏低，压低信心度",
			zap.String("symbol", symbol),
			zap.Float64("win_rate", winRate),
			zap.Int("sample", total),
		)
		return coldStreakMultiplier, nil
	}
	return 1, nil
}
