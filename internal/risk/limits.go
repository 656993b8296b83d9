package risk

import (
	"fmt"
	"time"

	"fred-agent/internal/config"
)

// Limits 为不可变的风控策略参数，启动时从配置加载一次。
type Limits struct {
	MaxPositionPct       float64 // 单笔仓位上限（净值占比）
	MaxTotalExposurePct  float64 // 总敞口上限
	MaxDailyLossPct      float64 // 当日亏损上限，触发后当日停止开仓
	MaxDrawdownPct       float64 // 回撤熔断阈值
	MaxTradesPerHour     int     // 滑动一小时窗口内的开仓次数上限
	MinEdgePct           float64 // 最小统计优势要求
	SlippageTolerancePct float64 // 执行滑点容忍度
	DailyResetHour       int     // 交易日切换的 UTC 小时
}

// RateWindow 为开仓频率限制使用的滑动窗口长度。
const RateWindow = time.Hour

// NewLimits 从配置构建 Limits。
func NewLimits(cfg config.RiskConfig) (Limits, error) {
	limits := Limits{
		MaxPositionPct:       cfg.MaxPositionPct,
		MaxTotalExposurePct:  cfg.MaxTotalExposurePct,
		MaxDailyLossPct:      cfg.MaxDailyLossPct,
		MaxDrawdownPct:       cfg.MaxDrawdownPct,
		MaxTradesPerHour:     cfg.MaxTradesPerHour,
		MinEdgePct:           cfg.MinEdgePct,
		SlippageTolerancePct: cfg.SlippageTolerancePct,
		DailyResetHour:       cfg.DailyResetHour,
	}

	if limits.MaxPositionPct <= 0 || limits.MaxPositionPct > 1 {
		return Limits{}, fmt.Errorf("risk: max_position_pct 必须位于 (0,1]，当前为 %v", limits.MaxPositionPct)
	}
	if limits.MaxTotalExposurePct <= 0 || limits.MaxTotalExposurePct > 1 {
		return Limits{}, fmt.Errorf("risk: max_total_exposure_pct 必须位于 (0,1]，当前为 %v", limits.MaxTotalExposurePct)
	}
	if limits.MaxDailyLossPct <= 0 || limits.MaxDailyLossPct > 1 {
		return Limits{}, fmt.Errorf("risk: max_daily_loss_pct 必须位于 (0,1]，当前为 %v", limits.MaxDailyLossPct)
	}
	if limits.MaxDrawdownPct <= 0 || limits.MaxDrawdownPct > 1 {
		return Limits{}, fmt.Errorf("risk: max_drawdown_pct 必须位于 (0,1]，当前为 %v", limits.MaxDrawdownPct)
	}
	if limits.MaxTradesPerHour <= 0 {
		return Limits{}, fmt.Errorf("risk: max_trades_per_hour 必须大于0，当前为 %d", limits.MaxTradesPerHour)
	}
	if limits.MinEdgePct < 0 || limits.MinEdgePct > 0.5 {
		return Limits{}, fmt.Errorf("risk: min_edge_pct 应位于 [0,0.5]，当前为 %v", limits.MinEdgePct)
	}
	if limits.SlippageTolerancePct < 0 || limits.SlippageTolerancePct > 0.2 {
		return Limits{}, fmt.Errorf("risk: slippage_tolerance_pct 应位于 [0,0.2]，当前为 %v", limits.SlippageTolerancePct)
	}
	if limits.DailyResetHour < 0 || limits.DailyResetHour > 23 {
		return Limits{}, fmt.Errorf("risk: daily_reset_hour 必须位于 [0,23]，当前为 %d", limits.DailyResetHour)
	}

	return limits, nil
}
