package risk

import (
	"fmt"
	"time"
)

// State 为进程生命周期内的风险计数器。仅允许通过 Tracker 的方法修改，
// 其他组件只读取 Snapshot 返回的值拷贝。
type State struct {
	EquityHighWaterMark float64            `json:"equity_high_water_mark"`
	CurrentEquity       float64            `json:"current_equity"`
	OpenExposurePct     float64            `json:"open_exposure_pct"`
	RealizedPnLToday    float64            `json:"realized_pnl_today"`
	DayStartEquity      float64            `json:"day_start_equity"`
	TradingDay          string             `json:"trading_day"`
	Halted              bool               `json:"halted"`
	TradeTimes          []time.Time        `json:"trade_times"`
	OpenFractions       map[string]float64 `json:"open_fractions"`
}

// NewState 以初始资金创建全新状态。
func NewState(initialEquity float64, now time.Time, resetHour int) State {
	return State{
		EquityHighWaterMark: initialEquity,
		CurrentEquity:       initialEquity,
		DayStartEquity:      initialEquity,
		TradingDay:          TradingDay(now, resetHour),
		OpenFractions:       make(map[string]float64),
	}
}

// Clone 返回深拷贝，供并发读取使用。
func (s State) Clone() State {
	dst := s
	dst.TradeTimes = append([]time.Time(nil), s.TradeTimes...)
	dst.OpenFractions = make(map[string]float64, len(s.OpenFractions))
	for k, v := range s.OpenFractions {
		dst.OpenFractions[k] = v
	}
	return dst
}

// Drawdown 返回距离高水位的回撤比例。
func (s State) Drawdown() float64 {
	if s.EquityHighWaterMark <= 0 {
		return 0
	}
	return (s.EquityHighWaterMark - s.CurrentEquity) / s.EquityHighWaterMark
}

// DailyLossPct 返回当日已实现亏损占日初净值的比例，盈利时为正。
func (s State) DailyLossPct() float64 {
	if s.DayStartEquity <= 0 {
		return 0
	}
	return s.RealizedPnLToday / s.DayStartEquity
}

// TradesWithin 统计窗口内的开仓次数。
func (s State) TradesWithin(window time.Duration, now time.Time) int {
	count := 0
	cutoff := now.Add(-window)
	for _, ts := range s.TradeTimes {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// validate 检查基本不变量，用于恢复与变更后的自检。
func (s State) validate() error {
	if s.CurrentEquity < 0 {
		return fmt.Errorf("%w: current_equity 为负 (%v)", ErrStateInconsistency, s.CurrentEquity)
	}
	if s.OpenExposurePct < -exposureEpsilon {
		return fmt.Errorf("%w: open_exposure_pct 为负 (%v)", ErrStateInconsistency, s.OpenExposurePct)
	}
	if s.EquityHighWaterMark < s.CurrentEquity {
		return fmt.Errorf("%w: 高水位 %v 低于当前净值 %v", ErrStateInconsistency, s.EquityHighWaterMark, s.CurrentEquity)
	}
	return nil
}

// TradingDay 按复位小时把时间戳归入交易日，引擎自身不读取墙钟。
func TradingDay(ts time.Time, resetHour int) string {
	if resetHour < 0 || resetHour > 23 {
		resetHour = 0
	}
	shifted := ts.UTC().Add(-time.Duration(resetHour) * time.Hour)
	return shifted.Format("2006-01-02")
}
