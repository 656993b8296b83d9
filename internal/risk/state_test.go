package risk

import (
	"testing"
	"time"
)

func TestTradingDay_ResetHourShiftsBoundary(t *testing.T) {
	// 复位小时为8时，UTC 07:59 仍属于前一个交易日。
	before := time.Date(2024, 6, 2, 7, 59, 0, 0, time.UTC)
	after := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)

	if got := TradingDay(before, 8); got != "2024-06-01" {
		t.Errorf("expected 2024-06-01 before reset hour, got %s", got)
	}
	if got := TradingDay(after, 8); got != "2024-06-02" {
		t.Errorf("expected 2024-06-02 at reset hour, got %s", got)
	}
}

func TestTradingDay_MidnightResetMatchesCalendarDay(t *testing.T) {
	ts := time.Date(2024, 6, 2, 23, 59, 0, 0, time.UTC)
	if got := TradingDay(ts, 0); got != "2024-06-02" {
		t.Errorf("expected calendar day, got %s", got)
	}
}

func TestDrawdown(t *testing.T) {
	st := State{EquityHighWaterMark: 1200, CurrentEquity: 1020}
	if got := st.Drawdown(); got != 0.15 {
		t.Errorf("expected drawdown 0.15, got %v", got)
	}
}

func TestDailyLossPct_SignConvention(t *testing.T) {
	st := State{DayStartEquity: 1000, RealizedPnLToday: -60}
	if got := st.DailyLossPct(); got != -0.06 {
		t.Errorf("expected -0.06, got %v", got)
	}
	st.RealizedPnLToday = 30
	if got := st.DailyLossPct(); got != 0.03 {
		t.Errorf("expected 0.03 when profitable, got %v", got)
	}
}
