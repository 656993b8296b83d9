package risk

import (
	"math"
	"testing"
	"time"

	"fred-agent/internal/config"
	"fred-agent/internal/market"
)

func testLimits(t *testing.T) Limits {
	t.Helper()
	limits, err := NewLimits(config.RiskConfig{
		MaxPositionPct:      0.10,
		MaxTotalExposurePct: 0.50,
		MaxDailyLossPct:     0.05,
		MaxDrawdownPct:      0.15,
		MaxTradesPerHour:    10,
		MinEdgePct:          0.05,
		DailyResetHour:      0,
	})
	if err != nil {
		t.Fatalf("NewLimits returned error: %v", err)
	}
	return limits
}

func testSignal() market.Signal {
	return market.Signal{
		Symbol:      "SOL/USDT:USDT",
		Probability: 0.58,
		Confidence:  0.65,
		Price:       150,
		Timestamp:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBreakEvenProbability(t *testing.T) {
	cases := []struct {
		odds float64
		want float64
	}{
		{1, 0.5},
		{3, 0.25},
		{0.5, 2.0 / 3.0},
	}
	for _, tc := range cases {
		got := BreakEvenProbability(tc.odds)
		if math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("BreakEvenProbability(%v) = %v, want %v", tc.odds, got, tc.want)
		}
	}
}

func TestEvaluate_AllowsCleanTrade(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	state := NewState(1000, time.Now().UTC(), 0)

	decision := gate.Evaluate(0.052, testSignal(), 1, state, time.Now().UTC())
	if decision.Action != ActionTrade {
		t.Fatalf("expected trade, got %s (%v)", decision.Action, decision.ReasonCodes)
	}
	if decision.Vetoed {
		t.Errorf("expected no veto")
	}
	if len(decision.ReasonCodes) != 0 {
		t.Errorf("expected no reason codes, got %v", decision.ReasonCodes)
	}
	if math.Abs(decision.SizeFraction-0.052) > 1e-12 {
		t.Errorf("expected fraction 0.052, got %v", decision.SizeFraction)
	}
}

func TestEvaluate_ExposureHeadroomClamps(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	state := NewState(1000, time.Now().UTC(), 0)
	state.OpenExposurePct = 0.48

	decision := gate.Evaluate(0.052, testSignal(), 1, state, time.Now().UTC())
	if decision.Action != ActionTrade {
		t.Fatalf("expected clamped trade, got %s (%v)", decision.Action, decision.ReasonCodes)
	}
	if math.Abs(decision.SizeFraction-0.02) > 1e-9 {
		t.Errorf("expected fraction clamped to 0.02, got %v", decision.SizeFraction)
	}
	if decision.FirstReason() != ReasonExposureCap {
		t.Errorf("expected EXPOSURE_CAP code, got %v", decision.ReasonCodes)
	}
}

func TestEvaluate_ExposureFullVetoes(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	state := NewState(1000, time.Now().UTC(), 0)
	state.OpenExposurePct = 0.50

	decision := gate.Evaluate(0.052, testSignal(), 1, state, time.Now().UTC())
	if !decision.Vetoed || decision.FirstReason() != ReasonExposureCap {
		t.Errorf("expected exposure veto, got %+v", decision)
	}
}

func TestEvaluate_DrawdownHaltsEverything(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	state := NewState(1200, time.Now().UTC(), 0)
	state.CurrentEquity = 1020 // 15% drawdown from high water mark 1200

	decision := gate.Evaluate(0.052, testSignal(), 1, state, time.Now().UTC())
	if !decision.Vetoed || !decision.Halted {
		t.Fatalf("expected halt veto, got %+v", decision)
	}
	if decision.FirstReason() != ReasonDrawdownHalt {
		t.Errorf("expected DRAWDOWN_HALT, got %v", decision.ReasonCodes)
	}
}

func TestEvaluate_MinEdgeVetoes(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	state := NewState(1000, time.Now().UTC(), 0)

	sig := testSignal()
	sig.Probability = 0.51 // edge 1% < required 5% at even odds

	decision := gate.Evaluate(0.01, sig, 1, state, time.Now().UTC())
	if !decision.Vetoed || decision.FirstReason() != ReasonMinEdge {
		t.Errorf("expected MIN_EDGE veto, got %+v", decision)
	}
}

func TestEvaluate_DailyLossVetoes(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	state := NewState(1000, time.Now().UTC(), 0)
	state.CurrentEquity = 940
	state.RealizedPnLToday = -60 // 6% of day-start equity

	decision := gate.Evaluate(0.052, testSignal(), 1, state, time.Now().UTC())
	if !decision.Vetoed || decision.FirstReason() != ReasonDailyLoss {
		t.Errorf("expected DAILY_LOSS veto, got %+v", decision)
	}
	if decision.Halted {
		t.Errorf("daily loss must not set Halted")
	}
}

func TestEvaluate_RateLimitVetoes(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	now := time.Now().UTC()
	state := NewState(1000, now, 0)
	for i := 0; i < 10; i++ {
		state.TradeTimes = append(state.TradeTimes, now.Add(-time.Duration(i)*time.Minute))
	}

	decision := gate.Evaluate(0.052, testSignal(), 1, state, now)
	if !decision.Vetoed || decision.FirstReason() != ReasonRateLimit {
		t.Errorf("expected RATE_LIMIT veto, got %+v", decision)
	}
}

func TestEvaluate_OldTradesOutsideWindowIgnored(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	now := time.Now().UTC()
	state := NewState(1000, now, 0)
	for i := 0; i < 10; i++ {
		state.TradeTimes = append(state.TradeTimes, now.Add(-2*time.Hour))
	}

	decision := gate.Evaluate(0.052, testSignal(), 1, state, now)
	if decision.Action != ActionTrade {
		t.Errorf("expected stale trades to be ignored, got %+v", decision)
	}
}

func TestEvaluate_PositionCapClamps(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	state := NewState(1000, time.Now().UTC(), 0)

	sig := testSignal()
	sig.Probability = 0.8

	decision := gate.Evaluate(0.25, sig, 1, state, time.Now().UTC())
	if decision.Action != ActionTrade {
		t.Fatalf("expected clamped trade, got %+v", decision)
	}
	if math.Abs(decision.SizeFraction-0.10) > 1e-12 {
		t.Errorf("expected fraction clamped to 0.10, got %v", decision.SizeFraction)
	}
	if decision.FirstReason() != ReasonPositionCap {
		t.Errorf("expected POSITION_CAP code, got %v", decision.ReasonCodes)
	}
}

func TestEvaluate_ZeroFractionVetoesAsNoEdge(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	state := NewState(1000, time.Now().UTC(), 0)

	decision := gate.Evaluate(0, testSignal(), 1, state, time.Now().UTC())
	if !decision.Vetoed || decision.FirstReason() != ReasonNoEdge {
		t.Errorf("expected NO_EDGE veto, got %+v", decision)
	}
}

// 多条规则同时满足时，熔断优先于当日亏损与其余一切规则。
func TestEvaluate_CheckOrderPrecedence(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	now := time.Now().UTC()
	state := NewState(1200, now, 0)
	state.CurrentEquity = 1000 // ~16.7% drawdown
	state.RealizedPnLToday = -200
	state.DayStartEquity = 1200
	state.OpenExposurePct = 0.50
	for i := 0; i < 10; i++ {
		state.TradeTimes = append(state.TradeTimes, now)
	}

	decision := gate.Evaluate(0.052, testSignal(), 1, state, now)
	if decision.FirstReason() != ReasonDrawdownHalt {
		t.Errorf("expected DRAWDOWN_HALT to take precedence, got %v", decision.ReasonCodes)
	}
	if len(decision.ReasonCodes) != 1 {
		t.Errorf("veto must short-circuit, got %v", decision.ReasonCodes)
	}
}

func TestEvaluate_BothCapsRecorded(t *testing.T) {
	gate := NewGate(testLimits(t), nil)
	state := NewState(1000, time.Now().UTC(), 0)
	state.OpenExposurePct = 0.45

	sig := testSignal()
	sig.Probability = 0.8

	decision := gate.Evaluate(0.25, sig, 1, state, time.Now().UTC())
	if decision.Action != ActionTrade {
		t.Fatalf("expected clamped trade, got %+v", decision)
	}
	if math.Abs(decision.SizeFraction-0.05) > 1e-9 {
		t.Errorf("expected fraction clamped to headroom 0.05, got %v", decision.SizeFraction)
	}
	if len(decision.ReasonCodes) != 2 || decision.ReasonCodes[0] != ReasonPositionCap || decision.ReasonCodes[1] != ReasonExposureCap {
		t.Errorf("expected [POSITION_CAP EXPOSURE_CAP], got %v", decision.ReasonCodes)
	}
}
