package executor

import (
	"math"
	"testing"
	"time"

	"fred-agent/internal/risk"
)

func tradeDecision(symbol string) risk.Decision {
	return risk.Decision{
		Symbol:       symbol,
		Action:       risk.ActionTrade,
		SizeFraction: 0.05,
		SizeQuote:    50,
	}
}

func TestPaperTrader_OpenAppliesSlippage(t *testing.T) {
	trader, err := NewPaperTrader(0.01, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewPaperTrader returned error: %v", err)
	}

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pos, err := trader.Open(tradeDecision("SOL"), 100, now)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if math.Abs(pos.EntryPrice-101) > 1e-9 {
		t.Errorf("expected entry price 101 with 1%% slippage, got %v", pos.EntryPrice)
	}
	if !trader.HasPosition("SOL") {
		t.Errorf("expected open position for SOL")
	}
}

func TestPaperTrader_RejectsSkippedDecision(t *testing.T) {
	trader, err := NewPaperTrader(0, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewPaperTrader returned error: %v", err)
	}

	skip := risk.Decision{Symbol: "SOL", Action: risk.ActionSkip}
	if _, err := trader.Open(skip, 100, time.Now()); err == nil {
		t.Errorf("expected skip decision to be rejected")
	}
}

func TestPaperTrader_CloseComputesPnL(t *testing.T) {
	trader, err := NewPaperTrader(0, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewPaperTrader returned error: %v", err)
	}

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := trader.Open(tradeDecision("SOL"), 100, now); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	outcome, err := trader.Close("SOL", 110, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if math.Abs(outcome.PnL-5) > 1e-9 { // 50 * (110/100 - 1)
		t.Errorf("expected pnl 5, got %v", outcome.PnL)
	}
	if !outcome.Win {
		t.Errorf("expected winning outcome")
	}
	if trader.HasPosition("SOL") {
		t.Errorf("expected position removed after close")
	}

	if _, err := trader.Close("SOL", 110, now); err == nil {
		t.Errorf("expected double close to fail")
	}
}

func TestPaperTrader_MatureSymbols(t *testing.T) {
	trader, err := NewPaperTrader(0, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewPaperTrader returned error: %v", err)
	}

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := trader.Open(tradeDecision("OLD"), 100, now); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if _, err := trader.Open(tradeDecision("NEW"), 100, now.Add(30*time.Minute)); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	mature := trader.MatureSymbols(now.Add(time.Hour))
	if len(mature) != 1 || mature[0] != "OLD" {
		t.Errorf("expected only OLD matured, got %v", mature)
	}

	mature = trader.MatureSymbols(now.Add(2 * time.Hour))
	if len(mature) != 2 {
		t.Errorf("expected both matured, got %v", mature)
	}
}

func TestPaperTrader_OpenFractions(t *testing.T) {
	trader, err := NewPaperTrader(0, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewPaperTrader returned error: %v", err)
	}

	now := time.Now().UTC()
	if _, err := trader.Open(tradeDecision("SOL"), 100, now); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	fractions := trader.OpenFractions()
	if got := fractions["SOL"]; math.Abs(got-0.05) > 1e-12 {
		t.Errorf("expected fraction 0.05, got %v", got)
	}
}
