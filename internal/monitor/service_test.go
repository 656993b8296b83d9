package monitor

import (
	"context"
	"math"
	"testing"
	"time"

	"fred-agent/internal/config"
	"fred-agent/internal/market"
	"fred-agent/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	svc, err := NewService(st, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestRecordAndListEvents(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	outcome := market.TradeOutcome{Symbol: "SOL", PnL: 12.5, Win: true, ClosedAt: time.Now().UTC()}
	svc.RecordOutcome(ctx, outcome)
	svc.RecordHalt(ctx, 0.16, 840)

	all, err := svc.ListEvents(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}

	halts, err := svc.ListEvents(ctx, EventHalt, 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(halts) != 1 || halts[0].Type != EventHalt {
		t.Errorf("expected single halt event, got %+v", halts)
	}
}

func TestStats_AggregatesOutcomes(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	svc.RecordOutcome(ctx, market.TradeOutcome{Symbol: "SOL", PnL: 30, Win: true})
	svc.RecordOutcome(ctx, market.TradeOutcome{Symbol: "SOL", PnL: 15, Win: true})
	svc.RecordOutcome(ctx, market.TradeOutcome{Symbol: "SOL", PnL: -9, Win: false})

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Trades != 3 || stats.Wins != 2 {
		t.Errorf("expected 3 trades with 2 wins, got %+v", stats)
	}
	if math.Abs(stats.WinRate-2.0/3.0) > 1e-12 {
		t.Errorf("expected win rate 2/3, got %v", stats.WinRate)
	}
	if math.Abs(stats.TotalPnL-36) > 1e-9 {
		t.Errorf("expected total pnl 36, got %v", stats.TotalPnL)
	}
	if math.Abs(stats.ProfitFactor-5) > 1e-9 { // 45 / 9
		t.Errorf("expected profit factor 5, got %v", stats.ProfitFactor)
	}
	if math.Abs(stats.Expectancy-12) > 1e-9 {
		t.Errorf("expected expectancy 12, got %v", stats.Expectancy)
	}
}

func TestStats_Empty(t *testing.T) {
	svc := newTestService(t)
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("expected zero stats with no outcomes, got %+v", stats)
	}
}

func TestListEvents_LimitAndOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for i := 0; i < 5; i++ {
		svc.RecordOutcome(ctx, market.TradeOutcome{Symbol: "SOL", PnL: float64(i)})
	}

	events, err := svc.ListEvents(ctx, EventOutcome, 3)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected limit of 3, got %d", len(events))
	}
}
