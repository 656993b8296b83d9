package engine

import (
	"errors"
	"math"
	"testing"
)

func TestSize_HalfKellyWithConfidence(t *testing.T) {
	// p=0.58, b=1 → kelly=0.16; half-kelly=0.08; ×0.65 → 0.052
	fraction, err := Size(0.58, 0.65, 1)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if diff := math.Abs(fraction - 0.052); diff > 1e-9 {
		t.Errorf("expected fraction 0.052, got %v", fraction)
	}
}

func TestSize_NoEdgeReturnsZero(t *testing.T) {
	cases := []struct {
		name        string
		probability float64
		odds        float64
	}{
		{"coin flip at even odds", 0.5, 1},
		{"below breakeven", 0.4, 1},
		{"breakeven at long odds", 0.25, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fraction, err := Size(tc.probability, 1, tc.odds)
			if err != nil {
				t.Fatalf("Size returned error: %v", err)
			}
			if fraction != 0 {
				t.Errorf("expected zero fraction, got %v", fraction)
			}
		})
	}
}

func TestSize_ZeroConfidenceReturnsZero(t *testing.T) {
	fraction, err := Size(0.9, 0, 1)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if fraction != 0 {
		t.Errorf("expected zero fraction with zero confidence, got %v", fraction)
	}
}

func TestSize_ConfidenceMonotonic(t *testing.T) {
	low, err := Size(0.6, 0.3, 1)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	high, err := Size(0.6, 0.9, 1)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if low >= high {
		t.Errorf("expected higher confidence to size larger: low=%v high=%v", low, high)
	}
}

func TestSize_Deterministic(t *testing.T) {
	first, err := Size(0.63, 0.72, 1.5)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	for i := 0; i < 100; i++ {
		again, err := Size(0.63, 0.72, 1.5)
		if err != nil {
			t.Fatalf("Size returned error: %v", err)
		}
		if again != first {
			t.Fatalf("expected identical output on repeat, got %v vs %v", again, first)
		}
	}
}

func TestSize_CappedAtOne(t *testing.T) {
	// 极端输入下结果也必须落在 [0,1] 区间内。
	fraction, err := Size(0.999, 1, 1000)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if fraction < 0 || fraction > 1 {
		t.Errorf("expected fraction within [0,1], got %v", fraction)
	}
}

func TestSize_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name        string
		probability float64
		confidence  float64
		odds        float64
	}{
		{"negative probability", -0.1, 0.5, 1},
		{"probability above one", 1.1, 0.5, 1},
		{"NaN probability", math.NaN(), 0.5, 1},
		{"negative confidence", 0.6, -0.2, 1},
		{"confidence above one", 0.6, 1.2, 1},
		{"zero odds", 0.6, 0.5, 0},
		{"negative odds", 0.6, 0.5, -1},
		{"NaN odds", 0.6, 0.5, math.NaN()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Size(tc.probability, tc.confidence, tc.odds); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
