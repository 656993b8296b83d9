package feature

import (
	"context"
	"fmt"
	"math"
	"time"

	talib "github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"fred-agent/internal/scanner"
)

// 指标计算至少需要的K线数量，由最长的 EMA 周期决定。
const minCandles = 60

// Set 汇总单个交易对的技术特征，用于后续提示词拼装。
type Set struct {
	Symbol      string
	GeneratedAt time.Time

	Close     float64
	PrevClose float64

	RSI      float64
	RSIState string

	EMA12   float64
	EMA26   float64
	EMA50   float64
	EMARank string

	ATRAbsolute float64
	ATRRelative float64

	VolumeRatio      float64
	RecentVolatility float64
}

// Extractor 根据市场候选提取技术特征。
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor 创建特征提取器。
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract 计算单个候选的全部特征。
func (e *Extractor) Extract(ctx context.Context, candidate scanner.Candidate) (Set, error) {
	if len(candidate.Candles) < minCandles {
		return Set{}, fmt.Errorf("K线数量不足，至少需要 %d 根，当前 %d", minCandles, len(candidate.Candles))
	}

	select {
	case <-ctx.Done():
		return Set{}, ctx.Err()
	default:
	}

	series := NewSeries(candidate.Candles)
	closes := series.Close

	ema12 := last(talib.Ema(closes, 12))
	ema26 := last(talib.Ema(closes, 26))
	ema50 := last(talib.Ema(closes, 50))
	rsi := last(talib.Rsi(closes, 14))
	atr := last(talib.Atr(series.High, series.Low, closes, 14))

	lastClose := last(closes)
	volumeAvg := mean(tail(series.Volume, 20))

	set := Set{
		Symbol:           candidate.Symbol,
		GeneratedAt:      candidate.RetrievedAt.UTC(),
		Close:            clean(lastClose),
		PrevClose:        clean(prev(closes)),
		RSI:              clean(rsi),
		RSIState:         rsiState(rsi),
		EMA12:            clean(ema12),
		EMA26:            clean(ema26),
		EMA50:            clean(ema50),
		EMARank:          emaRank(ema12, ema26, ema50),
		ATRAbsolute:      clean(atr),
		ATRRelative:      clean(safeDivide(atr, lastClose)),
		VolumeRatio:      clean(safeDivide(last(series.Volume), volumeAvg)),
		RecentVolatility: clean(recentVolatility(closes)),
	}

	e.logger.Debug("特征提取完成",
		zap.String("symbol", set.Symbol),
		zap.Float64("rsi", set.RSI),
		zap.String("ema_rank", set.EMARank),
	)

	return set, nil
}

func emaRank(ema12, ema26, ema50 float64) string {
	switch {
	case ema12 > ema26 && ema26 > ema50:
		return "bullish_alignment"
	case ema12 < ema26 && ema26 < ema50:
		return "bearish_alignment"
	default:
		return "mixed_alignment"
	}
}

func rsiState(rsi float64) string {
	rsi = clean(rsi)
	switch {
	case rsi >= 70:
		return "overbought"
	case rsi <= 30:
		return "oversold"
	default:
		return "neutral"
	}
}

// recentVolatility 返回最近14根K线收益率的标准差。
func recentVolatility(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}

	return stdDev(tail(returns, 14))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(n))
}
