package scanner

import "time"

// Timeframe1h 为主决策周期。
const Timeframe1h = "1h"

// Candle 代表单根K线。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Candidate 为扫描产出的单个候选交易对：最新价格加上特征计算所需的K线。
type Candidate struct {
	Symbol      string
	LastPrice   float64
	Candles     []Candle
	RetrievedAt time.Time
}
