package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCandleLimit = 120
	// 同时在途的交易对请求数，避免触发交易所限速。
	scanConcurrency = 4
)

// Scanner 并发扫描配置的全部交易对，产出候选列表。
type Scanner struct {
	client  *Client
	markets []string
	logger  *zap.Logger
}

// NewScanner 创建市场扫描器。
func NewScanner(client *Client, markets []string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		client:  client,
		markets: markets,
		logger:  logger,
	}
}

// Scan 拉取全部交易对的最新价格与K线。交易所维护时整轮放弃，
// 单个交易对失败只跳过该交易对。
func (s *Scanner) Scan(ctx context.Context) ([]Candidate, error) {
	var (
		mu         sync.Mutex
		candidates []Candidate
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(scanConcurrency)

	for _, symbol := range s.markets {
		symbol := symbol
		group.Go(func() error {
			candidate, err := s.scanSymbol(groupCtx, symbol)
			if err != nil {
				if errors.Is(err, ErrMaintenance) || errors.Is(err, context.Canceled) {
					return err
				}
				s.logger.Warn("扫描交易对失败，跳过",
					zap.String("symbol", symbol),
					zap.Error(err),
				)
				return nil
			}

			mu.Lock()
			candidates = append(candidates, candidate)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Symbol < candidates[j].Symbol
	})

	s.logger.Debug("市场扫描完成",
		zap.Int("markets", len(s.markets)),
		zap.Int("candidates", len(candidates)),
	)

	return candidates, nil
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string) (Candidate, error) {
	candles, err := s.client.FetchCandles(ctx, symbol, Timeframe1h, defaultCandleLimit)
	if err != nil {
		return Candidate{}, err
	}
	if len(candles) == 0 {
		return Candidate{}, fmt.Errorf("scanner: %s 未返回任何K线", symbol)
	}

	return Candidate{
		Symbol:      symbol,
		LastPrice:   candles[len(candles)-1].Close,
		Candles:     candles,
		RetrievedAt: time.Now().UTC(),
	}, nil
}
