package order

import (
	"errors"
	"fmt"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/market"
)

// Quote 某一档位的期望挂单：价格 + 数量。每个报价周期重算，从不持久化。
type Quote struct {
	Price  float64
	Amount float64
}

// Ladder 两侧的目标挂单梯子，level 0 离参考价最近。
type Ladder struct {
	Bids []Quote
	Asks []Quote
}

// Side 返回指定方向的档位序列。
func (l Ladder) Side(s Side) []Quote {
	if s == Buy {
		return l.Bids
	}
	return l.Asks
}

// QuoteConfig 报价参数。spread/step/threshold 均以 tick 数计价，
// 计算时乘以合约 tick size。
type QuoteConfig struct {
	SpreadTicks         float64
	BidStepTicks        float64
	AskStepTicks        float64
	BidSizes            []float64
	AskSizes            []float64
	AmendThresholdTicks float64
	Label               string
}

// Validate 检查报价参数可用。
func (c QuoteConfig) Validate() error {
	if c.SpreadTicks <= 0 {
		return errors.New("spreadTicks must be > 0")
	}
	if c.BidStepTicks < 0 || c.AskStepTicks < 0 {
		return errors.New("step ticks must be >= 0")
	}
	if len(c.BidSizes) == 0 && len(c.AskSizes) == 0 {
		return errors.New("at least one side must have sizes")
	}
	for _, v := range c.BidSizes {
		if v <= 0 {
			return fmt.Errorf("bid size must be > 0, got %v", v)
		}
	}
	for _, v := range c.AskSizes {
		if v <= 0 {
			return fmt.Errorf("ask size must be > 0, got %v", v)
		}
	}
	if c.AmendThresholdTicks < 0 {
		return errors.New("amendThresholdTicks must be >= 0")
	}
	return nil
}

// ComputeLadder 由市场快照算出目标梯子。以指数价为中轴（而不是盘口 mid），
// 每档价格 = index ∓ (spread + step·level)·tick，取整到最近 tick。
func ComputeLadder(snap market.Snapshot, cfg QuoteConfig) Ladder {
	var l Ladder
	l.Bids = make([]Quote, 0, len(cfg.BidSizes))
	for lvl, amt := range cfg.BidSizes {
		price := snap.IndexPrice - (cfg.SpreadTicks+cfg.BidStepTicks*float64(lvl))*snap.TickSize
		l.Bids = append(l.Bids, Quote{Price: market.RoundTick(price, snap.TickSize), Amount: amt})
	}
	l.Asks = make([]Quote, 0, len(cfg.AskSizes))
	for lvl, amt := range cfg.AskSizes {
		price := snap.IndexPrice + (cfg.SpreadTicks+cfg.AskStepTicks*float64(lvl))*snap.TickSize
		l.Asks = append(l.Asks, Quote{Price: market.RoundTick(price, snap.TickSize), Amount: amt})
	}
	return l
}

// MakeQuotes 读取一次行情快照并计算目标梯子。
// 行情未就绪时返回哨兵错误，调用方按“尚未就绪”处理。
func (m *Manager) MakeQuotes() (Ladder, error) {
	snap, err := m.market.Snapshot()
	if err != nil {
		return Ladder{}, err
	}
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()
	return ComputeLadder(snap, cfg), nil
}
