package market

import (
	"encoding/json"
	"fmt"
	"time"
)

// Ticker 全应用共用的行情快照模型，字段与交易所 ticker.<name>.raw 推送一一对应。
type Ticker struct {
	InstrumentName        string  `json:"instrument_name"`
	MarkPrice             float64 `json:"mark_price"`
	MarkTimestamp         float64 `json:"mark_timestamp"`
	BestBidPrice          float64 `json:"best_bid_price"`
	BestBidAmount         float64 `json:"best_bid_amount"`
	BestAskPrice          float64 `json:"best_ask_price"`
	BestAskAmount         float64 `json:"best_ask_amount"`
	LastPrice             float64 `json:"last_price"`
	Delta                 float64 `json:"delta"`
	Volume24h             float64 `json:"volume_24h"`
	Value24h              float64 `json:"value_24h"`
	LowPrice24h           float64 `json:"low_price_24h"`
	HighPrice24h          float64 `json:"high_price_24h"`
	Change24h             float64 `json:"change_24h"`
	IndexPrice            float64 `json:"index_price"`
	Forward               float64 `json:"forward"`
	FundingMark           float64 `json:"funding_mark"`
	FundingRate           float64 `json:"funding_rate"`
	CollarLow             float64 `json:"collar_low"`
	CollarHigh            float64 `json:"collar_high"`
	RealisedFunding24h    float64 `json:"realised_funding_24h"`
	AverageFundingRate24h float64 `json:"average_funding_rate_24h"`
	OpenInterest          float64 `json:"open_interest"`
	ProcessingTimestamp   float64 `json:"processing_timestamp"`
}

// tickerPayload 解码用中间结构：四个字段为必填，其余缺失时取 0。
type tickerPayload struct {
	MarkPrice             *float64 `json:"mark_price"`
	MarkTimestamp         *float64 `json:"mark_timestamp"`
	BestBidPrice          float64  `json:"best_bid_price"`
	BestBidAmount         float64  `json:"best_bid_amount"`
	BestAskPrice          float64  `json:"best_ask_price"`
	BestAskAmount         float64  `json:"best_ask_amount"`
	LastPrice             float64  `json:"last_price"`
	Delta                 float64  `json:"delta"`
	Volume24h             float64  `json:"volume_24h"`
	Value24h              float64  `json:"value_24h"`
	LowPrice24h           float64  `json:"low_price_24h"`
	HighPrice24h          float64  `json:"high_price_24h"`
	Change24h             float64  `json:"change_24h"`
	Index                 *float64 `json:"index"`
	Forward               float64  `json:"forward"`
	FundingMark           float64  `json:"funding_mark"`
	FundingRate           *float64 `json:"funding_rate"`
	CollarLow             float64  `json:"collar_low"`
	CollarHigh            float64  `json:"collar_high"`
	RealisedFunding24h    float64  `json:"realised_funding_24h"`
	AverageFundingRate24h float64  `json:"average_funding_rate_24h"`
	OpenInterest          float64  `json:"open_interest"`
}

// ParseTicker 解析 ticker 推送。mark_price、mark_timestamp、funding_rate、index
// 四个字段缺失时整条更新失败，其余字段缺省为 0。
func ParseTicker(raw json.RawMessage, instrumentName string) (Ticker, error) {
	var p tickerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Ticker{}, fmt.Errorf("decode ticker: %w", err)
	}
	if p.MarkPrice == nil {
		return Ticker{}, fmt.Errorf("ticker missing mark_price")
	}
	if p.MarkTimestamp == nil {
		return Ticker{}, fmt.Errorf("ticker missing mark_timestamp")
	}
	if p.FundingRate == nil {
		return Ticker{}, fmt.Errorf("ticker missing funding_rate")
	}
	if p.Index == nil {
		return Ticker{}, fmt.Errorf("ticker missing index")
	}

	return Ticker{
		InstrumentName:        instrumentName,
		MarkPrice:             *p.MarkPrice,
		MarkTimestamp:         *p.MarkTimestamp,
		BestBidPrice:          p.BestBidPrice,
		BestBidAmount:         p.BestBidAmount,
		BestAskPrice:          p.BestAskPrice,
		BestAskAmount:         p.BestAskAmount,
		LastPrice:             p.LastPrice,
		Delta:                 p.Delta,
		Volume24h:             p.Volume24h,
		Value24h:              p.Value24h,
		LowPrice24h:           p.LowPrice24h,
		HighPrice24h:          p.HighPrice24h,
		Change24h:             p.Change24h,
		IndexPrice:            *p.Index,
		Forward:               p.Forward,
		FundingMark:           p.FundingMark,
		FundingRate:           *p.FundingRate,
		CollarLow:             p.CollarLow,
		CollarHigh:            p.CollarHigh,
		RealisedFunding24h:    p.RealisedFunding24h,
		AverageFundingRate24h: p.AverageFundingRate24h,
		OpenInterest:          p.OpenInterest,
		ProcessingTimestamp:   float64(time.Now().UnixNano()) / 1e9,
	}, nil
}

// BestBid 返回最优买价，不可用时返回 false。
func (t Ticker) BestBid() (float64, bool) {
	if t.BestBidPrice > 0 {
		return t.BestBidPrice, true
	}
	return 0, false
}

// BestAsk 返回最优卖价，不可用时返回 false。
func (t Ticker) BestAsk() (float64, bool) {
	if t.BestAskPrice > 0 {
		return t.BestAskPrice, true
	}
	return 0, false
}
