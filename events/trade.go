package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Trade 一笔成交（fill）。
type Trade struct {
	TradeID             string  `json:"trade_id"`
	OrderID             string  `json:"order_id"`
	ClientOrderID       *uint64 `json:"client_order_id"`
	InstrumentName      string  `json:"instrument_name"`
	Price               float64 `json:"price"`
	Amount              float64 `json:"amount"`
	MakerTaker          string  `json:"maker_taker"`
	Time                float64 `json:"time"`
	ProcessingTimestamp float64 `json:"processing_timestamp"`
}

type fillPayload struct {
	TradeID    *string  `json:"trade_id"`
	Price      *float64 `json:"price"`
	Amount     *float64 `json:"amount"`
	MakerTaker *string  `json:"maker_taker"`
	Time       *float64 `json:"time"`
}

type orderFillsPayload struct {
	OrderID        *string       `json:"order_id"`
	ClientOrderID  *uint64       `json:"client_order_id"`
	InstrumentName *string       `json:"instrument_name"`
	Fills          []fillPayload `json:"fills"`
}

// ExtractFills 从一条订单通知中提取成交事件，每个 fill 一条。
// fill 未携带 trade_id 时本地铸一个。没有 fills 时返回空切片。
func ExtractFills(raw json.RawMessage) ([]Trade, error) {
	var p orderFillsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode order fills: %w", err)
	}
	if len(p.Fills) == 0 {
		return nil, nil
	}
	if p.InstrumentName == nil {
		return nil, fmt.Errorf("order with fills missing instrument_name")
	}

	orderID := "unknown"
	if p.OrderID != nil {
		orderID = *p.OrderID
	}

	now := nowUnix()
	trades := make([]Trade, 0, len(p.Fills))
	for _, f := range p.Fills {
		if f.Price == nil {
			return nil, fmt.Errorf("fill missing price")
		}
		if f.Amount == nil {
			return nil, fmt.Errorf("fill missing amount")
		}

		tradeID := ""
		if f.TradeID != nil {
			tradeID = *f.TradeID
		} else {
			tradeID = "trade-" + uuid.NewString()
		}
		makerTaker := "unknown"
		if f.MakerTaker != nil {
			makerTaker = *f.MakerTaker
		}
		ts := now
		if f.Time != nil {
			ts = *f.Time
		}

		trades = append(trades, Trade{
			TradeID:             tradeID,
			OrderID:             orderID,
			ClientOrderID:       p.ClientOrderID,
			InstrumentName:      *p.InstrumentName,
			Price:               *f.Price,
			Amount:              *f.Amount,
			MakerTaker:          makerTaker,
			Time:                ts,
			ProcessingTimestamp: now,
		})
	}
	return trades, nil
}
