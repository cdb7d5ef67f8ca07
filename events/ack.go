// Package events 定义事件出口（EventSink）能力面：订单确认、成交与行情
// 的模型、解析，以及 RabbitMQ 出口实现。所有 publish 均为 fire-and-forget，
// 失败只记日志，绝不回传到报价/对账路径。
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/market"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/order"
)

// Sink 事件出口能力面。
type Sink interface {
	PublishAck(Ack)
	PublishTrade(Trade)
	PublishTicker(market.Ticker)
}

// Ack 交易所订单确认，供下游分析消费。
type Ack struct {
	OrderID             string            `json:"order_id"`
	ClientOrderID       *uint64           `json:"client_order_id"`
	InstrumentName      string            `json:"instrument_name"`
	Direction           order.Side        `json:"direction"`
	Price               *float64          `json:"price"`
	Amount              float64           `json:"amount"`
	FilledAmount        float64           `json:"filled_amount"`
	RemainingAmount     float64           `json:"remaining_amount"`
	Status              order.Status      `json:"status"`
	OrderType           order.Type        `json:"order_type"`
	TimeInForce         order.TimeInForce `json:"time_in_force"`
	ChangeReason        string            `json:"change_reason"`
	DeleteReason        *string           `json:"delete_reason"`
	InsertReason        *string           `json:"insert_reason"`
	CreateTime          float64           `json:"create_time"`
	Persistent          bool              `json:"persistent"`
	ProcessingTimestamp float64           `json:"processing_timestamp"`
}

type ackPayload struct {
	OrderID         string   `json:"order_id"`
	ClientOrderID   *uint64  `json:"client_order_id"`
	InstrumentName  string   `json:"instrument_name"`
	Direction       string   `json:"direction"`
	Price           *float64 `json:"price"`
	Amount          float64  `json:"amount"`
	FilledAmount    float64  `json:"filled_amount"`
	RemainingAmount float64  `json:"remaining_amount"`
	Status          string   `json:"status"`
	OrderType       string   `json:"order_type"`
	TimeInForce     string   `json:"time_in_force"`
	ChangeReason    string   `json:"change_reason"`
	DeleteReason    *string  `json:"delete_reason"`
	InsertReason    *string  `json:"insert_reason"`
	CreateTime      float64  `json:"create_time"`
	Persistent      bool     `json:"persistent"`
}

// ParseAck 从原始订单通知解析确认事件。解析是宽松的：
// 无法识别的枚举值回落到缺省（buy/open/limit/GTC），缺失字段取零值。
func ParseAck(raw json.RawMessage) (Ack, error) {
	var p ackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Ack{}, fmt.Errorf("decode ack: %w", err)
	}

	direction, err := order.ParseSide(p.Direction)
	if err != nil {
		direction = order.Buy
	}
	status, err := order.ParseStatus(p.Status)
	if err != nil {
		status = order.StatusOpen
	}

	return Ack{
		OrderID:             p.OrderID,
		ClientOrderID:       p.ClientOrderID,
		InstrumentName:      p.InstrumentName,
		Direction:           direction,
		Price:               p.Price,
		Amount:              p.Amount,
		FilledAmount:        p.FilledAmount,
		RemainingAmount:     p.RemainingAmount,
		Status:              status,
		OrderType:           order.ParseType(p.OrderType),
		TimeInForce:         order.ParseTimeInForce(p.TimeInForce),
		ChangeReason:        p.ChangeReason,
		DeleteReason:        p.DeleteReason,
		InsertReason:        p.InsertReason,
		CreateTime:          p.CreateTime,
		Persistent:          p.Persistent,
		ProcessingTimestamp: nowUnix(),
	}, nil
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
