package order

import (
	"encoding/json"
	"fmt"
)

// Order 某一档位在交易所侧的本地跟踪状态。client_order_id 一律由本地铸造，
// 之后所有交易所通知按 id 回写到同一槽位。
type Order struct {
	ID           uint64
	Price        float64
	Amount       float64 // 剩余数量
	FilledAmount float64
	Status       Status
}

// NewOrder 在发出 insert 意图时登记的新槽位，状态为 Unset 直到首个确认到达。
func NewOrder(id uint64, price, amount float64) Order {
	return Order{ID: id, Price: price, Amount: amount, Status: StatusUnset}
}

// IsOpen 报告订单是否仍挂在交易所。
func (o Order) IsOpen() bool {
	return o.Status == StatusOpen || o.Status == StatusPartiallyFilled
}

// MarshalJSON 枚举在 JSON 中始终以小写字符串出现。
func (s Side) MarshalJSON() ([]byte, error)        { return json.Marshal(s.String()) }
func (s Status) MarshalJSON() ([]byte, error)      { return json.Marshal(s.String()) }
func (t Type) MarshalJSON() ([]byte, error)        { return json.Marshal(t.String()) }
func (t TimeInForce) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

type orderPayload struct {
	ClientOrderID *uint64  `json:"client_order_id"`
	Price         *float64 `json:"price"`
	Remaining     *float64 `json:"remaining_amount"`
	Filled        *float64 `json:"filled_amount"`
	Status        *string  `json:"status"`
}

// FromNotification 解析 session.orders 数组中的单个订单对象。
// client_order_id、price、remaining_amount、status 缺失即解析失败；
// 未知的状态字符串保留为 Unset，不报错。
func FromNotification(raw json.RawMessage) (Order, error) {
	var p orderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Order{}, fmt.Errorf("decode order notification: %w", err)
	}
	if p.ClientOrderID == nil {
		return Order{}, fmt.Errorf("order notification missing client_order_id")
	}
	if p.Price == nil {
		return Order{}, fmt.Errorf("order notification missing price")
	}
	if p.Remaining == nil {
		return Order{}, fmt.Errorf("order notification missing remaining_amount")
	}
	if p.Status == nil {
		return Order{}, fmt.Errorf("order notification missing status")
	}

	o := Order{
		ID:     *p.ClientOrderID,
		Price:  *p.Price,
		Amount: *p.Remaining,
	}
	if p.Filled != nil {
		o.FilledAmount = *p.Filled
	}
	if st, err := ParseStatus(*p.Status); err == nil {
		o.Status = st
	}
	return o, nil
}
