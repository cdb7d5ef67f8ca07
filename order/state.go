package order

import "fmt"

// Side 订单方向。
type Side int

const (
	Buy Side = iota
	Sell
)

// Status 交易所上报的订单生命周期状态。
// StatusUnset 表示本地已登记但尚未收到任何确认。
type Status int

const (
	StatusUnset Status = iota
	StatusOpen
	StatusPartiallyFilled
	StatusCancelled
	StatusCancelledPartiallyFilled
	StatusFilled
)

// Type 订单类型。
type Type int

const (
	Limit Type = iota
	Market
)

// TimeInForce 订单有效期。
type TimeInForce int

const (
	GTC TimeInForce = iota
	IOC
)

// 两组映射表对应两种线上表示：交易所/JSON 用小写字符串，
// 下游 sink 消费者按数值编码索引。映射放在类型旁边，互相独立。

var sideStrings = map[Side]string{
	Buy:  "buy",
	Sell: "sell",
}

var sideCodes = map[Side]int{
	Buy:  0,
	Sell: 1,
}

var statusStrings = map[Status]string{
	StatusOpen:                     "open",
	StatusPartiallyFilled:          "partially_filled",
	StatusCancelled:                "cancelled",
	StatusCancelledPartiallyFilled: "cancelled_partially_filled",
	StatusFilled:                   "filled",
}

var statusCodes = map[Status]int{
	StatusOpen:                     1,
	StatusPartiallyFilled:          2,
	StatusCancelled:                3,
	StatusCancelledPartiallyFilled: 4,
	StatusFilled:                   5,
}

var typeStrings = map[Type]string{
	Limit:  "limit",
	Market: "market",
}

var typeCodes = map[Type]int{
	Limit:  0,
	Market: 1,
}

var tifStrings = map[TimeInForce]string{
	GTC: "good_till_cancelled",
	IOC: "immediate_or_cancel",
}

var tifCodes = map[TimeInForce]int{
	GTC: 0,
	IOC: 1,
}

// String 返回交易所线上使用的小写字符串。
func (s Side) String() string { return sideStrings[s] }

// Code 返回数值编码形式。
func (s Side) Code() int { return sideCodes[s] }

func (s Status) String() string {
	if s == StatusUnset {
		return "unset"
	}
	return statusStrings[s]
}

func (s Status) Code() int { return statusCodes[s] }

func (t Type) String() string { return typeStrings[t] }

func (t Type) Code() int { return typeCodes[t] }

func (t TimeInForce) String() string { return tifStrings[t] }

func (t TimeInForce) Code() int { return tifCodes[t] }

// IsTerminal 报告该状态是否已终结（不会再有成交或改单）。
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusCancelledPartiallyFilled, StatusFilled:
		return true
	}
	return false
}

// ParseStatus 解析交易所字符串形式的状态。
func ParseStatus(s string) (Status, error) {
	switch s {
	case "open":
		return StatusOpen, nil
	case "partially_filled":
		return StatusPartiallyFilled, nil
	case "cancelled":
		return StatusCancelled, nil
	case "cancelled_partially_filled":
		return StatusCancelledPartiallyFilled, nil
	case "filled":
		return StatusFilled, nil
	}
	return StatusUnset, fmt.Errorf("unknown order status: %q", s)
}

// ParseSide 解析交易所字符串形式的方向。
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return Buy, fmt.Errorf("unknown order side: %q", s)
}

// ParseType 解析订单类型，未知值回落为 limit。
func ParseType(s string) Type {
	if s == "market" {
		return Market
	}
	return Limit
}

// ParseTimeInForce 解析有效期，未知值回落为 GTC。
func ParseTimeInForce(s string) TimeInForce {
	if s == "immediate_or_cancel" {
		return IOC
	}
	return GTC
}
