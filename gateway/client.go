// Package gateway 实现交易所的 JSON-RPC over WebSocket 客户端：
// 下单/撤单/改单/订阅/登录/接收，以及登录令牌铸造。
package gateway

import "encoding/json"

// 控制面 call id。数值本身任意，但必须全局唯一；
// 订单相关请求的关联 id 从 100 起，与这组常量分属不相交区间。
const (
	CallIDInstruments   uint64 = 0
	CallIDInstrument    uint64 = 1
	CallIDSubscribe     uint64 = 2
	CallIDLogin         uint64 = 3
	CallIDCancelSession uint64 = 4
	CallIDSetCOD        uint64 = 5
)

// Network 交易所环境。
type Network string

const (
	NetworkTest Network = "test"
	NetworkProd Network = "prod"
)

// URL 返回对应环境的 WebSocket 地址。
func (n Network) URL() string {
	if n == NetworkProd {
		return "wss://thalex.com/ws/api/v2"
	}
	return "wss://testnet.thalex.com/ws/api/v2"
}

// Instrument 合约元数据，启动时解析一次后不变。
type Instrument struct {
	InstrumentName string  `json:"instrument_name"`
	Type           string  `json:"type"`
	Underlying     string  `json:"underlying"`
	TickSize       float64 `json:"tick_size"`
}

// Message 入站消息信封。三种形态：{channel_name, notification} 推送、
// {id, result} 确认、{id, error} 拒绝。
type Message struct {
	ChannelName  string          `json:"channel_name"`
	Notification json.RawMessage `json:"notification"`
	ID           *uint64         `json:"id"`
	Result       json.RawMessage `json:"result"`
	Error        json.RawMessage `json:"error"`
}

// request 出站 JSON-RPC 请求。
type request struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
	ID     *uint64     `json:"id,omitempty"`
}
