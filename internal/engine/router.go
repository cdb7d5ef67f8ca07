package engine

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/events"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/gateway"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/infrastructure/logger"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/market"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/metrics"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/order"
)

// Router 把入站消息按频道/编号分发到各个状态持有方。
// 单条消息解析失败只记日志不终止会话，坏数据丢弃后继续收流。
type Router struct {
	market *market.State
	orders *order.Manager
	sink   events.Sink // 可为 nil，表示不外发事件
	log    *logger.Logger
}

// NewRouter 创建分发器。sink 传 nil 时订单回执与成交不外发。
func NewRouter(mkt *market.State, orders *order.Manager, sink events.Sink, log *logger.Logger) *Router {
	return &Router{market: mkt, orders: orders, sink: sink, log: log}
}

// HandleNotification 按频道名分发一条订阅推送。
func (r *Router) HandleNotification(channel string, notification json.RawMessage) {
	switch {
	case strings.HasPrefix(channel, "ticker."):
		if err := r.market.UpdateTicker(notification); err != nil {
			r.log.Error("ticker update dropped",
				zap.String("channel", channel), zap.Error(err))
		}
	case strings.HasPrefix(channel, "price_index."):
		r.handleIndex(channel, notification)
	case channel == "session.orders":
		r.handleOrders(notification)
	case channel == "account.portfolio":
		if err := r.orders.ApplyPortfolio(notification); err != nil {
			r.log.Error("portfolio update dropped", zap.Error(err))
		}
	case channel == "account.trade_history":
		if err := r.orders.HandleTrades(notification); err != nil {
			r.log.Error("trade history dropped", zap.Error(err))
		}
	default:
		r.log.Error("notification from unknown channel", zap.String("channel", channel))
	}
}

func (r *Router) handleIndex(channel string, notification json.RawMessage) {
	var payload struct {
		Price *float64 `json:"price"`
	}
	if err := json.Unmarshal(notification, &payload); err != nil || payload.Price == nil {
		r.log.Error("index update dropped",
			zap.String("channel", channel), zap.Error(err))
		return
	}
	r.market.UpdateIndex(*payload.Price)
}

// handleOrders 处理 session.orders 的批量回执：先外发事件流，
// 再刷新本地订单槽。单个元素解析失败不影响同批其余元素。
func (r *Router) handleOrders(notification json.RawMessage) {
	var elems []json.RawMessage
	if err := json.Unmarshal(notification, &elems); err != nil {
		r.log.Error("order notification is not an array", zap.Error(err))
		return
	}
	for _, elem := range elems {
		if r.sink != nil {
			if ack, err := events.ParseAck(elem); err != nil {
				r.log.Error("ack dropped", zap.Error(err))
			} else {
				r.sink.PublishAck(ack)
			}
			fills, err := events.ExtractFills(elem)
			if err != nil {
				r.log.Error("fill extraction failed", zap.Error(err))
			}
			for _, fill := range fills {
				r.sink.PublishTrade(fill)
				metrics.FillsExtracted.Inc()
			}
		}
		if err := r.orders.ApplyOrderNotification(elem); err != nil {
			r.log.Error("order update dropped", zap.Error(err))
		}
	}
}

// HandleResult 处理带编号的请求应答。控制面编号逐个列举，
// 交易请求编号（>= order.FirstOrderID）量大，只记 debug。
func (r *Router) HandleResult(id uint64, result json.RawMessage) {
	switch {
	case id >= order.FirstOrderID:
		r.log.Debug("trade request acknowledged", zap.Uint64("id", id))
	case id == gateway.CallIDLogin:
		r.log.Info("login acknowledged")
	case id == gateway.CallIDSubscribe:
		r.log.Info("subscription acknowledged")
	case id == gateway.CallIDSetCOD:
		r.log.Info("cancel-on-disconnect armed")
	case id == gateway.CallIDCancelSession:
		r.log.Info("session orders cancelled")
	case id == gateway.CallIDInstruments, id == gateway.CallIDInstrument:
		r.log.Debug("instrument data received", zap.Int("bytes", len(result)))
	default:
		r.log.Info("result for unexpected call", zap.Uint64("id", id))
	}
}

// HandleError 交易所返回的错误应答。会话不因单条错误终止。
func (r *Router) HandleError(id uint64, errPayload json.RawMessage) {
	r.log.Error("exchange error response",
		zap.Uint64("id", id), zap.ByteString("error", errPayload))
}
