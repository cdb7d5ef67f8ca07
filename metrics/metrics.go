// Package metrics provides Prometheus metrics for the quoting engine
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersInserted 按方向统计发出的 insert 指令
	OrdersInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_inserted_total",
		Help: "Insert commands issued, by side",
	}, []string{"side"})

	// OrdersAmended 按方向统计发出的 amend 指令
	OrdersAmended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_amended_total",
		Help: "Amend commands issued, by side",
	}, []string{"side"})

	// OrdersCancelled 按方向统计发出的 cancel 指令
	OrdersCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_cancelled_total",
		Help: "Cancel commands issued, by side",
	}, []string{"side"})

	// TickerUpdates ticker 推送解析成功次数
	TickerUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_ticker_updates_total",
		Help: "Ticker notifications applied",
	})

	// UnknownOrderUpdates 未命中任何本地槽位的订单通知
	UnknownOrderUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_unknown_order_updates_total",
		Help: "Order notifications referencing ids not tracked locally",
	})

	// FillsExtracted 从订单通知中提取出的成交事件
	FillsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_fills_extracted_total",
		Help: "Fill events extracted from order notifications",
	})

	// SinkPublished 成功写入事件出口的消息数，按流分类
	SinkPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_sink_published_total",
		Help: "Events published to the event sink, by stream",
	}, []string{"stream"})

	// SinkDropped 因队列满被丢弃的事件数
	SinkDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_sink_dropped_total",
		Help: "Events dropped by the sink queue, by stream",
	}, []string{"stream"})

	// Reconnects 会话重连次数
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_session_reconnects_total",
		Help: "Exchange session reconnect attempts",
	})

	// IndexPrice 最近一次指数价
	IndexPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_index_price",
		Help: "Latest index price",
	})

	// SessionState 会话状态机当前状态编号
	SessionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_session_state",
		Help: "Current quoting session state",
	})
)

// StartMetricsServer 启动Prometheus指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
