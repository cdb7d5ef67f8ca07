package order

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/infrastructure/logger"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/market"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/metrics"
)

// Exchange 下单通道抽象，由 gateway.Client 实现。每个改动类调用都带
// 本地分配的关联 id，用于匹配之后的确认/错误。
type Exchange interface {
	Insert(ctx context.Context, req InsertRequest, id uint64) error
	Amend(ctx context.Context, price, amount float64, clientOrderID, id uint64) error
	Cancel(ctx context.Context, clientOrderID, id uint64) error
}

// InsertRequest 发送侧的下单意图，与本地跟踪的 Order 分开。
type InsertRequest struct {
	Instrument    string
	Side          Side
	Type          Type
	Price         float64
	Amount        float64
	ClientOrderID uint64
	TimeInForce   TimeInForce
}

// FirstOrderID 订单关联 id 从此值起，与控制面 call id（0..5）分属不相交区间。
const FirstOrderID uint64 = 100

// Manager 持有两侧订单槽位的权威本地视图并负责与目标梯子对账。
// 整个结构是一个临界区：对账会同时触碰两侧（最小价差等不变量）。
type Manager struct {
	exch   Exchange
	market *market.State
	log    *logger.Logger

	mu        sync.RWMutex
	cfg       QuoteConfig
	sides     [2][]Order // [Buy, Sell]
	nextID    uint64
	portfolio map[string]float64
}

// NewManager 创建订单管理器。
func NewManager(exch Exchange, mkt *market.State, cfg QuoteConfig, log *logger.Logger) *Manager {
	return &Manager{
		exch:      exch,
		market:    mkt,
		log:       log,
		cfg:       cfg,
		nextID:    FirstOrderID,
		portfolio: make(map[string]float64),
	}
}

// SetQuoteConfig 热更新报价参数，下个周期生效。
func (m *Manager) SetQuoteConfig(cfg QuoteConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// ApplyOrderNotification 解析一条 session.orders 元素并按 id 回写槽位。
// 未找到对应槽位的通知丢弃并记录异常，绝不从未经请求的通知凭空建槽。
// 同一通知重复应用是幂等的（按到达顺序 last-write-wins）。
func (m *Manager) ApplyOrderNotification(raw json.RawMessage) error {
	o, err := FromNotification(raw)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for side := range m.sides {
		for i := range m.sides[side] {
			if m.sides[side][i].ID == o.ID {
				m.sides[side][i] = o
				return nil
			}
		}
	}

	metrics.UnknownOrderUpdates.Inc()
	m.log.Warn("order notification for unknown id, dropped")
	m.log.LogOrder("unknown_order", o.ID, map[string]interface{}{
		"status": o.Status.String(),
		"price":  o.Price,
	})
	return nil
}

// ApplyPortfolio 更新 instrument → 净仓位的平面映射，仅用于展示。
func (m *Manager) ApplyPortfolio(raw json.RawMessage) error {
	var positions []struct {
		InstrumentName *string  `json:"instrument_name"`
		Position       *float64 `json:"position"`
	}
	if err := json.Unmarshal(raw, &positions); err != nil {
		return fmt.Errorf("decode portfolio: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range positions {
		if p.InstrumentName == nil || p.Position == nil {
			continue
		}
		m.portfolio[*p.InstrumentName] = *p.Position
	}
	return nil
}

// Position 返回某合约的净仓位。
func (m *Manager) Position(instrument string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.portfolio[instrument]
	return v, ok
}

// HandleTrades 按策略标签过滤 account.trade_history，仅做观测记录。
func (m *Manager) HandleTrades(raw json.RawMessage) error {
	var trades []struct {
		Label     string  `json:"label"`
		Direction string  `json:"direction"`
		Amount    float64 `json:"amount"`
		Price     float64 `json:"price"`
	}
	if err := json.Unmarshal(raw, &trades); err != nil {
		return fmt.Errorf("decode trade history: %w", err)
	}

	m.mu.RLock()
	label := m.cfg.Label
	m.mu.RUnlock()

	for _, t := range trades {
		if t.Label != label {
			continue
		}
		m.log.LogTrade("trade_executed", map[string]interface{}{
			"direction": t.Direction,
			"amount":    t.Amount,
			"price":     t.Price,
		})
	}
	return nil
}

// Slots 返回某一侧槽位的拷贝，测试与监控用。
func (m *Manager) Slots(side Side) []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, len(m.sides[side]))
	copy(out, m.sides[side])
	return out
}
