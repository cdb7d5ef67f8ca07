package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/infrastructure/logger"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/metrics"
)

// 报价前置条件未就绪时返回的哨兵错误，启动阶段属于正常情况。
var (
	ErrNoInstrument = errors.New("instrument not resolved")
	ErrNoTick       = errors.New("tick size not initialized")
	ErrNoIndex      = errors.New("index price not initialized")
)

// TickerSink 行情事件出口，由 events 包的 sink 实现。
// 转发是 fire-and-forget：失败由 sink 自己记录，绝不回传给行情路径。
type TickerSink interface {
	PublishTicker(Ticker)
}

// Snapshot 报价计算读取的一致性快照。
type Snapshot struct {
	Ticker         Ticker
	IndexPrice     float64
	TickSize       float64
	InstrumentName string
}

// State 持有最新的 ticker/指数/合约元数据。读写锁允许多读单写；
// 每次行情更新都会向 quote 信号槽发一次唤醒，多次信号在消费前合并为一次。
type State struct {
	mu         sync.RWMutex
	ticker     *Ticker
	indexPrice *float64
	tick       *float64
	name       string
	underlying string

	notify chan struct{}
	sink   TickerSink
	log    *logger.Logger
}

// NewState 创建行情状态。sink 可以为 nil，表示不向外转发。
func NewState(underlying string, sink TickerSink, log *logger.Logger) *State {
	return &State{
		underlying: underlying,
		notify:     make(chan struct{}, 1),
		sink:       sink,
		log:        log,
	}
}

// SetInstrument 登记合约名与 tick size，启动时解析一次，可重复调用。
func (s *State) SetInstrument(name string, tickSize float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.tick = &tickSize
}

// QuoteSignal 返回报价重算的唤醒通道。
func (s *State) QuoteSignal() <-chan struct{} {
	return s.notify
}

// UpdateTicker 解析并存储一条 ticker 推送，触发报价重算，
// 并把副本异步转发给 sink。
func (s *State) UpdateTicker(raw json.RawMessage) error {
	s.mu.RLock()
	name := s.name
	s.mu.RUnlock()
	if name == "" {
		return ErrNoInstrument
	}

	t, err := ParseTicker(raw, name)
	if err != nil {
		return err
	}

	if s.sink != nil {
		s.sink.PublishTicker(t)
	}

	s.mu.Lock()
	s.ticker = &t
	idx := t.IndexPrice
	s.indexPrice = &idx
	s.mu.Unlock()

	metrics.TickerUpdates.Inc()
	metrics.IndexPrice.Set(t.IndexPrice)
	s.signalQuote()
	return nil
}

// UpdateIndex 直接更新指数价；若已持有 ticker，同步修补其 index 字段
// 以保持两个视图一致。
func (s *State) UpdateIndex(price float64) {
	s.mu.Lock()
	s.indexPrice = &price
	if s.ticker != nil {
		s.ticker.IndexPrice = price
	}
	s.mu.Unlock()

	metrics.IndexPrice.Set(price)
	s.signalQuote()
}

// signalQuote 单槽唤醒，非队列：未被消费前的多次信号合并为一次。
func (s *State) signalQuote() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// RoundToTick 四舍五入到最近的 tick 整数倍，恰好居中时远离零取整。
func (s *State) RoundToTick(value float64) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tick == nil {
		return 0, ErrNoTick
	}
	return RoundTick(value, *s.tick), nil
}

// RoundTick 纯函数形式的 tick 取整。math.Round 本身就是 half away from zero。
func RoundTick(value, tick float64) float64 {
	return tick * math.Round(value/tick)
}

// PublicChannels 由合约名和标的推导公共订阅主题。
func (s *State) PublicChannels() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.name == "" {
		return nil, ErrNoInstrument
	}
	return []string{
		fmt.Sprintf("ticker.%s.raw", s.name),
		fmt.Sprintf("price_index.%s", s.underlying),
	}, nil
}

// Ready 报告报价所需的行情是否齐备。
func (s *State) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticker != nil && s.indexPrice != nil
}

// Snapshot 在一次持锁中读出报价计算所需的全部字段。
func (s *State) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.name == "" {
		return Snapshot{}, ErrNoInstrument
	}
	if s.tick == nil {
		return Snapshot{}, ErrNoTick
	}
	if s.indexPrice == nil {
		return Snapshot{}, ErrNoIndex
	}
	snap := Snapshot{
		IndexPrice:     *s.indexPrice,
		TickSize:       *s.tick,
		InstrumentName: s.name,
	}
	if s.ticker != nil {
		snap.Ticker = *s.ticker
	}
	return snap, nil
}

// InstrumentName 返回已解析的合约名，未解析时返回错误。
func (s *State) InstrumentName() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.name == "" {
		return "", ErrNoInstrument
	}
	return s.name, nil
}
