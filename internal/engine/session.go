package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/gateway"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/infrastructure/logger"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/market"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/metrics"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/order"
)

// State 会话生命周期阶段。只允许沿固定顺序推进，
// 任何阶段出错都直接进入 ShuttingDown。
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingInstrument
	StateSubscribed
	StateRunning
	StateShuttingDown
)

var stateNames = map[State]string{
	StateDisconnected:       "disconnected",
	StateConnecting:         "connecting",
	StateAwaitingInstrument: "awaiting_instrument",
	StateSubscribed:         "subscribed",
	StateRunning:            "running",
	StateShuttingDown:       "shutting_down",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config 会话参数。零值字段取默认。
type Config struct {
	Account     string
	ProductType string // 如 perpetual
	Underlying  string // 如 BTCUSD

	PingInterval  time.Duration // 默认 5s
	CODTimeout    time.Duration // 默认 6s
	QuoteThrottle time.Duration // 默认 100ms

	// CleanupTimeout 关停清理的总预算，默认 10s。
	CleanupTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 5 * time.Second
	}
	if c.CODTimeout <= 0 {
		c.CODTimeout = 6 * time.Second
	}
	if c.QuoteThrottle <= 0 {
		c.QuoteThrottle = 100 * time.Millisecond
	}
	if c.CleanupTimeout <= 0 {
		c.CleanupTimeout = 10 * time.Second
	}
}

// privateChannels 会话级订阅：订单回执、持仓、成交历史。
var privateChannels = []string{"session.orders", "account.portfolio", "account.trade_history"}

// Session 驱动一条连接上的完整做市循环：
// 建连 → 登录 → 解析合约 → 武装断线撤单 → 订阅 →
// listen/quote/ping 三任务并行 → 有界清理。
type Session struct {
	cfg    Config
	client *gateway.Client
	market *market.State
	orders *order.Manager
	router *Router
	log    *logger.Logger

	state atomic.Int32
}

func NewSession(cfg Config, client *gateway.Client, mkt *market.State,
	orders *order.Manager, router *Router, log *logger.Logger) *Session {
	cfg.applyDefaults()
	return &Session{
		cfg:    cfg,
		client: client,
		market: mkt,
		orders: orders,
		router: router,
		log:    log,
	}
}

// State 当前阶段，跨协程可读。
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	metrics.SessionState.Set(float64(st))
	s.log.Info("session state", zap.String("state", st.String()))
}

// Run 跑完一个会话生命周期。ctx 取消视为正常关停返回 nil，
// 其余返回值是致命 I/O 错误，由上层监督循环重连。
// 无论如何退出，清理流程都会在有界时限内执行。
func (s *Session) Run(ctx context.Context, token string) error {
	err := s.run(ctx, token)
	s.setState(StateShuttingDown)
	s.cleanup()
	s.setState(StateDisconnected)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Session) run(ctx context.Context, token string) error {
	s.setState(StateConnecting)
	if err := s.client.Connect(ctx); err != nil {
		return err
	}
	// 建连与登录后各有一条同步应答，先读掉再进入请求/订阅序列。
	if _, err := s.client.Receive(); err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	if err := s.client.Login(token, s.cfg.Account, gateway.CallIDLogin); err != nil {
		return err
	}
	if _, err := s.client.Receive(); err != nil {
		return fmt.Errorf("login response: %w", err)
	}

	s.setState(StateAwaitingInstrument)
	if err := s.awaitInstrument(); err != nil {
		return err
	}

	if err := s.client.SetCancelOnDisconnect(s.cfg.CODTimeout, gateway.CallIDSetCOD); err != nil {
		return err
	}
	if err := s.client.PrivateSubscribe(privateChannels, gateway.CallIDSubscribe); err != nil {
		return err
	}
	public, err := s.market.PublicChannels()
	if err != nil {
		return err
	}
	if err := s.client.PublicSubscribe(public, gateway.CallIDSubscribe); err != nil {
		return err
	}
	s.setState(StateSubscribed)

	s.setState(StateRunning)
	g, gctx := errgroup.WithContext(ctx)
	watchDone := make(chan struct{})
	go func() {
		// 任一任务退出或 ctx 取消后解除 listen 的阻塞读。
		select {
		case <-gctx.Done():
			_ = s.client.AbortRead()
		case <-watchDone:
		}
	}()
	g.Go(func() error { return s.listen(gctx) })
	g.Go(func() error { return s.quote(gctx) })
	g.Go(func() error { return s.ping(gctx) })
	err = g.Wait()
	close(watchDone)
	return err
}

// awaitInstrument 请求合约列表并选出目标合约。
// 合约缺失属配置级错误，交给上层退避重试。
func (s *Session) awaitInstrument() error {
	if err := s.client.Instruments(gateway.CallIDInstruments); err != nil {
		return err
	}
	for {
		raw, err := s.client.Receive()
		if err != nil {
			return fmt.Errorf("instrument list: %w", err)
		}
		if raw == nil {
			continue
		}
		var msg gateway.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Error("malformed message while awaiting instruments", zap.Error(err))
			continue
		}
		if msg.ID == nil || *msg.ID != gateway.CallIDInstruments || msg.Result == nil {
			continue
		}
		var instruments []gateway.Instrument
		if err := json.Unmarshal(msg.Result, &instruments); err != nil {
			return fmt.Errorf("parse instruments: %w", err)
		}
		for _, in := range instruments {
			if in.Type == s.cfg.ProductType && in.Underlying == s.cfg.Underlying {
				s.log.Info("instrument resolved",
					zap.String("instrument", in.InstrumentName),
					zap.Float64("tickSize", in.TickSize))
				s.market.SetInstrument(in.InstrumentName, in.TickSize)
				return nil
			}
		}
		return fmt.Errorf("no %s instrument for %s", s.cfg.ProductType, s.cfg.Underlying)
	}
}

// listen 唯一的 socket 读取协程，逐条解包分发。
func (s *Session) listen(ctx context.Context) error {
	for {
		raw, err := s.client.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if raw == nil {
			continue
		}
		var msg gateway.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Error("malformed message", zap.Error(err))
			continue
		}
		switch {
		case msg.ChannelName != "" && msg.Notification != nil:
			s.router.HandleNotification(msg.ChannelName, msg.Notification)
		case msg.ID != nil && msg.Error != nil:
			s.router.HandleError(*msg.ID, msg.Error)
		case msg.ID != nil && msg.Result != nil:
			s.router.HandleResult(*msg.ID, msg.Result)
		default:
			s.log.Debug("unhandled message", zap.ByteString("raw", raw))
		}
	}
}

// quote 等待行情唤醒信号，限流后重算并下发报价阶梯。
// 行情未齐时跳过本轮；下发失败是 I/O 级故障，拆掉整个会话。
func (s *Session) quote(ctx context.Context) error {
	var lastQuote time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.market.QuoteSignal():
		}
		if !s.market.Ready() {
			continue
		}
		if time.Since(lastQuote) < s.cfg.QuoteThrottle {
			continue
		}
		ladder, err := s.orders.MakeQuotes()
		if err != nil {
			s.log.Error("quote round skipped", zap.Error(err))
			continue
		}
		if err := s.orders.AdjustQuotes(ctx, ladder); err != nil {
			return fmt.Errorf("adjust quotes: %w", err)
		}
		lastQuote = time.Now()
	}
}

// ping 周期性心跳，探测死连接。
func (s *Session) ping(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.client.Ping(); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// cleanup 关停清理：先撤掉会话全部挂单，再断开连接。
// 每一步都可能卡在坏连接上，整体用 CleanupTimeout 兜底，
// 绝不阻塞进程退出。
func (s *Session) cleanup() {
	deadline := time.After(s.cfg.CleanupTimeout)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if !s.client.Connected() {
			s.log.Info("already disconnected, nothing to clean up")
			return
		}
		if err := s.client.CancelSession(gateway.CallIDCancelSession); err != nil {
			s.log.Error("cancel session failed", zap.Error(err))
		} else {
			s.log.Info("session orders cancelled")
		}
		if err := s.client.Disconnect(); err != nil {
			s.log.Error("disconnect failed", zap.Error(err))
		}
	}()
	select {
	case <-done:
		s.log.Info("cleanup completed")
	case <-deadline:
		s.log.Error("cleanup timed out",
			zap.Duration("budget", s.cfg.CleanupTimeout))
	}
}
