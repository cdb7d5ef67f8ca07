package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/infrastructure/logger"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/market"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/metrics"
)

// RabbitConfig 事件出口配置。每个流对应一个 fanout exchange。
type RabbitConfig struct {
	URL            string `yaml:"url"`
	AckExchange    string `yaml:"ackExchange"`
	TradeExchange  string `yaml:"tradeExchange"`
	TickerExchange string `yaml:"tickerExchange"`
	QueueSize      int    `yaml:"queueSize"`
	Policy         Policy `yaml:"policy"`
}

// Validate 检查出口配置可用。
func (c RabbitConfig) Validate() error {
	if c.URL == "" {
		return errors.New("sink url is required")
	}
	for _, name := range []string{c.AckExchange, c.TradeExchange, c.TickerExchange} {
		if name == "" {
			return errors.New("sink exchange name cannot be empty")
		}
	}
	switch c.Policy {
	case "", PolicyDropOldest, PolicyBlock:
	default:
		return fmt.Errorf("unknown sink policy %q", c.Policy)
	}
	return nil
}

// RabbitSink 把确认/成交/行情事件作为 JSON 发布到 RabbitMQ fanout exchange。
// 发布通过有界队列异步进行；队列策略由配置决定。枚举的数值编码
// 附在 AMQP header 上，消息体保持字符串形式。
type RabbitSink struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	chMu      sync.Mutex
	q         *queue
	exchanges map[string]string
	log       *logger.Logger
	done      chan struct{}
}

// NewRabbitSink 建立连接、声明 exchange 并启动发布协程。
func NewRabbitSink(cfg RabbitConfig, log *logger.Logger) (*RabbitSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create channel: %w", err)
	}

	declared := map[string]struct{}{}
	for _, name := range []string{cfg.AckExchange, cfg.TradeExchange, cfg.TickerExchange} {
		if _, ok := declared[name]; ok {
			continue
		}
		if err := ch.ExchangeDeclare(name, "fanout", true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", name, err)
		}
		declared[name] = struct{}{}
	}

	s := &RabbitSink{
		conn:    conn,
		channel: ch,
		exchanges: map[string]string{
			"ack":    cfg.AckExchange,
			"trade":  cfg.TradeExchange,
			"ticker": cfg.TickerExchange,
		},
		log:  log,
		done: make(chan struct{}),
	}
	s.q = newQueue(cfg.QueueSize, cfg.Policy, func(stream string) {
		metrics.SinkDropped.WithLabelValues(stream).Inc()
		log.Warn("sink queue full, event dropped")
	})

	go s.run()
	return s, nil
}

// PublishAck 异步发布一条订单确认。
func (s *RabbitSink) PublishAck(a Ack) {
	s.q.put(envelope{
		stream:  "ack",
		payload: a,
		headers: amqp.Table{
			"direction_code": int32(a.Direction.Code()),
			"status_code":    int32(a.Status.Code()),
			"order_type":     int32(a.OrderType.Code()),
			"time_in_force":  int32(a.TimeInForce.Code()),
		},
	})
}

// PublishTrade 异步发布一笔成交。
func (s *RabbitSink) PublishTrade(t Trade) {
	s.q.put(envelope{stream: "trade", payload: t})
}

// PublishTicker 异步发布一条行情。
func (s *RabbitSink) PublishTicker(t market.Ticker) {
	s.q.put(envelope{stream: "ticker", payload: t})
}

var _ Sink = (*RabbitSink)(nil)

func (s *RabbitSink) run() {
	defer close(s.done)
	for e := range s.q.out() {
		if err := s.publish(e); err != nil {
			s.log.LogError(err, map[string]interface{}{"stream": e.stream})
			continue
		}
		metrics.SinkPublished.WithLabelValues(e.stream).Inc()
	}
}

func (s *RabbitSink) publish(e envelope) error {
	body, err := json.Marshal(e.payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", e.stream, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.chMu.Lock()
	defer s.chMu.Unlock()
	return s.channel.PublishWithContext(ctx, s.exchanges[e.stream], "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      e.headers,
		Body:         body,
	})
}

// Close 停止接收新事件，尽量冲掉积压，然后释放连接。
// ctx 超时后放弃等待，不允许关闭流程无限阻塞。
func (s *RabbitSink) Close(ctx context.Context) error {
	s.q.close()
	select {
	case <-s.done:
	case <-ctx.Done():
		s.log.Warn("sink close timed out, pending events abandoned")
	}

	var errs []error
	if err := s.channel.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
