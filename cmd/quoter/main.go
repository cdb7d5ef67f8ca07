package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/config"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/events"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/gateway"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/infrastructure/logger"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/internal/engine"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/market"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/metrics"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/order"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	// 会话存活超过该时长视为曾经健康，退避归零
	healthySession = time.Minute
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	lg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	if cfg.Metrics.Enabled {
		metrics.StartMetricsServer(cfg.Metrics.Addr)
		lg.Info("metrics server listening", zap.String("addr", cfg.Metrics.Addr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 事件外发可选：RabbitMQ 不可达时降级为纯做市，不拦截启动
	var sink *events.RabbitSink
	if cfg.Sink.Enabled {
		sink, err = events.NewRabbitSink(rabbitConfig(cfg.Sink), lg)
		if err != nil {
			lg.Error("event sink unavailable, continuing without it", zap.Error(err))
			sink = nil
		} else {
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := sink.Close(closeCtx); err != nil {
					lg.Error("sink close failed", zap.Error(err))
				}
			}()
		}
	}
	var eventSink events.Sink
	var tickerSink market.TickerSink
	if sink != nil {
		eventSink = sink
		tickerSink = sink
	}

	keys := gateway.Keys{KeyID: cfg.Exchange.KeyID, PrivateKey: cfg.Exchange.PrivateKey}
	if keys.KeyID == "" || keys.PrivateKey == "" {
		network := gateway.Network(cfg.Exchange.Network)
		keys, err = gateway.KeysFromEnv(network)
		if err != nil {
			lg.Error("no api credentials in config or environment", zap.Error(err))
			os.Exit(1)
		}
	}

	// 报价参数支持热更新：改文件即生效，无需重启或重连
	var mu sync.Mutex
	quoteCfg := quoteConfig(cfg.Strategy)
	var currentMgr *order.Manager
	watcher, err := config.NewWatcher(*cfgPath, config.DefaultWatchConfig(),
		func(next config.AppConfig) {
			nextQuote := quoteConfig(next.Strategy)
			mu.Lock()
			defer mu.Unlock()
			quoteCfg = nextQuote
			if currentMgr != nil {
				if err := currentMgr.SetQuoteConfig(nextQuote); err != nil {
					lg.Error("rejected hot-reloaded strategy", zap.Error(err))
					return
				}
			}
			lg.Info("strategy parameters reloaded")
		},
		func(err error) {
			lg.Error("config watch", zap.Error(err))
		})
	if err != nil {
		lg.Error("config watcher init failed", zap.Error(err))
	} else if err := watcher.Start(ctx); err != nil {
		lg.Error("config watcher start failed", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	network := gateway.Network(cfg.Exchange.Network)
	backoff := initialBackoff
	for ctx.Err() == nil {
		token, err := keys.MakeAuthToken()
		if err != nil {
			// 密钥坏了不会自愈
			lg.Error("mint auth token failed", zap.Error(err))
			os.Exit(1)
		}

		client := gateway.NewClient(network, lg)
		mkt := market.NewState(cfg.Instrument.Underlying, tickerSink, lg)
		mu.Lock()
		mgr := order.NewManager(client, mkt, quoteCfg, lg)
		currentMgr = mgr
		mu.Unlock()
		router := engine.NewRouter(mkt, mgr, eventSink, lg)
		sess := engine.NewSession(engine.Config{
			Account:        cfg.Exchange.Account,
			ProductType:    cfg.Instrument.ProductType,
			Underlying:     cfg.Instrument.Underlying,
			PingInterval:   cfg.Exchange.PingInterval(),
			CODTimeout:     cfg.Exchange.CodTimeout(),
			QuoteThrottle:  cfg.Strategy.QuoteThrottle(),
			CleanupTimeout: cfg.Exchange.CleanupTimeout(),
		}, client, mkt, mgr, router, lg)

		started := time.Now()
		if err := sess.Run(ctx, token); err != nil {
			lg.Error("session ended", zap.Error(err))
		}
		mu.Lock()
		currentMgr = nil
		mu.Unlock()
		if ctx.Err() != nil {
			break
		}

		if time.Since(started) >= healthySession {
			backoff = initialBackoff
		}
		metrics.Reconnects.Inc()
		lg.Info("reconnecting", zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	lg.Info("shutdown complete")
}

func quoteConfig(s config.StrategyConfig) order.QuoteConfig {
	return order.QuoteConfig{
		SpreadTicks:         s.SpreadTicks,
		BidStepTicks:        s.BidStepTicks,
		AskStepTicks:        s.AskStepTicks,
		BidSizes:            s.BidSizes,
		AskSizes:            s.AskSizes,
		AmendThresholdTicks: s.AmendThresholdTicks,
		Label:               s.Label,
	}
}

func rabbitConfig(s config.SinkConfig) events.RabbitConfig {
	return events.RabbitConfig{
		URL:            s.URL,
		AckExchange:    s.AckExchange,
		TradeExchange:  s.TradeExchange,
		TickerExchange: s.TickerExchange,
		QueueSize:      s.QueueSize,
		Policy:         events.Policy(s.Policy),
	}
}
