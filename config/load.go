package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env        string           `yaml:"env"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Instrument InstrumentConfig `yaml:"instrument"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Sink       SinkConfig       `yaml:"sink"`
	Logger     logger.Config    `yaml:"logger"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type ExchangeConfig struct {
	Network         string `yaml:"network"` // test 或 prod
	Account         string `yaml:"account"`
	KeyID           string `yaml:"keyID"`
	PrivateKey      string `yaml:"privateKey"` // PEM，换行可写成 \n
	PingIntervalSec int    `yaml:"pingIntervalSec"`
	CodTimeoutSec   int    `yaml:"codTimeoutSec"`
	CleanupSec      int    `yaml:"cleanupSec"`
}

// InstrumentConfig 目标合约筛选条件，开机时对照交易所元数据解析。
type InstrumentConfig struct {
	ProductType string `yaml:"productType"` // 如 perpetual
	Underlying  string `yaml:"underlying"`  // 如 BTCUSD
}

type StrategyConfig struct {
	Label               string    `yaml:"label"`               // 本策略成交的标签
	SpreadTicks         float64   `yaml:"spreadTicks"`         // 首档距指数的 tick 数
	BidStepTicks        float64   `yaml:"bidStepTicks"`        // 买侧相邻档间距
	AskStepTicks        float64   `yaml:"askStepTicks"`        // 卖侧相邻档间距
	BidSizes            []float64 `yaml:"bidSizes"`            // 每档买量，长度即档数
	AskSizes            []float64 `yaml:"askSizes"`            // 每档卖量
	AmendThresholdTicks float64   `yaml:"amendThresholdTicks"` // 低于该偏移不改单
	QuoteThrottleMs     int       `yaml:"quoteThrottleMs"`     // 两轮报价的最小间隔
}

type SinkConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	AckExchange    string `yaml:"ackExchange"`
	TradeExchange  string `yaml:"tradeExchange"`
	TickerExchange string `yaml:"tickerExchange"`
	QueueSize      int    `yaml:"queueSize"`
	Policy         string `yaml:"policy"` // drop_oldest 或 block
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PingInterval 心跳周期，未配置取 5s。
func (c ExchangeConfig) PingInterval() time.Duration {
	if c.PingIntervalSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PingIntervalSec) * time.Second
}

// CodTimeout 断线自动撤单时限，未配置取 6s。
func (c ExchangeConfig) CodTimeout() time.Duration {
	if c.CodTimeoutSec <= 0 {
		return 6 * time.Second
	}
	return time.Duration(c.CodTimeoutSec) * time.Second
}

// CleanupTimeout 关停清理总预算，未配置取 10s。
func (c ExchangeConfig) CleanupTimeout() time.Duration {
	if c.CleanupSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.CleanupSec) * time.Second
}

// QuoteThrottle 报价限流间隔，未配置取 100ms。
func (c StrategyConfig) QuoteThrottle() time.Duration {
	if c.QuoteThrottleMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.QuoteThrottleMs) * time.Millisecond
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("MM_EXCHANGE_KEY_ID"); v != "" {
		cfg.Exchange.KeyID = v
	}
	if v := os.Getenv("MM_EXCHANGE_PRIVATE_KEY"); v != "" {
		cfg.Exchange.PrivateKey = v
	}
	if v := os.Getenv("MM_SINK_URL"); v != "" {
		cfg.Sink.URL = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Exchange.Network != "test" && cfg.Exchange.Network != "prod" {
		return fmt.Errorf("exchange.network must be test or prod, got %q", cfg.Exchange.Network)
	}
	if cfg.Instrument.ProductType == "" || cfg.Instrument.Underlying == "" {
		return errors.New("instrument.productType/underlying is required")
	}
	if err := validateStrategy(cfg.Strategy); err != nil {
		return err
	}
	if cfg.Sink.Enabled {
		if cfg.Sink.URL == "" {
			return errors.New("sink.url is required when sink is enabled (or env override)")
		}
		if cfg.Sink.AckExchange == "" || cfg.Sink.TradeExchange == "" || cfg.Sink.TickerExchange == "" {
			return errors.New("sink exchanges are required when sink is enabled")
		}
		switch cfg.Sink.Policy {
		case "", "drop_oldest", "block":
		default:
			return fmt.Errorf("sink.policy must be drop_oldest or block, got %q", cfg.Sink.Policy)
		}
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics is enabled")
	}
	return nil
}

func validateStrategy(s StrategyConfig) error {
	if s.SpreadTicks <= 0 {
		return errors.New("strategy.spreadTicks must be > 0")
	}
	if s.BidStepTicks < 0 || s.AskStepTicks < 0 {
		return errors.New("strategy step ticks must be >= 0")
	}
	if len(s.BidSizes) == 0 && len(s.AskSizes) == 0 {
		return errors.New("strategy needs at least one quote level")
	}
	for _, v := range s.BidSizes {
		if v <= 0 {
			return errors.New("strategy.bidSizes must all be > 0")
		}
	}
	for _, v := range s.AskSizes {
		if v <= 0 {
			return errors.New("strategy.askSizes must all be > 0")
		}
	}
	if s.AmendThresholdTicks < 0 {
		return errors.New("strategy.amendThresholdTicks must be >= 0")
	}
	return nil
}
