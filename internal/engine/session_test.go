package engine

import (
	"testing"
	"time"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/gateway"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/infrastructure/logger"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/market"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/order"
)

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateDisconnected:       "disconnected",
		StateConnecting:         "connecting",
		StateAwaitingInstrument: "awaiting_instrument",
		StateSubscribed:         "subscribed",
		StateRunning:            "running",
		StateShuttingDown:       "shutting_down",
	}
	for st, want := range cases {
		if st.String() != want {
			t.Fatalf("%d: got %q, want %q", st, st.String(), want)
		}
	}
	if State(42).String() != "state(42)" {
		t.Fatalf("unknown state: %q", State(42).String())
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	if cfg.PingInterval != 5*time.Second {
		t.Fatalf("ping interval: %v", cfg.PingInterval)
	}
	if cfg.CODTimeout != 6*time.Second {
		t.Fatalf("cod timeout: %v", cfg.CODTimeout)
	}
	if cfg.QuoteThrottle != 100*time.Millisecond {
		t.Fatalf("quote throttle: %v", cfg.QuoteThrottle)
	}
	if cfg.CleanupTimeout != 10*time.Second {
		t.Fatalf("cleanup timeout: %v", cfg.CleanupTimeout)
	}
	explicit := Config{PingInterval: time.Second}
	explicit.applyDefaults()
	if explicit.PingInterval != time.Second {
		t.Fatalf("explicit value clobbered: %v", explicit.PingInterval)
	}
}

// 未连接时清理必须立即完成，不能吃满整个预算。
func TestCleanupWhenDisconnected(t *testing.T) {
	lg := logger.Nop()
	client := gateway.NewClient(gateway.NetworkTest, lg)
	mkt := market.NewState("BTCUSD", nil, lg)
	mgr := order.NewManager(nopExchange{}, mkt, order.QuoteConfig{
		SpreadTicks: 25, BidSizes: []float64{0.2}, AskSizes: []float64{0.2},
	}, lg)
	sess := NewSession(Config{Underlying: "BTCUSD", ProductType: "perpetual"},
		client, mkt, mgr, NewRouter(mkt, mgr, nil, lg), lg)

	start := time.Now()
	sess.cleanup()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cleanup took %v on a disconnected client", elapsed)
	}
}
