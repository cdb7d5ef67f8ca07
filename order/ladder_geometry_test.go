package order_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/market"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/order"
)

// TestLadderGeometry 验证梯子在指数价漂移下保持形状不变：
// 档距、双侧对称性、tick 对齐都不随中轴移动而变化。
func TestLadderGeometry(t *testing.T) {
	cfg := order.QuoteConfig{
		SpreadTicks:         25,
		BidStepTicks:        5,
		AskStepTicks:        5,
		BidSizes:            []float64{0.2, 0.4, 0.8},
		AskSizes:            []float64{0.2, 0.4, 0.8},
		AmendThresholdTicks: 5,
		Label:               "P",
	}
	require.NoError(t, cfg.Validate())

	tick := 0.5
	for _, index := range []float64{18000.3, 50000.0, 50000.25, 97531.9} {
		snap := market.Snapshot{IndexPrice: index, TickSize: tick, InstrumentName: "BTC-PERPETUAL"}
		l := order.ComputeLadder(snap, cfg)
		require.Len(t, l.Bids, 3)
		require.Len(t, l.Asks, 3)

		for i := range l.Bids {
			// 每个价位都落在 tick 网格上
			assert.InDelta(t, 0, math.Mod(l.Bids[i].Price, tick), 1e-9, "bid %d off grid at index %v", i, index)
			assert.InDelta(t, 0, math.Mod(l.Asks[i].Price, tick), 1e-9, "ask %d off grid at index %v", i, index)
		}
		for i := 1; i < len(l.Bids); i++ {
			gap := l.Bids[i-1].Price - l.Bids[i].Price
			assert.InDelta(t, cfg.BidStepTicks*tick, gap, tick, "bid step at index %v", index)
		}

		// 双侧距中轴对称（取整误差不超过一个 tick）
		bidDist := index - l.Bids[0].Price
		askDist := l.Asks[0].Price - index
		assert.InDelta(t, bidDist, askDist, tick, "asymmetric ladder at index %v", index)
		assert.Greater(t, l.Asks[0].Price, l.Bids[0].Price)
	}
}
