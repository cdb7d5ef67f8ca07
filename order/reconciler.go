package order

import (
	"context"
	"fmt"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/metrics"
)

// AdjustQuotes 把交易所侧订单集合对账到目标梯子，逐侧按档位顺序发出
// 最小的 insert/amend/cancel 指令序列。整侧的读-改-发都在写锁内完成；
// 指令失败立即返回，已发出的指令保持有效（无回滚），本周期放弃，
// 下次唤醒重试。
//
// insert 只在槽位缺失或已进入终态时发出。Unset 槽位表示 insert 已发、
// 确认未到，本周期跳过该档位，等确认回写后再继续调整；同一槽位在前一条
// 指令确认前不会再发第二条指令。
func (m *Manager) AdjustQuotes(ctx context.Context, desired Ladder) error {
	snap, err := m.market.Snapshot()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	threshold := m.cfg.AmendThresholdTicks * snap.TickSize

	for _, side := range [2]Side{Buy, Sell} {
		quotes := desired.Side(side)
		slots := m.sides[side]

		// 梯子收缩：多出的已挂档位撤掉，槽位保留在内存里，
		// 下次成功 insert 时原位覆盖。
		for i := len(quotes); i < len(slots); i++ {
			if !slots[i].IsOpen() {
				continue
			}
			m.log.LogOrder("cancel", slots[i].ID, map[string]interface{}{
				"side":  side.String(),
				"level": i,
			})
			if err := m.exch.Cancel(ctx, slots[i].ID, slots[i].ID); err != nil {
				return fmt.Errorf("cancel %s level %d id %d: %w", side, i, slots[i].ID, err)
			}
			metrics.OrdersCancelled.WithLabelValues(side.String()).Inc()
		}

		for lvl, q := range quotes {
			needsNew := lvl >= len(m.sides[side]) ||
				(m.sides[side][lvl].Status != StatusUnset && !m.sides[side][lvl].IsOpen())

			if needsNew {
				id := m.nextID
				m.nextID++

				slot := NewOrder(id, q.Price, q.Amount)
				if lvl >= len(m.sides[side]) {
					m.sides[side] = append(m.sides[side], slot)
				} else {
					m.sides[side][lvl] = slot
				}

				m.log.LogOrder("insert", id, map[string]interface{}{
					"side":   side.String(),
					"level":  lvl,
					"price":  q.Price,
					"amount": q.Amount,
				})
				req := InsertRequest{
					Instrument:    snap.InstrumentName,
					Side:          side,
					Type:          Limit,
					Price:         q.Price,
					Amount:        q.Amount,
					ClientOrderID: id,
					TimeInForce:   GTC,
				}
				if err := m.exch.Insert(ctx, req, id); err != nil {
					return fmt.Errorf("insert %s level %d id %d: %w", side, lvl, id, err)
				}
				metrics.OrdersInserted.WithLabelValues(side.String()).Inc()
				continue
			}

			slot := m.sides[side][lvl]
			if slot.Status == StatusUnset {
				// insert 在途，确认未到，先不动这一档。
				continue
			}

			// 已挂单：价格偏移超过阈值才 amend。本地价格保持不变，
			// 由确认回写更新（ack-driven，不做乐观更新）。
			if diff := slot.Price - q.Price; diff > threshold || diff < -threshold {
				m.log.LogOrder("amend", slot.ID, map[string]interface{}{
					"side":      side.String(),
					"level":     lvl,
					"old_price": slot.Price,
					"new_price": q.Price,
				})
				if err := m.exch.Amend(ctx, q.Price, q.Amount, slot.ID, slot.ID); err != nil {
					return fmt.Errorf("amend %s level %d id %d: %w", side, lvl, slot.ID, err)
				}
				metrics.OrdersAmended.WithLabelValues(side.String()).Inc()
			}
		}
	}
	return nil
}
