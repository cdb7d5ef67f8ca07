package order

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cryptics-lab/cryptics-lab-bot-v99/infrastructure/logger"
	"github.com/cryptics-lab/cryptics-lab-bot-v99/market"
)

type command struct {
	op     string // insert/amend/cancel
	id     uint64
	side   Side
	price  float64
	amount float64
}

// fakeExchange 记录指令序列，failAt >= 0 时第 failAt 条指令返回错误。
type fakeExchange struct {
	commands []command
	failAt   int
	err      error
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{failAt: -1}
}

func (f *fakeExchange) record(c command) error {
	if f.failAt >= 0 && len(f.commands) == f.failAt {
		return f.err
	}
	f.commands = append(f.commands, c)
	return nil
}

func (f *fakeExchange) Insert(_ context.Context, req InsertRequest, id uint64) error {
	return f.record(command{op: "insert", id: id, side: req.Side, price: req.Price, amount: req.Amount})
}

func (f *fakeExchange) Amend(_ context.Context, price, amount float64, clientOrderID, _ uint64) error {
	return f.record(command{op: "amend", id: clientOrderID, price: price, amount: amount})
}

func (f *fakeExchange) Cancel(_ context.Context, clientOrderID, _ uint64) error {
	return f.record(command{op: "cancel", id: clientOrderID})
}

func readyMarket(t *testing.T) *market.State {
	t.Helper()
	mkt := market.NewState("BTCUSD", nil, logger.Nop())
	mkt.SetInstrument("BTC-PERPETUAL", 0.5)
	mkt.UpdateIndex(50000)
	return mkt
}

// ackOpen 模拟交易所确认：按 id 回写 open 状态。
func ackOpen(t *testing.T, m *Manager, id uint64, price, amount float64) {
	t.Helper()
	raw := fmt.Sprintf(`{"client_order_id":%d,"price":%v,"remaining_amount":%v,"status":"open"}`,
		id, price, amount)
	if err := m.ApplyOrderNotification([]byte(raw)); err != nil {
		t.Fatalf("apply ack: %v", err)
	}
}

func TestAdjustQuotesEmptyBook(t *testing.T) {
	exch := newFakeExchange()
	m := NewManager(exch, readyMarket(t), testQuoteConfig(), logger.Nop())

	ladder, err := m.MakeQuotes()
	if err != nil {
		t.Fatalf("make quotes: %v", err)
	}
	if err := m.AdjustQuotes(context.Background(), ladder); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	if len(exch.commands) != 4 {
		t.Fatalf("expected 4 inserts, got %d: %+v", len(exch.commands), exch.commands)
	}
	for _, c := range exch.commands {
		if c.op != "insert" {
			t.Fatalf("expected only inserts, got %+v", c)
		}
		if c.id < FirstOrderID {
			t.Fatalf("order id %d below floor", c.id)
		}
	}
	if exch.commands[0].price != 49987.5 || exch.commands[2].price != 50012.5 {
		t.Fatalf("unexpected prices: %+v", exch.commands)
	}
}

// 确认未到时重复对账：Unset 槽位不补发 insert 也不 amend，
// 同一档位在前一条指令确认前不会出现第二条指令。
func TestAdjustQuotesWaitsForAck(t *testing.T) {
	exch := newFakeExchange()
	m := NewManager(exch, readyMarket(t), testQuoteConfig(), logger.Nop())

	ladder, _ := m.MakeQuotes()
	if err := m.AdjustQuotes(context.Background(), ladder); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	firstBid := m.Slots(Buy)[0].ID
	exch.commands = nil

	if err := m.AdjustQuotes(context.Background(), ladder); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if len(exch.commands) != 0 {
		t.Fatalf("unacked slots must not be re-issued, got %+v", exch.commands)
	}
	if got := m.Slots(Buy)[0].ID; got != firstBid {
		t.Fatalf("slot id must survive the cycle: was %d, now %d", firstBid, got)
	}
}

// 终态才重新 insert：cancelled 确认回写后该档位铸新 id 补单，其余档位不动。
func TestAdjustQuotesReinsertsTerminal(t *testing.T) {
	exch := newFakeExchange()
	m := NewManager(exch, readyMarket(t), testQuoteConfig(), logger.Nop())
	ladder := bootstrapLadder(t, m)
	oldID := m.Slots(Buy)[0].ID

	raw := fmt.Sprintf(`{"client_order_id":%d,"price":49987.5,"remaining_amount":0,"status":"cancelled"}`, oldID)
	if err := m.ApplyOrderNotification([]byte(raw)); err != nil {
		t.Fatalf("apply cancel ack: %v", err)
	}

	exch.commands = nil
	if err := m.AdjustQuotes(context.Background(), ladder); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if len(exch.commands) != 1 || exch.commands[0].op != "insert" {
		t.Fatalf("expected a single re-insert, got %+v", exch.commands)
	}
	if exch.commands[0].id == oldID {
		t.Fatalf("re-insert must mint a fresh id, got %d again", oldID)
	}
}

func TestAdjustQuotesAmendThreshold(t *testing.T) {
	exch := newFakeExchange()
	mkt := readyMarket(t)
	m := NewManager(exch, mkt, testQuoteConfig(), logger.Nop())

	bootstrapLadder(t, m)

	// 阈值 5 tick · 0.5 = 2.5：指数偏 2.5 内不动，超过才 amend
	mkt.UpdateIndex(50002) // 偏移 2.0 <= 2.5
	ladder2, _ := m.MakeQuotes()
	exch.commands = nil
	if err := m.AdjustQuotes(context.Background(), ladder2); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if len(exch.commands) != 0 {
		t.Fatalf("within threshold should be a no-op, got %+v", exch.commands)
	}

	mkt.UpdateIndex(50003) // 偏移 3.0 > 2.5
	ladder3, _ := m.MakeQuotes()
	exch.commands = nil
	if err := m.AdjustQuotes(context.Background(), ladder3); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if len(exch.commands) != 4 {
		t.Fatalf("expected 4 amends, got %+v", exch.commands)
	}
	for _, c := range exch.commands {
		if c.op != "amend" {
			t.Fatalf("expected amend, got %+v", c)
		}
	}
	// 本地价格 ack 前保持不变
	if got := m.Slots(Buy)[0].Price; got != 49987.5 {
		t.Fatalf("local price should stay until ack, got %v", got)
	}
}

func TestAdjustQuotesCancelOnShrink(t *testing.T) {
	exch := newFakeExchange()
	mkt := readyMarket(t)
	m := NewManager(exch, mkt, testQuoteConfig(), logger.Nop())
	bootstrapLadder(t, m)
	secondBid := m.Slots(Buy)[1].ID

	shrunk := testQuoteConfig()
	shrunk.BidSizes = []float64{0.2}
	if err := m.SetQuoteConfig(shrunk); err != nil {
		t.Fatalf("set config: %v", err)
	}
	ladder, _ := m.MakeQuotes()
	exch.commands = nil
	if err := m.AdjustQuotes(context.Background(), ladder); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	var cancels []command
	for _, c := range exch.commands {
		if c.op == "cancel" {
			cancels = append(cancels, c)
		}
		if c.op == "insert" {
			t.Fatalf("shrink must not insert: %+v", c)
		}
	}
	if len(cancels) != 1 || cancels[0].id != secondBid {
		t.Fatalf("expected one cancel of %d, got %+v", secondBid, cancels)
	}
	// 槽位保留在内存里，撤单确认后写回
	if len(m.Slots(Buy)) != 2 {
		t.Fatalf("slot should remain after shrink")
	}
}

func TestAdjustQuotesAbortsOnError(t *testing.T) {
	exch := newFakeExchange()
	exch.failAt = 2
	exch.err = errors.New("socket closed")
	m := NewManager(exch, readyMarket(t), testQuoteConfig(), logger.Nop())

	ladder, _ := m.MakeQuotes()
	err := m.AdjustQuotes(context.Background(), ladder)
	if err == nil || !errors.Is(err, exch.err) {
		t.Fatalf("expected wrapped exchange error, got %v", err)
	}
	if len(exch.commands) != 2 {
		t.Fatalf("should stop after failure, got %+v", exch.commands)
	}
}

// bootstrapLadder 建立一个全部已确认的双侧梯子。
func bootstrapLadder(t *testing.T, m *Manager) Ladder {
	t.Helper()
	ladder, err := m.MakeQuotes()
	if err != nil {
		t.Fatalf("make quotes: %v", err)
	}
	if err := m.AdjustQuotes(context.Background(), ladder); err != nil {
		t.Fatalf("bootstrap adjust: %v", err)
	}
	for _, side := range [2]Side{Buy, Sell} {
		for _, slot := range m.Slots(side) {
			ackOpen(t, m, slot.ID, slot.Price, slot.Amount)
		}
	}
	return ladder
}
