package market

import "testing"

const fullTicker = `{
	"mark_price": 50001.5,
	"mark_timestamp": 1700000000.123,
	"best_bid_price": 50000.0,
	"best_bid_amount": 1.2,
	"best_ask_price": 50003.0,
	"best_ask_amount": 0.8,
	"last_price": 50002.0,
	"index": 50000.7,
	"funding_rate": 0.0001,
	"open_interest": 1234.5
}`

func TestParseTicker(t *testing.T) {
	tk, err := ParseTicker([]byte(fullTicker), "BTC-PERPETUAL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.InstrumentName != "BTC-PERPETUAL" {
		t.Fatalf("instrument: %q", tk.InstrumentName)
	}
	if tk.MarkPrice != 50001.5 || tk.IndexPrice != 50000.7 || tk.FundingRate != 0.0001 {
		t.Fatalf("strict fields: %+v", tk)
	}
	// 缺省字段取 0
	if tk.Forward != 0 || tk.CollarHigh != 0 {
		t.Fatalf("lenient fields should default to 0: %+v", tk)
	}
	if tk.ProcessingTimestamp <= 0 {
		t.Fatalf("processing timestamp not stamped")
	}
}

func TestParseTickerMissingRequired(t *testing.T) {
	cases := []string{
		`{"mark_timestamp":1,"funding_rate":0,"index":1}`,
		`{"mark_price":1,"funding_rate":0,"index":1}`,
		`{"mark_price":1,"mark_timestamp":1,"index":1}`,
		`{"mark_price":1,"mark_timestamp":1,"funding_rate":0}`,
	}
	for _, raw := range cases {
		if _, err := ParseTicker([]byte(raw), "X"); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestParseTickerZeroFundingRate(t *testing.T) {
	// 显式 0 与缺失必须区分开
	raw := `{"mark_price":1,"mark_timestamp":1,"funding_rate":0,"index":1}`
	tk, err := ParseTicker([]byte(raw), "X")
	if err != nil {
		t.Fatalf("explicit zero rejected: %v", err)
	}
	if tk.FundingRate != 0 {
		t.Fatalf("got %v", tk.FundingRate)
	}
}

func TestBestBidAsk(t *testing.T) {
	tk, _ := ParseTicker([]byte(fullTicker), "X")
	if bid, ok := tk.BestBid(); !ok || bid != 50000.0 {
		t.Fatalf("best bid: %v %v", bid, ok)
	}
	empty := Ticker{}
	if _, ok := empty.BestBid(); ok {
		t.Fatalf("empty book should have no best bid")
	}
	if _, ok := empty.BestAsk(); ok {
		t.Fatalf("empty book should have no best ask")
	}
}
