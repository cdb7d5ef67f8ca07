package order

import "testing"

func TestEnumWireForms(t *testing.T) {
	cases := []struct {
		name string
		str  string
		code int
	}{
		{"buy", Buy.String(), Buy.Code()},
		{"sell", Sell.String(), Sell.Code()},
		{"open", StatusOpen.String(), StatusOpen.Code()},
		{"filled", StatusFilled.String(), StatusFilled.Code()},
		{"limit", Limit.String(), Limit.Code()},
		{"good_till_cancelled", GTC.String(), GTC.Code()},
	}
	wantCodes := []int{0, 1, 1, 5, 0, 0}
	for i, c := range cases {
		if c.str != c.name {
			t.Fatalf("string form: got %q, want %q", c.str, c.name)
		}
		if c.code != wantCodes[i] {
			t.Fatalf("%s code: got %d, want %d", c.name, c.code, wantCodes[i])
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusCancelled, StatusCancelledPartiallyFilled, StatusFilled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	open := []Status{StatusUnset, StatusOpen, StatusPartiallyFilled}
	for _, s := range open {
		if s.IsTerminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("cancelled_partially_filled")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != StatusCancelledPartiallyFilled {
		t.Fatalf("got %v", st)
	}
	if _, err := ParseStatus("lingering"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("sell")
	if err != nil || s != Sell {
		t.Fatalf("got %v, %v", s, err)
	}
	if _, err := ParseSide("short"); err == nil {
		t.Fatalf("expected error for unknown side")
	}
}

func TestParseFallbacks(t *testing.T) {
	if ParseType("weird") != Limit {
		t.Fatalf("unknown type should fall back to limit")
	}
	if ParseType("market") != Market {
		t.Fatalf("market not recognized")
	}
	if ParseTimeInForce("weird") != GTC {
		t.Fatalf("unknown tif should fall back to GTC")
	}
	if ParseTimeInForce("immediate_or_cancel") != IOC {
		t.Fatalf("IOC not recognized")
	}
}

func TestFromNotification(t *testing.T) {
	raw := []byte(`{"client_order_id":101,"price":49987.5,"remaining_amount":0.2,"filled_amount":0.1,"status":"partially_filled"}`)
	o, err := FromNotification(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.ID != 101 || o.Price != 49987.5 || o.Amount != 0.2 || o.FilledAmount != 0.1 {
		t.Fatalf("unexpected order: %+v", o)
	}
	if o.Status != StatusPartiallyFilled || !o.IsOpen() {
		t.Fatalf("unexpected status: %v", o.Status)
	}
}

func TestFromNotificationMissingFields(t *testing.T) {
	cases := []string{
		`{"price":1,"remaining_amount":1,"status":"open"}`,
		`{"client_order_id":101,"remaining_amount":1,"status":"open"}`,
		`{"client_order_id":101,"price":1,"status":"open"}`,
		`{"client_order_id":101,"price":1,"remaining_amount":1}`,
	}
	for _, raw := range cases {
		if _, err := FromNotification([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestFromNotificationUnknownStatus(t *testing.T) {
	raw := []byte(`{"client_order_id":101,"price":1,"remaining_amount":1,"status":"resting"}`)
	o, err := FromNotification(raw)
	if err != nil {
		t.Fatalf("unknown status string should not fail: %v", err)
	}
	if o.Status != StatusUnset {
		t.Fatalf("got %v, want unset", o.Status)
	}
}
