package domain

import (
	"errors"
	"testing"
)

func TestFormatPairMarketOrdering(t *testing.T) {
	tests := []struct {
		name string
		ex   Exchange
		pair AssetPair
		want string
	}{
		{"bitmex asset first, no separator", BitMEX, AssetPair{BTC, USD}, "XBTUSD"},
		{"bitmex eth", BitMEX, AssetPair{ETH, USD}, "ETHUSD"},
		{"gdax asset first", GDAX, AssetPair{ETH, USDC}, "ETH-USDC"},
		{"poloniex market first", Poloniex, AssetPair{LTC, USDT}, "USDT-LTC"},
		{"poloniex btc market", Poloniex, AssetPair{ETH, BTC}, "BTC-ETH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatPair(tt.ex, tt.pair)
			if err != nil {
				t.Fatalf("FormatPair failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			again, _ := FormatPair(tt.ex, tt.pair)
			if again != got {
				t.Errorf("FormatPair not deterministic: %q vs %q", got, again)
			}
		})
	}
}

func TestFormatPairUnsupportedAsset(t *testing.T) {
	cases := []struct {
		ex   Exchange
		pair AssetPair
	}{
		{BitMEX, AssetPair{BTC, EUR}},
		{BitMEX, AssetPair{USDT, USD}},
		{Poloniex, AssetPair{BTC, USD}},
		{GDAX, AssetPair{BTC, USDT}},
	}
	for _, c := range cases {
		got, err := FormatPair(c.ex, c.pair)
		if !errors.Is(err, ErrUnsupportedAsset) {
			t.Errorf("%s %s: expected ErrUnsupportedAsset, got %v", c.ex, c.pair, err)
		}
		if got != "" {
			t.Errorf("%s %s: expected empty string, got %q", c.ex, c.pair, got)
		}
	}
}

func TestFormatPairsPreservesOrder(t *testing.T) {
	pairs := []AssetPair{{ETH, USD}, {BTC, USD}, {LTC, USD}}
	got, err := FormatPairs(BitMEX, pairs)
	if err != nil {
		t.Fatalf("FormatPairs failed: %v", err)
	}
	want := []string{"ETHUSD", "XBTUSD", "LTCUSD"}
	if len(got) != len(want) {
		t.Fatalf("expected %d pairs, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestFormatPairsPropagatesError(t *testing.T) {
	_, err := FormatPairs(BitMEX, []AssetPair{{BTC, USD}, {BTC, JPY}})
	if !errors.Is(err, ErrUnsupportedAsset) {
		t.Fatalf("expected ErrUnsupportedAsset, got %v", err)
	}
}

func TestParseAssetPair(t *testing.T) {
	p, err := ParseAssetPair([]string{"btc", " USD "})
	if err != nil {
		t.Fatalf("ParseAssetPair failed: %v", err)
	}
	if p != (AssetPair{BTC, USD}) {
		t.Errorf("expected BTC/USD, got %s", p)
	}
	if _, err := ParseAssetPair([]string{"BTC"}); err == nil {
		t.Error("expected error for single asset")
	}
	if _, err := ParseAssetPair([]string{"BTC", "DOGE"}); err == nil {
		t.Error("expected error for unknown asset")
	}
}

func TestExchangeCapabilities(t *testing.T) {
	if BitMEX.SupportsSpot() || !BitMEX.SupportsFutures() || !BitMEX.SupportsOptions() {
		t.Error("bitmex should be derivatives only")
	}
	if !GDAX.SupportsSpot() || GDAX.SupportsFutures() {
		t.Error("gdax should be spot only")
	}
	ex, err := ParseExchange("BitMEX")
	if err != nil || ex != BitMEX {
		t.Errorf("expected BitMEX, got %v (%v)", ex, err)
	}
	if len(SupportedExchanges()) != 3 {
		t.Errorf("expected 3 supported exchanges, got %v", SupportedExchanges())
	}
}

func TestDeltaEvent(t *testing.T) {
	d := Delta{Event: Event(true, true)}
	if !d.IsBid() || !d.IsTrade() {
		t.Errorf("expected bid trade, got event %b", d.Event)
	}
	d = Delta{Event: Event(false, false)}
	if d.IsBid() || d.IsTrade() {
		t.Errorf("expected ask update, got event %b", d.Event)
	}
}
