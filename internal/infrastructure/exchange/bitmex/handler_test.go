package bitmex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"deltarelay/internal/domain"
	"deltarelay/internal/infrastructure/metrics"
	"deltarelay/internal/infrastructure/storage"
)

func frame(data string, seq uint64) Frame {
	return Frame{Data: []byte(data), ReceivedAt: time.Unix(1700000000, 250_000_000), Seq: seq}
}

func openedHandler(t *testing.T, cfg ConnectorConfig) *Handler {
	t.Helper()
	h := newTestHandler(t, cfg)
	if _, err := h.OnOpen(context.Background()); err != nil {
		t.Fatalf("OnOpen failed: %v", err)
	}
	return h
}

func TestSubscriptionExpandsDualChannels(t *testing.T) {
	cfg := testConfig(newFakePublisher(), &fakeInstruments{list: testInstruments()})
	cfg.SingleChannels = []string{"instrument"}
	cfg.MetaData.AssetPairs = []domain.AssetPair{ReferencePair, {domain.ETH, domain.USD}}
	h := newTestHandler(t, cfg)

	sub, err := h.Subscription()
	if err != nil {
		t.Fatalf("Subscription failed: %v", err)
	}
	want := []string{"instrument", "orderBookL2:XBTUSD", "orderBookL2:ETHUSD", "trade:XBTUSD", "trade:ETHUSD"}
	if sub.Op != "subscribe" || !reflect.DeepEqual(sub.Args, want) {
		t.Errorf("unexpected subscription %+v", sub)
	}
}

func TestOnOpenDefaultSubscriptionPayload(t *testing.T) {
	h := newTestHandler(t, testConfig(newFakePublisher(), &fakeInstruments{list: testInstruments()}))
	b, err := h.OnOpen(context.Background())
	if err != nil {
		t.Fatalf("OnOpen failed: %v", err)
	}
	var sub struct {
		Op   string   `json:"op"`
		Args []string `json:"args"`
	}
	if err := json.Unmarshal(b, &sub); err != nil {
		t.Fatalf("invalid subscription json: %v", err)
	}
	if !reflect.DeepEqual(sub.Args, []string{"orderBookL2:XBTUSD", "trade:XBTUSD"}) {
		t.Errorf("unexpected args %v", sub.Args)
	}
}

func TestOnOpenProvisionsArchivesOnce(t *testing.T) {
	src := &fakeInstruments{list: testInstruments()}
	cfg := testConfig(newFakePublisher(), src)
	archive := cfg.Archive.(*storage.InMemoryArchive)
	h := newTestHandler(t, cfg)

	for i := 0; i < 2; i++ {
		if _, err := h.OnOpen(context.Background()); err != nil {
			t.Fatalf("OnOpen #%d failed: %v", i, err)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("expected one metadata fetch, got %d", n)
	}

	ok, _ := archive.Exists(context.Background(), "bitmex_XBTUSD")
	if !ok {
		t.Error("expected bitmex_XBTUSD archive")
	}
	// 未跟踪的合约不建归档
	if ok, _ := archive.Exists(context.Background(), "bitmex_ETHUSD"); ok {
		t.Error("unexpected bitmex_ETHUSD archive")
	}
}

func TestOnOpenRefreshOnReconnect(t *testing.T) {
	src := &fakeInstruments{list: testInstruments()}
	cfg := testConfig(newFakePublisher(), src)
	cfg.RefreshOnReconnect = true
	h := newTestHandler(t, cfg)

	for i := 0; i < 3; i++ {
		if _, err := h.OnOpen(context.Background()); err != nil {
			t.Fatalf("OnOpen failed: %v", err)
		}
	}
	if n := src.calls.Load(); n != 3 {
		t.Errorf("expected 3 metadata fetches, got %d", n)
	}
}

func TestOnOpenMetadataFailure(t *testing.T) {
	for name, src := range map[string]*fakeInstruments{
		"error": {err: errors.New("connection refused")},
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			h := newTestHandler(t, testConfig(newFakePublisher(), src))
			if _, err := h.OnOpen(context.Background()); !errors.Is(err, ErrMetadataFetch) {
				t.Fatalf("expected ErrMetadataFetch, got %v", err)
			}
			if h.rt.Tables.Loaded() {
				t.Error("tables must stay empty after failure")
			}
		})
	}
}

func TestNormalizeUpdates(t *testing.T) {
	h := openedHandler(t, testConfig(newFakePublisher(), &fakeInstruments{list: testInstruments()}))

	deltas, err := h.Normalize(frame(`{"table":"orderBookL2","action":"update","data":[
		{"symbol":"XBTUSD","id":8799999877,"side":"Buy","size":100},
		{"symbol":"ETHUSD","id":699999958,"side":"Sell","size":5}
	]}`, 9))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	ts := float64(time.Unix(1700000000, 250_000_000).UnixMilli()) * 0.001
	want := []domain.Delta{
		{Symbol: "XBTUSD", Price: 1.23, Size: 100, Seq: 9, Event: domain.EventBid, Ts: ts},
		{Symbol: "ETHUSD", Price: 21, Size: 5, Seq: 9, Event: domain.EventAsk, Ts: ts},
	}
	if !reflect.DeepEqual(deltas, want) {
		t.Errorf("expected %+v, got %+v", want, deltas)
	}
}

func TestNormalizeDropsOnlyBadUpdates(t *testing.T) {
	h := openedHandler(t, testConfig(newFakePublisher(), &fakeInstruments{list: testInstruments()}))

	cases := map[string]string{
		"missing id":     `{"table":"orderBookL2","action":"delete","data":[{"symbol":"XBTUSD","side":"Buy"},{"symbol":"XBTUSD","id":8799999000,"side":"Buy"}]}`,
		"unknown symbol": `{"table":"orderBookL2","action":"insert","data":[{"symbol":"FOOBAR","id":1,"side":"Buy","size":1},{"symbol":"XBTUSD","id":8799999000,"side":"Sell","size":1}]}`,
		"invalid id":     `{"table":"orderBookL2","action":"insert","data":[{"symbol":"XBTUSD","id":8800000001,"side":"Buy","size":1},{"symbol":"XBTUSD","id":8799999000,"side":"Sell","size":1}]}`,
		"negative size":  `{"table":"orderBookL2","action":"update","data":[{"symbol":"XBTUSD","id":8799999000,"side":"Buy","size":-1},{"symbol":"XBTUSD","id":8799999000,"side":"Sell","size":1}]}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			deltas, err := h.Normalize(frame(data, 1))
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if len(deltas) != 1 {
				t.Fatalf("expected 1 delta, got %d: %+v", len(deltas), deltas)
			}
			if deltas[0].Symbol != "XBTUSD" || deltas[0].Price != 10 {
				t.Errorf("unexpected delta %+v", deltas[0])
			}
		})
	}
}

func TestNormalizeDeleteHasZeroSize(t *testing.T) {
	h := openedHandler(t, testConfig(newFakePublisher(), &fakeInstruments{list: testInstruments()}))
	deltas, err := h.Normalize(frame(`{"table":"orderBookL2","action":"delete","data":[{"symbol":"XBTUSD","id":8799999000,"side":"Sell"}]}`, 1))
	if err != nil || len(deltas) != 1 {
		t.Fatalf("unexpected result %+v %v", deltas, err)
	}
	if deltas[0].Size != 0 {
		t.Errorf("expected size 0, got %v", deltas[0].Size)
	}
}

func TestNormalizeTrades(t *testing.T) {
	h := openedHandler(t, testConfig(newFakePublisher(), &fakeInstruments{list: testInstruments()}))

	for name, data := range map[string]string{
		"trade action": `{"table":"orderBookL2","action":"Trade","data":[{"symbol":"XBTUSD","id":8799999000,"side":"Buy","size":3}]}`,
		"trade table":  `{"table":"trade","action":"insert","data":[{"symbol":"XBTUSD","id":8799999000,"side":"Sell","size":3}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			deltas, err := h.Normalize(frame(data, 1))
			if err != nil || len(deltas) != 1 {
				t.Fatalf("unexpected result %+v %v", deltas, err)
			}
			if !deltas[0].IsTrade() {
				t.Errorf("expected trade event, got %d", deltas[0].Event)
			}
		})
	}
}

func TestHandleFrameSkipsSnapshotsAndMalformed(t *testing.T) {
	pub := newFakePublisher()
	cfg := testConfig(pub, &fakeInstruments{list: testInstruments()})
	archive := cfg.Archive.(*storage.InMemoryArchive)
	h := openedHandler(t, cfg)

	for _, data := range []string{
		`{"info":"Welcome to the BitMEX Realtime API."}`,
		`{"success":true,"subscribe":"orderBookL2:XBTUSD"}`,
		`{"table":"orderBookL2","action":"partial","data":[{"symbol":"XBTUSD","id":8799999000,"side":"Buy","size":1}]}`,
		`{"table":"orderBookL2","action":"update","data":[]}`,
		`not json`,
	} {
		h.HandleFrame(context.Background(), frame(data, 1))
	}
	if n := pub.count(); n != 0 {
		t.Errorf("expected no publishes, got %d", n)
	}
	if n := len(archive.Deltas("bitmex_XBTUSD")); n != 0 {
		t.Errorf("expected empty archive, got %d", n)
	}
}

func TestHandleFramePublishesAndArchives(t *testing.T) {
	pub := newFakePublisher()
	cfg := testConfig(pub, &fakeInstruments{list: testInstruments()})
	archive := cfg.Archive.(*storage.InMemoryArchive)
	h := openedHandler(t, cfg)

	h.HandleFrame(context.Background(), frame(`{"table":"orderBookL2","action":"update","data":[
		{"symbol":"XBTUSD","id":8799999877,"side":"Buy","size":100},
		{"symbol":"ETHUSD","id":699999958,"side":"Sell","size":5}
	]}`, 4))

	if n := pub.count(); n != 1 {
		t.Fatalf("expected 1 publish, got %d", n)
	}
	msg := pub.msgs[0]
	if msg.topic != DefaultTopic {
		t.Errorf("expected topic %q, got %q", DefaultTopic, msg.topic)
	}
	var got []domain.Delta
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 4 {
		t.Errorf("unexpected payload %+v", got)
	}

	// 只有已建归档的合约会被追加
	if n := len(archive.Deltas("bitmex_XBTUSD")); n != 1 {
		t.Errorf("expected 1 archived XBTUSD delta, got %d", n)
	}
	if n := len(archive.Deltas("bitmex_ETHUSD")); n != 0 {
		t.Errorf("expected no ETHUSD archive, got %d", n)
	}
}

func TestHandleFramePublishFailureStillArchives(t *testing.T) {
	pub := newFakePublisher()
	pub.err = errors.New("broken pipe")
	cfg := testConfig(pub, &fakeInstruments{list: testInstruments()})
	archive := cfg.Archive.(*storage.InMemoryArchive)
	h := openedHandler(t, cfg)

	h.HandleFrame(context.Background(), frame(`{"table":"trade","action":"insert","data":[{"symbol":"XBTUSD","id":8799999000,"side":"Buy","size":1}]}`, 1))
	if n := len(archive.Deltas("bitmex_XBTUSD")); n != 1 {
		t.Errorf("expected archive append despite publish failure, got %d", n)
	}
}

// flakyArchive 前 failures 次 Exists 返回错误
type flakyArchive struct {
	*storage.InMemoryArchive
	failures atomic.Int32
}

func (a *flakyArchive) Exists(ctx context.Context, name string) (bool, error) {
	if a.failures.Add(-1) >= 0 {
		return false, errors.New("connection reset by peer")
	}
	return a.InMemoryArchive.Exists(ctx, name)
}

func TestArchiveProvisionedLazilyAfterFailure(t *testing.T) {
	archive := &flakyArchive{InMemoryArchive: storage.NewInMemoryArchive()}
	archive.failures.Store(1)
	pub := newFakePublisher()
	cfg := testConfig(pub, &fakeInstruments{list: testInstruments()})
	cfg.Archive = archive
	h := openedHandler(t, cfg)

	if ok, _ := archive.InMemoryArchive.Exists(context.Background(), "bitmex_XBTUSD"); ok {
		t.Fatal("archive should not exist after failed provisioning")
	}

	trade := `{"table":"trade","action":"insert","data":[{"symbol":"XBTUSD","id":8799999000,"side":"Buy","size":1}]}`
	for i := 0; i < 3; i++ {
		h.HandleFrame(context.Background(), frame(trade, uint64(i+1)))
	}
	if n := pub.count(); n != 3 {
		t.Errorf("expected 3 publishes, got %d", n)
	}
	if n := len(archive.Deltas("bitmex_XBTUSD")); n != 3 {
		t.Errorf("expected 3 archived deltas, got %d", n)
	}
}

func TestArchiveProvisionFailureIsReported(t *testing.T) {
	archive := &flakyArchive{InMemoryArchive: storage.NewInMemoryArchive()}
	archive.failures.Store(100)
	cfg := testConfig(newFakePublisher(), &fakeInstruments{list: testInstruments()})
	cfg.Archive = archive
	cfg.Metrics = metrics.NewConnector()
	h := openedHandler(t, cfg)

	h.HandleFrame(context.Background(), frame(`{"table":"trade","action":"insert","data":[{"symbol":"XBTUSD","id":8799999000,"side":"Buy","size":1}]}`, 1))

	// 建连时一次，追加时补建失败一次
	rec := httptest.NewRecorder()
	cfg.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `deltarelay_sink_errors_total{exchange="bitmex",sink="archive"} 2`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("expected %q in metrics output:\n%s", want, rec.Body.String())
	}
}

