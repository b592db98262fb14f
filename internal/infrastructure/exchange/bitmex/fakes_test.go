package bitmex

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"deltarelay/internal/application/port"
	"deltarelay/internal/infrastructure/storage"
)

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	ch   chan published
	err  error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{ch: make(chan published, 64)}
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	m := published{topic: topic, payload: append([]byte(nil), payload...)}
	p.mu.Lock()
	p.msgs = append(p.msgs, m)
	p.mu.Unlock()
	select {
	case p.ch <- m:
	default:
	}
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

type fakeInstruments struct {
	calls atomic.Int32
	list  []port.Instrument
	err   error
}

func (f *fakeInstruments) Instruments(ctx context.Context) ([]port.Instrument, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

// testInstruments: XBTUSD at index 0, ETHUSD at index 7 with tick 0.5
func testInstruments() []port.Instrument {
	syms := []string{"XBTUSD", "XBTZ24", "XBTH25", "LTCUSD", "ADAZ24", "BCHUSD", "XRPUSD", "ETHUSD"}
	out := make([]port.Instrument, 0, len(syms))
	for _, s := range syms {
		tick := decimal.New(1, -2)
		if s == "ETHUSD" {
			tick = decimal.New(5, -1)
		}
		out = append(out, port.Instrument{Symbol: s, Timestamp: "2024-01-01T00:00:00.000Z", TickSize: tick})
	}
	return out
}

func testConfig(pub *fakePublisher, src *fakeInstruments) ConnectorConfig {
	cfg := DefaultSettings()
	cfg.Publisher = pub
	cfg.Instruments = src
	cfg.Archive = storage.NewInMemoryArchive()
	return cfg
}

func newTestHandler(t *testing.T, cfg ConnectorConfig) *Handler {
	t.Helper()
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	rt, err := NewRuntimeState(cfg, cfg.Publisher)
	if err != nil {
		t.Fatalf("NewRuntimeState failed: %v", err)
	}
	return NewHandler(cfg, rt)
}
