package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"deltarelay/internal/domain"
)

// 需要真实数据库：DELTARELAY_TEST_POSTGRES_DSN=postgres://...
func newArchive(t *testing.T) *Archive {
	t.Helper()
	dsn := os.Getenv("DELTARELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DELTARELAY_TEST_POSTGRES_DSN not set")
	}
	a, err := New(dsn)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestPostgresArchiveRoundTrip(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()
	name := fmt.Sprintf("test_%d", time.Now().UnixNano())

	if ok, err := a.Exists(ctx, name); err != nil || ok {
		t.Fatalf("unexpected Exists before Create: %v %v", ok, err)
	}
	if err := a.Create(ctx, name); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := a.Create(ctx, name); err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if ok, err := a.Exists(ctx, name); err != nil || !ok {
		t.Fatalf("unexpected Exists after Create: %v %v", ok, err)
	}

	deltas := []domain.Delta{
		{Symbol: "XBTUSD", Price: 1.23, Size: 100, Seq: 1, Event: domain.EventBid, Ts: 1700000000.25},
		{Symbol: "XBTUSD", Price: 1.24, Size: 0, Seq: 2, Event: domain.EventAsk, Ts: 1700000000.5},
	}
	if err := a.Append(ctx, name, deltas); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM deltas WHERE archive=$1`, name).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}
}
