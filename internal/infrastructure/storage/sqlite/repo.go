package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"deltarelay/internal/application/port"
	"deltarelay/internal/domain"
)

type Archive struct {
	db *sql.DB
}

func New(path string) (*Archive, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	a := &Archive{db: db}
	if err := a.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) Close() error { return a.db.Close() }

func (a *Archive) migrate(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS archives (
  name TEXT PRIMARY KEY,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS deltas (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  archive TEXT NOT NULL REFERENCES archives(name),
  symbol TEXT NOT NULL,
  price REAL NOT NULL,
  size REAL NOT NULL,
  seq INTEGER NOT NULL,
  event INTEGER NOT NULL,
  ts REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deltas_archive_ts ON deltas(archive, ts);
`)
	return err
}

func (a *Archive) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM archives WHERE name=?`, name).Scan(&n)
	return n > 0, err
}

func (a *Archive) Create(ctx context.Context, name string) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO archives(name, created_at) VALUES(?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UnixMilli())
	return err
}

func (a *Archive) Append(ctx context.Context, name string, deltas []domain.Delta) error {
	if len(deltas) == 0 {
		return nil
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO deltas(archive, symbol, price, size, seq, event, ts) VALUES(?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range deltas {
		if _, err := stmt.ExecContext(ctx, name, d.Symbol, d.Price, d.Size, int64(d.Seq), int(d.Event), d.Ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Count 归档中的 delta 数量
func (a *Archive) Count(ctx context.Context, name string) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM deltas WHERE archive=?`, name).Scan(&n)
	return n, err
}

var _ port.Archive = (*Archive)(nil)
