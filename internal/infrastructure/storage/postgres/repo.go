package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"deltarelay/internal/application/port"
	"deltarelay/internal/domain"
)

type Archive struct {
	db *sql.DB
}

func New(dsn string) (*Archive, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  created_at BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS deltas (
  id BIGSERIAL PRIMARY KEY,
  archive TEXT NOT NULL REFERENCES archives(name),
  symbol TEXT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  size DOUBLE PRECISION NOT NULL,
  seq BIGINT NOT NULL,
  event SMALLINT NOT NULL,
  ts DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deltas_archive_ts ON deltas(archive, ts);
`)
	return err
}

func (a *Archive) Exists(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := a.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM archives WHERE name=$1)`, name).Scan(&ok)
	return ok, err
}

func (a *Archive) Create(ctx context.Context, name string) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO archives(name, created_at) VALUES($1, $2) ON CONFLICT (name) DO NOTHING`,
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

	for _, d := range deltas {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deltas(archive, symbol, price, size, seq, event, ts) VALUES($1, $2, $3, $4, $5, $6, $7)`,
			name, d.Symbol, d.Price, d.Size, int64(d.Seq), int16(d.Event), d.Ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}

var _ port.Archive = (*Archive)(nil)
