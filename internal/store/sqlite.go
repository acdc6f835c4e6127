package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"statarb/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// migrations are applied in order; PRAGMA user_version records how many have
// run.
var migrations = []string{
	`CREATE TABLE runs (
		id             TEXT PRIMARY KEY,
		created_at     INTEGER NOT NULL,
		pair_x         TEXT NOT NULL,
		pair_y         TEXT NOT NULL,
		strategy       TEXT NOT NULL,
		hedge_ratio    REAL NOT NULL,
		sharpe         REAL NOT NULL,
		max_drawdown   REAL NOT NULL,
		cagr           REAL NOT NULL,
		win_rate       REAL NOT NULL,
		trades         INTEGER NOT NULL,
		initial_equity REAL NOT NULL,
		final_equity   REAL NOT NULL,
		config         TEXT
	);
	CREATE INDEX runs_created_at ON runs (created_at DESC);
	CREATE TABLE equity (
		run_id   TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
		bar      INTEGER NOT NULL,
		ts       INTEGER NOT NULL,
		equity   REAL NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (run_id, bar)
	);
	CREATE TABLE trades (
		run_id TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
		seq    INTEGER NOT NULL,
		ret    REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	);`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies
// pending migrations and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; serialise through one connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return err
	}
	for i := version; i < len(migrations); i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts the run header, equity curve and trade returns in one
// transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, res *domain.BacktestResult) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var config sql.NullString
	if len(run.Config) > 0 {
		config = sql.NullString{String: string(run.Config), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
		id, created_at, pair_x, pair_y, strategy, hedge_ratio,
		sharpe, max_drawdown, cagr, win_rate, trades,
		initial_equity, final_equity, config
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixMilli(), run.Pair.X, run.Pair.Y, run.Strategy, run.HedgeRatio,
		run.Metrics.Sharpe, run.Metrics.MaxDrawdown, run.Metrics.CAGR, run.Metrics.WinRate, run.Metrics.Trades,
		run.InitialEquity, run.FinalEquity, config,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	if res != nil {
		if err := insertSeries(ctx, tx, run.ID, res); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

func insertSeries(ctx context.Context, tx *sql.Tx, id string, res *domain.BacktestResult) error {
	eq, err := tx.PrepareContext(ctx, `INSERT INTO equity (run_id, bar, ts, equity, position) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer eq.Close()
	for i, v := range res.Equity {
		var ts int64
		if i < len(res.Timestamps) {
			ts = res.Timestamps[i].UnixMilli()
		}
		pos := domain.SideFlat
		if i < len(res.Positions) {
			pos = res.Positions[i]
		}
		if _, err := eq.ExecContext(ctx, id, i, ts, v, int(pos)); err != nil {
			return fmt.Errorf("inserting equity bar %d: %w", i, err)
		}
	}

	tr, err := tx.PrepareContext(ctx, `INSERT INTO trades (run_id, seq, ret) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer tr.Close()
	for i, r := range res.TradeReturns {
		if _, err := tr.ExecContext(ctx, id, i, r); err != nil {
			return fmt.Errorf("inserting trade %d: %w", i, err)
		}
	}
	return nil
}

const runColumns = `id, created_at, pair_x, pair_y, strategy, hedge_ratio,
	sharpe, max_drawdown, cagr, win_rate, trades, initial_equity, final_equity, config`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r       Run
		created int64
		config  sql.NullString
	)
	err := row.Scan(&r.ID, &created, &r.Pair.X, &r.Pair.Y, &r.Strategy, &r.HedgeRatio,
		&r.Metrics.Sharpe, &r.Metrics.MaxDrawdown, &r.Metrics.CAGR, &r.Metrics.WinRate, &r.Metrics.Trades,
		&r.InitialEquity, &r.FinalEquity, &config)
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	if config.Valid {
		r.Config = []byte(config.String)
	}
	return r, nil
}

// GetRun retrieves a single run by its ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRuns returns the most recent runs, up to limit (all when limit <= 0).
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// EquityCurve returns the equity series of a run, or ErrNotFound for an
// unknown run.
func (s *SQLiteStore) EquityCurve(ctx context.Context, id string) ([]EquityPoint, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT bar, ts, equity, position FROM equity WHERE run_id = ? ORDER BY bar`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []EquityPoint{}
	for rows.Next() {
		var (
			p   EquityPoint
			ts  int64
			pos int
		)
		if err := rows.Scan(&p.Bar, &ts, &p.Equity, &pos); err != nil {
			return nil, err
		}
		p.Timestamp = time.UnixMilli(ts).UTC()
		p.Position = domain.Side(pos)
		points = append(points, p)
	}
	return points, rows.Err()
}

// TradeReturns returns the trade returns of a run, or ErrNotFound for an
// unknown run.
func (s *SQLiteStore) TradeReturns(ctx context.Context, id string) ([]float64, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT ret FROM trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []float64{}
	for rows.Next() {
		var r float64
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) exists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return err
}
