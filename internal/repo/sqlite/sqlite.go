// Package sqlite is the default ResultStore: one append-only table in a local
// SQLite file.
//
// Each row keeps the local-time text the dashboard shows (timestamp) and the
// Unix milliseconds used for ordering and range filters (ts_ms), so DST
// transitions never reorder the log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hamed0406/pingmonitor/internal/clock"
	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

var _ repo.ResultStore = (*Store)(nil)

type Store struct {
	db   *sql.DB
	zone *clock.Zone

	writeMu sync.Mutex
	last    time.Time
}

// New opens (creating if needed) the database at path and applies migrations.
func New(ctx context.Context, path string, zone *clock.Zone) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	dsn := path + "?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, zone: zone}
	var lastMS sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(ts_ms) FROM ping_results`).Scan(&lastMS); err != nil {
		db.Close()
		return nil, fmt.Errorf("read last timestamp: %w", err)
	}
	if lastMS.Valid {
		s.last = time.UnixMilli(lastMS.Int64).In(zone.Location())
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Append(ctx context.Context, r *domain.ProbeResult) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ts := s.zone.Now()
	if ts.Before(s.last) {
		ts = s.last
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ping_results (timestamp, ts_ms, ping_time, status)
		 VALUES (?, ?, ?, ?)`,
		s.zone.FormatStorage(ts), ts.UnixMilli(), r.LatencyMS, string(r.Status))
	if err != nil {
		return fmt.Errorf("insert probe result: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read inserted id: %w", err)
	}
	s.last = ts
	r.ID = id
	r.Timestamp = ts
	return nil
}

const selectCols = `SELECT id, ts_ms, ping_time, status FROM ping_results`

func (s *Store) Get(ctx context.Context, id int64) (*domain.ProbeResult, error) {
	row := s.db.QueryRowContext(ctx, selectCols+` WHERE id = ?`, id)
	r, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get probe result: %w", err)
	}
	return &r, nil
}

func (s *Store) Latest(ctx context.Context) (*domain.ProbeResult, error) {
	row := s.db.QueryRowContext(ctx, selectCols+` ORDER BY ts_ms DESC, id DESC LIMIT 1`)
	r, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest probe result: %w", err)
	}
	return &r, nil
}

func (s *Store) Query(ctx context.Context, f domain.Filter) ([]domain.ProbeResult, int, error) {
	where, args := whereClause(f)

	// count and page read the same snapshot
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin query: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ping_results`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count probe results: %w", err)
	}

	q := selectCols + where + ` ORDER BY ts_ms DESC, id DESC`
	if f.Paginated() {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.PageSize, f.Offset())
	}
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query probe results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ProbeResult, 0)
	for rows.Next() {
		r, err := s.scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan probe result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	var deleted int64
	for {
		n, err := s.pruneBatch(ctx, olderThan)
		deleted += n
		if err != nil {
			return deleted, err
		}
		if n < repo.PruneBatchSize {
			return deleted, nil
		}
	}
}

func (s *Store) pruneBatch(ctx context.Context, olderThan time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ping_results WHERE id IN (
		   SELECT id FROM ping_results WHERE ts_ms < ? ORDER BY id LIMIT ?)`,
		olderThan.UnixMilli(), repo.PruneBatchSize)
	if err != nil {
		return 0, fmt.Errorf("prune probe results: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(sc scanner) (domain.ProbeResult, error) {
	var (
		r      domain.ProbeResult
		tsMS   int64
		ping   sql.NullFloat64
		status string
	)
	if err := sc.Scan(&r.ID, &tsMS, &ping, &status); err != nil {
		return r, err
	}
	r.Timestamp = time.UnixMilli(tsMS).In(s.zone.Location())
	r.Status = domain.Outcome(status)
	if ping.Valid {
		v := ping.Float64
		r.LatencyMS = &v
	}
	return r, nil
}

func whereClause(f domain.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Start != nil {
		conds = append(conds, "ts_ms >= ?")
		args = append(args, f.Start.UnixMilli())
	}
	if f.End != nil {
		conds = append(conds, "ts_ms <= ?")
		args = append(args, f.End.UnixMilli())
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
