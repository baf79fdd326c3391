package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/clock"
	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

var _ repo.ResultStore = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ping_results (
  id        BIGSERIAL PRIMARY KEY,
  ts        TIMESTAMPTZ NOT NULL,
  ping_time DOUBLE PRECISION NULL,
  status    TEXT NOT NULL CHECK (status IN ('success', 'failed')),
  CHECK ((status = 'success') = (ping_time IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_ping_results_ts        ON ping_results (ts DESC);
CREATE INDEX IF NOT EXISTS idx_ping_results_status_ts ON ping_results (status, ts DESC);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
	zone *clock.Zone

	writeMu sync.Mutex
	last    time.Time
}

func New(ctx context.Context, dsn string, zone *clock.Zone, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{pool: pool, log: log, zone: zone}
	var last *time.Time
	if err := pool.QueryRow(ctx, `SELECT MAX(ts) FROM ping_results`).Scan(&last); err != nil {
		pool.Close()
		return nil, fmt.Errorf("read last timestamp: %w", err)
	}
	if last != nil {
		s.last = zone.Local(*last)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

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
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ping_results (ts, ping_time, status)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		ts, r.LatencyMS, string(r.Status),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert probe result: %w", err)
	}
	s.last = ts
	r.ID = id
	r.Timestamp = ts
	return nil
}

const selectCols = `SELECT id, ts, ping_time, status FROM ping_results`

func (s *Store) Get(ctx context.Context, id int64) (*domain.ProbeResult, error) {
	r, err := s.scan(s.pool.QueryRow(ctx, selectCols+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get probe result: %w", err)
	}
	return &r, nil
}

func (s *Store) Latest(ctx context.Context) (*domain.ProbeResult, error) {
	r, err := s.scan(s.pool.QueryRow(ctx, selectCols+` ORDER BY ts DESC, id DESC LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest probe result: %w", err)
	}
	return &r, nil
}

func (s *Store) Query(ctx context.Context, f domain.Filter) ([]domain.ProbeResult, int, error) {
	where, args := whereClause(f)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, fmt.Errorf("begin query: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM ping_results`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count probe results: %w", err)
	}

	q := selectCols + where + ` ORDER BY ts DESC, id DESC`
	if f.Paginated() {
		q += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, f.PageSize, f.Offset())
	}
	rows, err := tx.Query(ctx, q, args...)
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
			s.log.Debug("prune_done", zap.Int64("deleted", deleted))
			return deleted, nil
		}
	}
}

func (s *Store) pruneBatch(ctx context.Context, olderThan time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM ping_results WHERE id IN (
		   SELECT id FROM ping_results WHERE ts < $1 ORDER BY id LIMIT $2)`,
		olderThan, repo.PruneBatchSize)
	if err != nil {
		return 0, fmt.Errorf("prune probe results: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) scan(row pgx.Row) (domain.ProbeResult, error) {
	var (
		r      domain.ProbeResult
		ts     time.Time
		ping   *float64
		status string
	)
	if err := row.Scan(&r.ID, &ts, &ping, &status); err != nil {
		return r, err
	}
	r.Timestamp = s.zone.Local(ts)
	r.LatencyMS = ping
	r.Status = domain.Outcome(status)
	return r, nil
}

func whereClause(f domain.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}
	if f.Start != nil {
		add("ts >= $%d", *f.Start)
	}
	if f.End != nil {
		add("ts <= $%d", *f.End)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
