package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

var ErrNotFound = errors.New("probe result not found")

// ResultStore is the durable, time-ordered log of probe outcomes.
//
// Implementations assign ID and Timestamp on Append, serialize writers and
// let readers run concurrently with them. Query returns rows newest first
// together with the number of rows matching the filter before pagination.
type ResultStore interface {
	Append(ctx context.Context, r *domain.ProbeResult) error
	Get(ctx context.Context, id int64) (*domain.ProbeResult, error)
	Latest(ctx context.Context) (*domain.ProbeResult, error)
	Query(ctx context.Context, f domain.Filter) ([]domain.ProbeResult, int, error)
	// Prune deletes rows with a timestamp strictly before olderThan.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

// PruneBatchSize bounds how many rows one delete statement removes, so a
// large prune hands the writer lock back to Append between batches.
const PruneBatchSize = 500
