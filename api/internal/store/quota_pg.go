package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"tradepost-ocr/api/internal/quota"
)

const quotaSchema = `
create table if not exists quota_daily (
  identity text    not null,
  day      text    not null,
  count    integer not null,
  primary key (identity, day)
)`

// PostgresQuota is a daily quota shared by every instance pointing at the same database.
type PostgresQuota struct {
	*Repo
	limit int
	now   func() time.Time

	mu        sync.Mutex
	prunedDay string
}

func NewPostgresQuota(db *sql.DB, limit int, now func() time.Time) *PostgresQuota {
	if now == nil {
		now = time.Now
	}
	return &PostgresQuota{Repo: NewRepo(db), limit: limit, now: now}
}

// Migrate creates the counter table if it is missing.
func (r *PostgresQuota) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, quotaSchema); err != nil {
		return fmt.Errorf("create quota_daily: %w", err)
	}
	return nil
}

// Take increments the counter only while it is below the limit; a missing
// RETURNING row means the limit was already reached.
func (r *PostgresQuota) Take(ctx context.Context, identity string) (quota.Decision, error) {
	now := r.now()
	day := quota.DayKey(now)
	reset := quota.NextDay(now)

	if err := r.pruneBefore(ctx, day); err != nil {
		return quota.Decision{}, err
	}

	sqlStr, args, err := r.takeQuery(identity, day)
	if err != nil {
		return quota.Decision{}, err
	}
	var n int
	err = r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return quota.Decision{Allowed: false, Limit: r.limit, Remaining: 0, ResetAt: reset, RetryAfter: reset.Sub(now)}, nil
	}
	if err != nil {
		return quota.Decision{}, fmt.Errorf("quota take: %w", err)
	}
	return quota.Decision{Allowed: true, Limit: r.limit, Remaining: r.limit - n, ResetAt: reset, RetryAfter: reset.Sub(now)}, nil
}

func (r *PostgresQuota) takeQuery(identity, day string) (string, []any, error) {
	return r.SQ.
		Insert("quota_daily").
		Columns("identity", "day", "count").
		Values(identity, day, 1).
		Suffix("ON CONFLICT (identity, day) DO UPDATE SET count = quota_daily.count + 1 WHERE quota_daily.count < ? RETURNING count", r.limit).
		ToSql()
}

func (r *PostgresQuota) pruneQuery(day string) (string, []any, error) {
	return r.SQ.Delete("quota_daily").Where(sq.Lt{"day": day}).ToSql()
}

// pruneBefore drops counters of earlier days once per day change.
func (r *PostgresQuota) pruneBefore(ctx context.Context, day string) error {
	r.mu.Lock()
	if r.prunedDay == day {
		r.mu.Unlock()
		return nil
	}
	r.prunedDay = day
	r.mu.Unlock()

	sqlStr, args, err := r.pruneQuery(day)
	if err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("quota prune: %w", err)
	}
	return nil
}
