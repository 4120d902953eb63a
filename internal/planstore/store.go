package planstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cart-meal-planner/internal/planstore/plandb"
	"cart-meal-planner/internal/schedule"
)

var (
	ErrNotFound        = errors.New("week plan not found")
	ErrVersionMismatch = errors.New("week plan version mismatch")
	ErrExists          = errors.New("week plan already exists")
)

// Store persists week plans with a sliding TTL. Every write refreshes the
// expiry; reads treat an expired row as missing and delete it.
type Store struct {
	queries *plandb.Queries
	db      *sql.DB
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a Store over an existing database connection.
func NewStore(db *sql.DB, ttl time.Duration) *Store {
	return &Store{
		queries: plandb.New(db),
		db:      db,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Get loads the current version of a plan.
func (s *Store) Get(ctx context.Context, key string) (*schedule.WeekPlan, error) {
	row, err := s.queries.GetWeekPlan(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load week plan %s: %w", key, err)
	}

	if row.ExpiresAt <= s.now().UnixMilli() {
		// Opportunistic cleanup; a racing writer refreshing it wins.
		_ = s.deleteIfExpired(ctx, key, row.Version)
		return nil, ErrNotFound
	}
	return decode(row)
}

// Create stores a new plan. A live plan under the same key is only replaced
// when overwrite is set.
func (s *Store) Create(ctx context.Context, p *schedule.WeekPlan, overwrite bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := s.queries.WithTx(tx)
	existing, err := q.GetWeekPlan(ctx, p.Key)
	switch {
	case err == nil:
		if existing.ExpiresAt > s.now().UnixMilli() && !overwrite {
			return fmt.Errorf("%w: %s", ErrExists, p.Key)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check week plan %s: %w", p.Key, err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode week plan: %w", err)
	}
	now := s.now()
	if err := q.UpsertWeekPlan(ctx, plandb.UpsertWeekPlanParams{
		PlanKey:   p.Key,
		Owner:     p.Owner,
		WeekOf:    p.WeekOf.Format("2006-01-02"),
		Version:   p.Version,
		Data:      string(data),
		ExpiresAt: now.Add(s.ttl).UnixMilli(),
		UpdatedAt: now.UnixMilli(),
	}); err != nil {
		return fmt.Errorf("failed to store week plan %s: %w", p.Key, err)
	}
	return tx.Commit()
}

// CompareAndSwap replaces the stored plan only if it is still at prevVersion.
func (s *Store) CompareAndSwap(ctx context.Context, prevVersion int64, p *schedule.WeekPlan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode week plan: %w", err)
	}
	now := s.now()
	n, err := s.queries.CompareAndSwapWeekPlan(ctx, plandb.CompareAndSwapWeekPlanParams{
		Version:     p.Version,
		Data:        string(data),
		ExpiresAt:   now.Add(s.ttl).UnixMilli(),
		UpdatedAt:   now.UnixMilli(),
		PlanKey:     p.Key,
		PrevVersion: prevVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to update week plan %s: %w", p.Key, err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.queries.GetWeekPlan(ctx, p.Key); errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s expected version %d", ErrVersionMismatch, p.Key, prevVersion)
}

// Delete removes a plan regardless of its version.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.queries.DeleteWeekPlan(ctx, key)
}

// DeleteExpired removes every plan whose TTL has lapsed.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := s.queries.DeleteExpiredWeekPlans(ctx, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired week plans: %w", err)
	}
	return n, nil
}

// ListByOwner returns an owner's live plans, newest week first.
func (s *Store) ListByOwner(ctx context.Context, owner string) ([]*schedule.WeekPlan, error) {
	rows, err := s.queries.ListWeekPlansByOwner(ctx, plandb.ListWeekPlansByOwnerParams{
		Owner: owner,
		Now:   s.now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list week plans for %s: %w", owner, err)
	}
	plans := make([]*schedule.WeekPlan, 0, len(rows))
	for _, row := range rows {
		p, err := decode(row)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (s *Store) deleteIfExpired(ctx context.Context, key string, version int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM week_plans WHERE plan_key = ? AND version = ? AND expires_at <= ?`,
		key, version, s.now().UnixMilli())
	return err
}

func decode(row plandb.WeekPlan) (*schedule.WeekPlan, error) {
	var p schedule.WeekPlan
	if err := json.Unmarshal([]byte(row.Data), &p); err != nil {
		return nil, fmt.Errorf("failed to decode week plan %s: %w", row.PlanKey, err)
	}
	// The column is authoritative for the version.
	p.Version = row.Version
	return &p, nil
}
