package plandb

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// WeekPlan is a stored row. Times are unix milliseconds.
type WeekPlan struct {
	PlanKey   string
	Owner     string
	WeekOf    string
	Version   int64
	Data      string
	ExpiresAt int64
	UpdatedAt int64
}

const getWeekPlan = `-- name: GetWeekPlan :one
SELECT plan_key, owner, week_of, version, data, expires_at, updated_at
FROM week_plans
WHERE plan_key = ?
`

func (q *Queries) GetWeekPlan(ctx context.Context, planKey string) (WeekPlan, error) {
	row := q.db.QueryRowContext(ctx, getWeekPlan, planKey)
	var i WeekPlan
	err := row.Scan(
		&i.PlanKey,
		&i.Owner,
		&i.WeekOf,
		&i.Version,
		&i.Data,
		&i.ExpiresAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertWeekPlan = `-- name: UpsertWeekPlan :exec
INSERT INTO week_plans (plan_key, owner, week_of, version, data, expires_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (plan_key) DO UPDATE SET
    owner = excluded.owner,
    week_of = excluded.week_of,
    version = excluded.version,
    data = excluded.data,
    expires_at = excluded.expires_at,
    updated_at = excluded.updated_at
`

type UpsertWeekPlanParams struct {
	PlanKey   string
	Owner     string
	WeekOf    string
	Version   int64
	Data      string
	ExpiresAt int64
	UpdatedAt int64
}

func (q *Queries) UpsertWeekPlan(ctx context.Context, arg UpsertWeekPlanParams) error {
	_, err := q.db.ExecContext(ctx, upsertWeekPlan,
		arg.PlanKey,
		arg.Owner,
		arg.WeekOf,
		arg.Version,
		arg.Data,
		arg.ExpiresAt,
		arg.UpdatedAt,
	)
	return err
}

const compareAndSwapWeekPlan = `-- name: CompareAndSwapWeekPlan :execrows
UPDATE week_plans
SET version = ?, data = ?, expires_at = ?, updated_at = ?
WHERE plan_key = ? AND version = ?
`

type CompareAndSwapWeekPlanParams struct {
	Version     int64
	Data        string
	ExpiresAt   int64
	UpdatedAt   int64
	PlanKey     string
	PrevVersion int64
}

func (q *Queries) CompareAndSwapWeekPlan(ctx context.Context, arg CompareAndSwapWeekPlanParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, compareAndSwapWeekPlan,
		arg.Version,
		arg.Data,
		arg.ExpiresAt,
		arg.UpdatedAt,
		arg.PlanKey,
		arg.PrevVersion,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteWeekPlan = `-- name: DeleteWeekPlan :exec
DELETE FROM week_plans WHERE plan_key = ?
`

func (q *Queries) DeleteWeekPlan(ctx context.Context, planKey string) error {
	_, err := q.db.ExecContext(ctx, deleteWeekPlan, planKey)
	return err
}

const deleteExpiredWeekPlans = `-- name: DeleteExpiredWeekPlans :execrows
DELETE FROM week_plans WHERE expires_at <= ?
`

func (q *Queries) DeleteExpiredWeekPlans(ctx context.Context, now int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpiredWeekPlans, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listWeekPlansByOwner = `-- name: ListWeekPlansByOwner :many
SELECT plan_key, owner, week_of, version, data, expires_at, updated_at
FROM week_plans
WHERE owner = ? AND expires_at > ?
ORDER BY week_of DESC
`

type ListWeekPlansByOwnerParams struct {
	Owner string
	Now   int64
}

func (q *Queries) ListWeekPlansByOwner(ctx context.Context, arg ListWeekPlansByOwnerParams) ([]WeekPlan, error) {
	rows, err := q.db.QueryContext(ctx, listWeekPlansByOwner, arg.Owner, arg.Now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WeekPlan
	for rows.Next() {
		var i WeekPlan
		if err := rows.Scan(
			&i.PlanKey,
			&i.Owner,
			&i.WeekOf,
			&i.Version,
			&i.Data,
			&i.ExpiresAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
