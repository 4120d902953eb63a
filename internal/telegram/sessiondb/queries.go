package sessiondb

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// ChatSession is a stored row. Times are unix milliseconds.
type ChatSession struct {
	ChatID      int64
	Owner       string
	WeekOf      string
	SeenVersion int64
	ExpiresAt   int64
	UpdatedAt   int64
}

const getActiveSession = `-- name: GetActiveSession :one
SELECT chat_id, owner, week_of, seen_version, expires_at, updated_at
FROM chat_sessions
WHERE chat_id = ? AND expires_at > ?
`

type GetActiveSessionParams struct {
	ChatID    int64
	ExpiresAt int64
}

func (q *Queries) GetActiveSession(ctx context.Context, arg GetActiveSessionParams) (ChatSession, error) {
	row := q.db.QueryRowContext(ctx, getActiveSession, arg.ChatID, arg.ExpiresAt)
	var i ChatSession
	err := row.Scan(
		&i.ChatID,
		&i.Owner,
		&i.WeekOf,
		&i.SeenVersion,
		&i.ExpiresAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertSession = `-- name: UpsertSession :exec
INSERT INTO chat_sessions (chat_id, owner, week_of, seen_version, expires_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (chat_id) DO UPDATE SET
    owner = excluded.owner,
    week_of = excluded.week_of,
    seen_version = excluded.seen_version,
    expires_at = excluded.expires_at,
    updated_at = excluded.updated_at
`

func (q *Queries) UpsertSession(ctx context.Context, arg ChatSession) error {
	_, err := q.db.ExecContext(ctx, upsertSession,
		arg.ChatID,
		arg.Owner,
		arg.WeekOf,
		arg.SeenVersion,
		arg.ExpiresAt,
		arg.UpdatedAt,
	)
	return err
}

const deleteSession = `-- name: DeleteSession :exec
DELETE FROM chat_sessions WHERE chat_id = ?
`

func (q *Queries) DeleteSession(ctx context.Context, chatID int64) error {
	_, err := q.db.ExecContext(ctx, deleteSession, chatID)
	return err
}

const cleanupExpiredSessions = `-- name: CleanupExpiredSessions :execrows
DELETE FROM chat_sessions WHERE expires_at <= ?
`

func (q *Queries) CleanupExpiredSessions(ctx context.Context, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, cleanupExpiredSessions, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
