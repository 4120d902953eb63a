package telegram

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sessiondb "cart-meal-planner/internal/telegram/sessiondb"
)

// Session is what a chat last looked at: the week and the plan version it
// was shown. Writes from the chat are checked against SeenVersion.
type Session struct {
	ChatID      int64
	Owner       string
	WeekOf      time.Time
	SeenVersion int64
	ExpiresAt   time.Time
}

// SessionRepository provides access to session persistence operations
type SessionRepository struct {
	queries *sessiondb.Queries
	ttl     time.Duration
	now     func() time.Time
}

func NewSessionRepository(db *sql.DB, ttl time.Duration) *SessionRepository {
	return &SessionRepository{
		queries: sessiondb.New(db),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetActive returns the chat's unexpired session, or nil when there is none.
func (sr *SessionRepository) GetActive(ctx context.Context, chatID int64) (*Session, error) {
	row, err := sr.queries.GetActiveSession(ctx, sessiondb.GetActiveSessionParams{
		ChatID:    chatID,
		ExpiresAt: sr.now().UnixMilli(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	weekOf, err := time.Parse("2006-01-02", row.WeekOf)
	if err != nil {
		return nil, err
	}
	return &Session{
		ChatID:      row.ChatID,
		Owner:       row.Owner,
		WeekOf:      weekOf,
		SeenVersion: row.SeenVersion,
		ExpiresAt:   time.UnixMilli(row.ExpiresAt).UTC(),
	}, nil
}

// Save stores the session and pushes its expiry forward.
func (sr *SessionRepository) Save(ctx context.Context, s *Session) error {
	now := sr.now()
	s.ExpiresAt = now.Add(sr.ttl).UTC()
	return sr.queries.UpsertSession(ctx, sessiondb.ChatSession{
		ChatID:      s.ChatID,
		Owner:       s.Owner,
		WeekOf:      s.WeekOf.Format("2006-01-02"),
		SeenVersion: s.SeenVersion,
		ExpiresAt:   s.ExpiresAt.UnixMilli(),
		UpdatedAt:   now.UnixMilli(),
	})
}

// Delete removes a session
func (sr *SessionRepository) Delete(ctx context.Context, chatID int64) error {
	return sr.queries.DeleteSession(ctx, chatID)
}

// CleanupExpired removes all expired sessions.
func (sr *SessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	return sr.queries.CleanupExpiredSessions(ctx, sr.now().UnixMilli())
}
