package database

import (
	"context"
	"time"

	"guestbook/internal/models"
)

// CreateSession inserts a session row
func CreateSession(ctx context.Context, q DBTX, sessionID string, userID int, expiresAt, createdAt time.Time) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		sessionID, userID, expiresAt.UTC(), createdAt.UTC(),
	)
	return err
}

// GetSession returns a session by ID
func GetSession(ctx context.Context, q DBTX, sessionID string) (*models.Session, error) {
	var s models.Session
	err := q.QueryRowContext(ctx,
		"SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?",
		sessionID,
	).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession removes a single session
func DeleteSession(ctx context.Context, q DBTX, sessionID string) error {
	_, err := q.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	return err
}

// DeleteSessionsByUserID deletes all sessions for a given user and returns number of rows removed
func DeleteSessionsByUserID(ctx context.Context, q DBTX, userID int) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredSessions removes sessions that expired before now
func DeleteExpiredSessions(ctx context.Context, q DBTX, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
