package database

import (
	"context"
	"time"

	"guestbook/internal/models"
)

const userColumns = `id, username, handle, password_hash, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Handle, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user and returns its ID
func CreateUser(ctx context.Context, q DBTX, username, handle, passwordHash string, createdAt time.Time) (int, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO users (username, handle, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, handle, passwordHash, createdAt.UTC(),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(id), nil
}

// GetUserByHandle retrieves a user by login handle, case-insensitively
func GetUserByHandle(ctx context.Context, q DBTX, handle string) (*models.User, error) {
	row := q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE handle = ? COLLATE NOCASE", handle)
	return scanUser(row)
}

// GetUserByID retrieves a user by ID
func GetUserByID(ctx context.Context, q DBTX, userID int) (*models.User, error) {
	row := q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", userID)
	return scanUser(row)
}

// HandleExists reports whether the login handle is taken
func HandleExists(ctx context.Context, q DBTX, handle string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE handle = ? COLLATE NOCASE",
		handle,
	).Scan(&count)
	return count > 0, err
}

// ListUsers returns all users ordered by username
func ListUsers(ctx context.Context, q DBTX) ([]models.User, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY username COLLATE NOCASE ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
