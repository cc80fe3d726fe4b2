package database

import (
	"context"
	"time"

	"guestbook/internal/models"
)

// CreateComment inserts a guestbook entry and returns its ID
func CreateComment(ctx context.Context, q DBTX, postID, userID int, text string, createdAt time.Time) (int, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO comments (post_id, user_id, text, created_at) VALUES (?, ?, ?, ?)`,
		postID, userID, text, createdAt.UTC(),
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

// GetCommentByID returns a single comment with its author name
func GetCommentByID(ctx context.Context, q DBTX, commentID int) (*models.Comment, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		JOIN users u ON c.user_id = u.id
		WHERE c.id = ?
	`, commentID)
	return scanComment(row)
}

// GetAllComments returns every comment, oldest first
func GetAllComments(ctx context.Context, q DBTX) ([]models.Comment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		JOIN users u ON c.user_id = u.id
		ORDER BY c.created_at ASC, c.id ASC
	`)
	if err != nil {
		return nil, err
	}
	return ScanComments(rows)
}

// GetCommentsByPostID returns the comments of one post, oldest first
func GetCommentsByPostID(ctx context.Context, q DBTX, postID int) ([]models.Comment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		JOIN users u ON c.user_id = u.id
		WHERE c.post_id = ?
		ORDER BY c.created_at ASC, c.id ASC
	`, postID)
	if err != nil {
		return nil, err
	}
	return ScanComments(rows)
}

// UpdateCommentText replaces the text and returns the number of rows changed
func UpdateCommentText(ctx context.Context, q DBTX, commentID int, text string) (int64, error) {
	res, err := q.ExecContext(ctx, "UPDATE comments SET text = ? WHERE id = ?", text, commentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteComment deletes one comment and returns the number of rows removed
func DeleteComment(ctx context.Context, q DBTX, commentID int) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", commentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteCommentsByPostID deletes all comments of a post
func DeleteCommentsByPostID(ctx context.Context, q DBTX, postID int) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM comments WHERE post_id = ?", postID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
