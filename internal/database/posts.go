package database

import (
	"context"
	"time"

	"guestbook/internal/models"
)

// CreatePost inserts a post and returns its ID
func CreatePost(ctx context.Context, q DBTX, userID int, content, imagePath string, createdAt time.Time) (int, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO posts (user_id, content, like_count, image_path, created_at) VALUES (?, ?, 0, ?, ?)`,
		userID, content, imagePath, createdAt.UTC(),
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

// GetPostByID retrieves a post with its author name
func GetPostByID(ctx context.Context, q DBTX, postID int) (*models.Post, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN users u ON p.user_id = u.id
		WHERE p.id = ?
	`, postID)
	return scanPost(row)
}

// GetAllPosts returns every post, newest first
func GetAllPosts(ctx context.Context, q DBTX) ([]models.Post, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN users u ON p.user_id = u.id
		ORDER BY p.created_at DESC, p.id DESC
	`)
	if err != nil {
		return nil, err
	}
	return ScanPosts(rows)
}

// UpdatePostContent replaces the content and returns the number of rows changed
func UpdatePostContent(ctx context.Context, q DBTX, postID int, content string) (int64, error) {
	res, err := q.ExecContext(ctx, "UPDATE posts SET content = ? WHERE id = ?", content, postID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeletePost deletes the post row only; callers remove dependents first
func DeletePost(ctx context.Context, q DBTX, postID int) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", postID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AdjustLikeCount adds delta to the denormalized like counter and returns the new value
func AdjustLikeCount(ctx context.Context, q DBTX, postID int, delta int) (int, error) {
	if _, err := q.ExecContext(ctx,
		"UPDATE posts SET like_count = like_count + ? WHERE id = ?",
		delta, postID,
	); err != nil {
		return 0, err
	}

	var count int
	err := q.QueryRowContext(ctx, "SELECT like_count FROM posts WHERE id = ?", postID).Scan(&count)
	return count, err
}
