package database

import (
	"context"

	"guestbook/internal/models"
)

// GetLike returns the like row for a (user, post) pair
func GetLike(ctx context.Context, q DBTX, userID, postID int) (*models.Like, error) {
	var l models.Like
	err := q.QueryRowContext(ctx,
		"SELECT id, user_id, post_id, liked FROM likes WHERE user_id = ? AND post_id = ?",
		userID, postID,
	).Scan(&l.ID, &l.UserID, &l.PostID, &l.Liked)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertLike creates a like row
func InsertLike(ctx context.Context, q DBTX, userID, postID int, liked bool) (int, error) {
	res, err := q.ExecContext(ctx,
		"INSERT INTO likes (user_id, post_id, liked) VALUES (?, ?, ?)",
		userID, postID, liked,
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

// SetLiked updates the toggle state of an existing like row
func SetLiked(ctx context.Context, q DBTX, likeID int, liked bool) error {
	_, err := q.ExecContext(ctx, "UPDATE likes SET liked = ? WHERE id = ?", liked, likeID)
	return err
}

// DeleteLikesByPostID deletes all likes of a post
func DeleteLikesByPostID(ctx context.Context, q DBTX, postID int) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM likes WHERE post_id = ?", postID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountActiveLikes counts like rows with liked = true for a post
func CountActiveLikes(ctx context.Context, q DBTX, postID int) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM likes WHERE post_id = ? AND liked = 1",
		postID,
	).Scan(&count)
	return count, err
}

// GetLikedPostIDs returns the posts the user currently likes
func GetLikedPostIDs(ctx context.Context, q DBTX, userID int) ([]int, error) {
	rows, err := q.QueryContext(ctx, "SELECT post_id FROM likes WHERE user_id = ? AND liked = 1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
