package database

import (
	"database/sql"

	"guestbook/internal/models"
)

const postColumns = `p.id, p.user_id, u.username, p.content, p.like_count, p.image_path, p.created_at`

const commentColumns = `c.id, c.post_id, c.user_id, u.username, c.text, c.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	if err := row.Scan(&p.ID, &p.UserID, &p.Username, &p.Content, &p.LikeCount, &p.ImagePath, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ScanPosts scans rows selected with postColumns into []models.Post
func ScanPosts(rows *sql.Rows) ([]models.Post, error) {
	defer rows.Close()
	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	if err := row.Scan(&c.ID, &c.PostID, &c.UserID, &c.Username, &c.Text, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ScanComments scans rows selected with commentColumns into []models.Comment
func ScanComments(rows *sql.Rows) ([]models.Comment, error) {
	defer rows.Close()
	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}
