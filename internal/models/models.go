package models

import "time"

// User represents a registered account
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Handle       string    `json:"userID"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Post represents a guestbook post
type Post struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	LikeCount int       `json:"like_count"`
	ImagePath string    `json:"image_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasImage reports whether an uploaded image is attached
func (p Post) HasImage() bool {
	return p.ImagePath != ""
}

// Comment represents a guestbook entry attached to a post
type Comment struct {
	ID        int       `json:"id"`
	PostID    int       `json:"post_id"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"book_text"`
	CreatedAt time.Time `json:"created_at"`
}

// Like is the per-user, per-post like toggle
type Like struct {
	ID     int  `json:"id"`
	UserID int  `json:"user_id"`
	PostID int  `json:"post_id"`
	Liked  bool `json:"liked"`
}

// Session represents a user session
type Session struct {
	ID        string    `json:"id"`
	UserID    int       `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
