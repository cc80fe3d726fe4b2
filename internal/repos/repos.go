package repos

import (
	"context"
	"errors"
	"time"

	"guestbook/internal/models"
)

// ErrNotFound is returned when a lookup or a single-row write matches nothing
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write violates a uniqueness constraint
var ErrConflict = errors.New("record already exists")

// ErrMissingReference is returned when a write points at a row that does not exist
var ErrMissingReference = errors.New("referenced record does not exist")

// UserRepo defines methods to access users
type UserRepo interface {
	Create(ctx context.Context, username, handle, passwordHash string, createdAt time.Time) (int, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByHandle(ctx context.Context, handle string) (*models.User, error)
	HandleExists(ctx context.Context, handle string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
}

// PostRepo defines methods to access posts
type PostRepo interface {
	Create(ctx context.Context, userID int, content, imagePath string, createdAt time.Time) (int, error)
	GetByID(ctx context.Context, id int) (*models.Post, error)
	List(ctx context.Context) ([]models.Post, error)
	UpdateContent(ctx context.Context, id int, content string) error
	Delete(ctx context.Context, id int) error
	AdjustLikeCount(ctx context.Context, id int, delta int) (int, error)
}

// CommentRepo defines methods to access guestbook entries
type CommentRepo interface {
	Create(ctx context.Context, postID, userID int, text string, createdAt time.Time) (int, error)
	GetByID(ctx context.Context, id int) (*models.Comment, error)
	List(ctx context.Context) ([]models.Comment, error)
	ListByPost(ctx context.Context, postID int) ([]models.Comment, error)
	UpdateText(ctx context.Context, id int, text string) error
	Delete(ctx context.Context, id int) error
	DeleteByPost(ctx context.Context, postID int) (int64, error)
}

// LikeRepo defines methods to access like toggles
type LikeRepo interface {
	Get(ctx context.Context, userID, postID int) (*models.Like, error)
	Insert(ctx context.Context, userID, postID int, liked bool) (int, error)
	SetLiked(ctx context.Context, likeID int, liked bool) error
	DeleteByPost(ctx context.Context, postID int) (int64, error)
	CountActive(ctx context.Context, postID int) (int, error)
	LikedPostIDs(ctx context.Context, userID int) ([]int, error)
}

// SessionRepo defines methods to access login sessions
type SessionRepo interface {
	Create(ctx context.Context, id string, userID int, expiresAt, createdAt time.Time) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID int) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Repos groups repository interfaces for convenience
type Repos struct {
	Users    UserRepo
	Posts    PostRepo
	Comments CommentRepo
	Likes    LikeRepo
	Sessions SessionRepo
}

// Store hands out repositories bound either to the database or to one transaction
type Store interface {
	Repos() *Repos
	InTx(ctx context.Context, fn func(ctx context.Context, r *Repos) error) error
}
