package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"guestbook/internal/database"
	"guestbook/internal/models"
)

type SQLiteAdapter struct {
	DB *sql.DB
}

func NewSQLiteAdapter(db *sql.DB) *SQLiteAdapter {
	return &SQLiteAdapter{DB: db}
}

// Repos returns repositories running directly against the database
func (s *SQLiteAdapter) Repos() *Repos {
	return newRepos(s.DB)
}

// InTx runs fn with repositories bound to a single transaction
func (s *SQLiteAdapter) InTx(ctx context.Context, fn func(ctx context.Context, r *Repos) error) error {
	return database.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx database.DBTX) error {
		return fn(ctx, newRepos(tx))
	})
}

func newRepos(q database.DBTX) *Repos {
	return &Repos{
		Users:    sqliteUsers{q},
		Posts:    sqlitePosts{q},
		Comments: sqliteComments{q},
		Likes:    sqliteLikes{q},
		Sessions: sqliteSessions{q},
	}
}

// mapErr translates driver errors into repository errors
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case database.IsUniqueViolation(err):
		return errors.Join(ErrConflict, err)
	case database.IsForeignKeyViolation(err):
		return errors.Join(ErrMissingReference, err)
	}
	return err
}

func oneRow(n int64, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UserRepo
type sqliteUsers struct{ q database.DBTX }

func (r sqliteUsers) Create(ctx context.Context, username, handle, passwordHash string, createdAt time.Time) (int, error) {
	id, err := database.CreateUser(ctx, r.q, username, handle, passwordHash, createdAt)
	return id, mapErr(err)
}

func (r sqliteUsers) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, err := database.GetUserByID(ctx, r.q, id)
	return u, mapErr(err)
}

func (r sqliteUsers) GetByHandle(ctx context.Context, handle string) (*models.User, error) {
	u, err := database.GetUserByHandle(ctx, r.q, handle)
	return u, mapErr(err)
}

func (r sqliteUsers) HandleExists(ctx context.Context, handle string) (bool, error) {
	return database.HandleExists(ctx, r.q, handle)
}

func (r sqliteUsers) List(ctx context.Context) ([]models.User, error) {
	return database.ListUsers(ctx, r.q)
}

// PostRepo
type sqlitePosts struct{ q database.DBTX }

func (r sqlitePosts) Create(ctx context.Context, userID int, content, imagePath string, createdAt time.Time) (int, error) {
	id, err := database.CreatePost(ctx, r.q, userID, content, imagePath, createdAt)
	return id, mapErr(err)
}

func (r sqlitePosts) GetByID(ctx context.Context, id int) (*models.Post, error) {
	p, err := database.GetPostByID(ctx, r.q, id)
	return p, mapErr(err)
}

func (r sqlitePosts) List(ctx context.Context) ([]models.Post, error) {
	return database.GetAllPosts(ctx, r.q)
}

func (r sqlitePosts) UpdateContent(ctx context.Context, id int, content string) error {
	return oneRow(database.UpdatePostContent(ctx, r.q, id, content))
}

func (r sqlitePosts) Delete(ctx context.Context, id int) error {
	return oneRow(database.DeletePost(ctx, r.q, id))
}

func (r sqlitePosts) AdjustLikeCount(ctx context.Context, id int, delta int) (int, error) {
	n, err := database.AdjustLikeCount(ctx, r.q, id, delta)
	return n, mapErr(err)
}

// CommentRepo
type sqliteComments struct{ q database.DBTX }

func (r sqliteComments) Create(ctx context.Context, postID, userID int, text string, createdAt time.Time) (int, error) {
	id, err := database.CreateComment(ctx, r.q, postID, userID, text, createdAt)
	return id, mapErr(err)
}

func (r sqliteComments) GetByID(ctx context.Context, id int) (*models.Comment, error) {
	c, err := database.GetCommentByID(ctx, r.q, id)
	return c, mapErr(err)
}

func (r sqliteComments) List(ctx context.Context) ([]models.Comment, error) {
	return database.GetAllComments(ctx, r.q)
}

func (r sqliteComments) ListByPost(ctx context.Context, postID int) ([]models.Comment, error) {
	return database.GetCommentsByPostID(ctx, r.q, postID)
}

func (r sqliteComments) UpdateText(ctx context.Context, id int, text string) error {
	return oneRow(database.UpdateCommentText(ctx, r.q, id, text))
}

func (r sqliteComments) Delete(ctx context.Context, id int) error {
	return oneRow(database.DeleteComment(ctx, r.q, id))
}

func (r sqliteComments) DeleteByPost(ctx context.Context, postID int) (int64, error) {
	return database.DeleteCommentsByPostID(ctx, r.q, postID)
}

// LikeRepo
type sqliteLikes struct{ q database.DBTX }

func (r sqliteLikes) Get(ctx context.Context, userID, postID int) (*models.Like, error) {
	l, err := database.GetLike(ctx, r.q, userID, postID)
	return l, mapErr(err)
}

func (r sqliteLikes) Insert(ctx context.Context, userID, postID int, liked bool) (int, error) {
	id, err := database.InsertLike(ctx, r.q, userID, postID, liked)
	return id, mapErr(err)
}

func (r sqliteLikes) SetLiked(ctx context.Context, likeID int, liked bool) error {
	return database.SetLiked(ctx, r.q, likeID, liked)
}

func (r sqliteLikes) DeleteByPost(ctx context.Context, postID int) (int64, error) {
	return database.DeleteLikesByPostID(ctx, r.q, postID)
}

func (r sqliteLikes) CountActive(ctx context.Context, postID int) (int, error) {
	return database.CountActiveLikes(ctx, r.q, postID)
}

func (r sqliteLikes) LikedPostIDs(ctx context.Context, userID int) ([]int, error) {
	return database.GetLikedPostIDs(ctx, r.q, userID)
}

// SessionRepo
type sqliteSessions struct{ q database.DBTX }

func (r sqliteSessions) Create(ctx context.Context, id string, userID int, expiresAt, createdAt time.Time) error {
	return mapErr(database.CreateSession(ctx, r.q, id, userID, expiresAt, createdAt))
}

func (r sqliteSessions) Get(ctx context.Context, id string) (*models.Session, error) {
	s, err := database.GetSession(ctx, r.q, id)
	return s, mapErr(err)
}

func (r sqliteSessions) Delete(ctx context.Context, id string) error {
	return database.DeleteSession(ctx, r.q, id)
}

func (r sqliteSessions) DeleteByUser(ctx context.Context, userID int) (int64, error) {
	return database.DeleteSessionsByUserID(ctx, r.q, userID)
}

func (r sqliteSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return database.DeleteExpiredSessions(ctx, r.q, now)
}
