package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, RunMigrations(context.Background(), db))
	return db
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, RunMigrations(context.Background(), db))

	for _, table := range []string{"users", "posts", "comments", "likes", "sessions"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
}

func TestUsersHandleIsCaseInsensitiveUnique(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	id, err := CreateUser(ctx, db, "alice", "alice1", "hash", time.Now())
	require.NoError(t, err)

	_, err = CreateUser(ctx, db, "other", "ALICE1", "hash", time.Now())
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	u, err := GetUserByHandle(ctx, db, "Alice1")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "alice1", u.Handle)

	exists, err := HandleExists(ctx, db, "aLiCe1")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = GetUserByHandle(ctx, db, "nobody")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestGetAllPostsNewestFirst(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	uid, err := CreateUser(ctx, db, "alice", "alice1", "hash", time.Now())
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	older, err := CreatePost(ctx, db, uid, "older", "", base)
	require.NoError(t, err)
	newer, err := CreatePost(ctx, db, uid, "newer", "", base.Add(1500*time.Millisecond))
	require.NoError(t, err)
	sameTime, err := CreatePost(ctx, db, uid, "same time as older", "", base)
	require.NoError(t, err)

	posts, err := GetAllPosts(ctx, db)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []int{newer, sameTime, older}, []int{posts[0].ID, posts[1].ID, posts[2].ID})
	assert.Equal(t, "alice", posts[0].Username)
	assert.True(t, posts[2].CreatedAt.Equal(base))
}

func TestForeignKeysAreEnforced(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	uid, err := CreateUser(ctx, db, "alice", "alice1", "hash", time.Now())
	require.NoError(t, err)
	pid, err := CreatePost(ctx, db, uid, "hello", "", time.Now())
	require.NoError(t, err)
	_, err = CreateComment(ctx, db, pid, uid, "hi", time.Now())
	require.NoError(t, err)

	_, err = DeletePost(ctx, db, pid)
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))

	_, err = CreateComment(ctx, db, 9999, uid, "orphan", time.Now())
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := CreateUser(ctx, tx, "bob", "bob1", "hash", time.Now()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := HandleExists(ctx, db, "bob1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWithTxRethrowsPanics(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.Panics(t, func() {
		_ = WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
			if _, err := CreateUser(ctx, tx, "carol", "carol1", "hash", time.Now()); err != nil {
				return err
			}
			panic("unexpected")
		})
	})

	exists, err := HandleExists(ctx, db, "carol1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionsExpire(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	uid, err := CreateUser(ctx, db, "alice", "alice1", "hash", time.Now())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, CreateSession(ctx, db, "old", uid, now.Add(-time.Minute), now.Add(-time.Hour)))
	require.NoError(t, CreateSession(ctx, db, "fresh", uid, now.Add(time.Hour), now))

	removed, err := DeleteExpiredSessions(ctx, db, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	s, err := GetSession(ctx, db, "fresh")
	require.NoError(t, err)
	assert.Equal(t, uid, s.UserID)

	_, err = GetSession(ctx, db, "old")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
