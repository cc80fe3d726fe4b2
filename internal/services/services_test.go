package services

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestbook/internal/database"
	"guestbook/internal/models"
	"guestbook/internal/repos"
	"guestbook/internal/uploads"
)

type fixture struct {
	store     *repos.SQLiteAdapter
	images    *uploads.LocalStorage
	creds     *CredentialStore
	content   *ContentStore
	uploadDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	db, err := database.InitDB(filepath.Join(dir, "guestbook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(context.Background(), db))

	uploadDir := filepath.Join(dir, "uploads")
	images, err := uploads.NewLocalStorage(uploadDir)
	require.NoError(t, err)

	store := repos.NewSQLiteAdapter(db)
	isAdmin := func(handle string) bool { return strings.EqualFold(handle, "admin") }
	return &fixture{
		store:     store,
		images:    images,
		creds:     NewCredentialStore(store),
		content:   NewContentStore(store, images, []string{"png", "jpg", "jpeg", "gif"}, isAdmin),
		uploadDir: uploadDir,
	}
}

func (f *fixture) user(t *testing.T, handle string) *models.User {
	t.Helper()
	u, err := f.creds.Register(context.Background(), handle+" name", handle, "pw123")
	require.NoError(t, err)
	return u
}

// countRows counts the rows of table that belong to a post
func (f *fixture) countRows(t *testing.T, table string, postID int) int {
	t.Helper()
	var n int
	require.NoError(t, f.store.DB.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE post_id = ?", postID).Scan(&n))
	return n
}

func (f *fixture) uploadedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.uploadDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRegisterAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.creds.Register(ctx, "Alice", "alice", "pw123")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.NotEqual(t, "pw123", u.PasswordHash)

	got, err := f.creds.Verify(ctx, "alice", "pw123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	byID, err := f.creds.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.Username)
}

func TestRegisterDuplicateHandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.creds.Register(ctx, "Alice", "alice", "pw123")
	require.NoError(t, err)

	for _, handle := range []string{"alice", "ALICE"} {
		_, err = f.creds.Register(ctx, "Someone else", handle, "other")
		assert.ErrorIs(t, err, ErrDuplicateHandle)
		assert.ErrorIs(t, err, ErrValidation)
	}

	users, err := f.creds.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		username string
		handle   string
		password string
	}{
		{"Empty username", "", "alice", "pw123"},
		{"Empty handle", "Alice", "", "pw123"},
		{"Empty password", "Alice", "alice", ""},
		{"Password over 72 bytes", "Alice", "alice", strings.Repeat("p", 73)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.creds.Register(context.Background(), tt.username, tt.handle, tt.password)
			require.ErrorIs(t, err, ErrValidation)
			assert.NotEqual(t, "Invalid input", UserMessage(err))
		})
	}
}

func TestVerifyFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "alice")

	_, wrongPassword := f.creds.Verify(ctx, "alice", "nope")
	_, unknownHandle := f.creds.Verify(ctx, "bob", "pw123")

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownHandle, ErrInvalidCredentials)
	assert.NotErrorIs(t, wrongPassword, ErrNotFound)
	assert.NotErrorIs(t, unknownHandle, ErrNotFound)
}

func TestCreatePostRejectsDisallowedImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	_, err := f.content.CreatePost(ctx, alice.ID, "look", &ImageUpload{
		Filename: "photo.exe",
		Content:  strings.NewReader("MZ"),
	})
	require.ErrorIs(t, err, ErrInvalidFileType)
	assert.ErrorIs(t, err, ErrValidation)

	posts, err := f.content.ListPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Empty(t, f.uploadedFiles(t))
}

func TestCreatePostStoresImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	post, err := f.content.CreatePost(ctx, alice.ID, "  look  ", &ImageUpload{
		Filename: "photo.PNG",
		Content:  strings.NewReader("PNGDATA"),
	})
	require.NoError(t, err)
	assert.Equal(t, "look", post.Content)
	assert.Equal(t, "alice name", post.Username)
	require.True(t, post.HasImage())
	assert.True(t, strings.HasSuffix(post.ImagePath, ".png"))

	files := f.uploadedFiles(t)
	require.Equal(t, []string{post.ImagePath}, files)
	data, err := os.ReadFile(filepath.Join(f.uploadDir, post.ImagePath))
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
}

func TestCreatePostRemovesImageWhenInsertFails(t *testing.T) {
	f := newFixture(t)

	// no such author: the insert fails on the foreign key
	_, err := f.content.CreatePost(context.Background(), 999, "orphan", &ImageUpload{
		Filename: "photo.png",
		Content:  strings.NewReader("PNGDATA"),
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.uploadedFiles(t))
}

func TestCreatePostRequiresContent(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.content.CreatePost(context.Background(), alice.ID, "   ", nil)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Content cannot be empty", UserMessage(err))
}

func TestEditPostOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	admin := f.user(t, "admin")

	post, err := f.content.CreatePost(ctx, alice.ID, "first", nil)
	require.NoError(t, err)

	_, err = f.content.EditPost(ctx, bob, post.ID, "hijacked")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.content.EditPost(ctx, alice, post.ID, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.content.EditPost(ctx, alice, 9999, "nothing")
	assert.ErrorIs(t, err, ErrNotFound)

	edited, err := f.content.EditPost(ctx, alice, post.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, "second", edited.Content)

	_, err = f.content.EditPost(ctx, admin, post.ID, "moderated")
	require.NoError(t, err)

	got, err := f.content.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "moderated", got.Content)
}

func TestDeletePostCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	post, err := f.content.CreatePost(ctx, alice.ID, "doomed", &ImageUpload{
		Filename: "photo.gif",
		Content:  strings.NewReader("GIF89a"),
	})
	require.NoError(t, err)
	other, err := f.content.CreatePost(ctx, alice.ID, "survivor", nil)
	require.NoError(t, err)

	_, err = f.content.CreateComment(ctx, bob.ID, post.ID, "nice")
	require.NoError(t, err)
	_, err = f.content.CreateComment(ctx, bob.ID, other.ID, "also nice")
	require.NoError(t, err)
	_, err = f.content.ToggleLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.content.DeletePost(ctx, bob, post.ID), ErrForbidden)

	require.NoError(t, f.content.DeletePost(ctx, alice, post.ID))

	_, err = f.content.GetPost(ctx, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, f.countRows(t, "comments", post.ID))
	assert.Zero(t, f.countRows(t, "likes", post.ID))
	assert.Empty(t, f.uploadedFiles(t))

	grouped, err := f.content.ListComments(ctx)
	require.NoError(t, err)
	assert.Len(t, grouped[other.ID], 1)

	assert.ErrorIs(t, f.content.DeletePost(ctx, alice, post.ID), ErrNotFound)
}

func TestToggleLikeParity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	post, err := f.content.CreatePost(ctx, alice.ID, "likeable", nil)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		count, err := f.content.ToggleLike(ctx, alice.ID, post.ID)
		require.NoError(t, err)
		if i%2 == 1 {
			assert.Equal(t, 1, count, "after %d toggles", i)
		} else {
			assert.Equal(t, 0, count, "after %d toggles", i)
		}
	}

	_, err = f.content.ToggleLike(ctx, alice.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLikeCountMatchesActiveLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var users []*models.User
	for _, h := range []string{"u1", "u2", "u3", "u4"} {
		users = append(users, f.user(t, h))
	}
	var posts []*models.Post
	for i := 0; i < 3; i++ {
		p, err := f.content.CreatePost(ctx, users[0].ID, "post", nil)
		require.NoError(t, err)
		posts = append(posts, p)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 60; i++ {
		u := users[rng.Intn(len(users))]
		p := posts[rng.Intn(len(posts))]
		_, err := f.content.ToggleLike(ctx, u.ID, p.ID)
		require.NoError(t, err)
	}

	r := f.store.Repos()
	for _, p := range posts {
		got, err := f.content.GetPost(ctx, p.ID)
		require.NoError(t, err)
		active, err := r.Likes.CountActive(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, active, got.LikeCount, "post %d", p.ID)
		assert.GreaterOrEqual(t, got.LikeCount, 0)
	}

	liked, err := f.content.LikedPostIDs(ctx, users[1].ID)
	require.NoError(t, err)
	for _, p := range posts {
		like, err := r.Likes.Get(ctx, users[1].ID, p.ID)
		if err != nil {
			assert.False(t, liked[p.ID])
			continue
		}
		assert.Equal(t, like.Liked, liked[p.ID])
	}
}

func TestCommentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	post, err := f.content.CreatePost(ctx, alice.ID, "hello", nil)
	require.NoError(t, err)

	_, err = f.content.CreateComment(ctx, bob.ID, 9999, "lost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.content.CreateComment(ctx, bob.ID, post.ID, strings.Repeat("x", 1001))
	assert.ErrorIs(t, err, ErrValidation)

	empty, err := f.content.CreateComment(ctx, bob.ID, post.ID, "")
	require.NoError(t, err)
	assert.Empty(t, empty.Text)

	c, err := f.content.CreateComment(ctx, bob.ID, post.ID, "first!")
	require.NoError(t, err)

	want := models.Comment{ID: c.ID, PostID: post.ID, UserID: bob.ID, Username: "bob name", Text: "first!"}
	if diff := cmp.Diff(want, *c, cmpopts.IgnoreFields(models.Comment{}, "CreatedAt")); diff != "" {
		t.Errorf("CreateComment() mismatch (-want +got):\n%s", diff)
	}

	_, err = f.content.EditComment(ctx, alice, c.ID, "edited by alice")
	assert.ErrorIs(t, err, ErrForbidden)

	edited, err := f.content.EditComment(ctx, bob, c.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Text)

	_, err = f.content.DeleteComment(ctx, alice, c.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	deleted, err := f.content.DeleteComment(ctx, bob, c.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, deleted.PostID)

	_, err = f.content.DeleteComment(ctx, bob, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	grouped, err := f.content.ListComments(ctx)
	require.NoError(t, err)
	require.Len(t, grouped[post.ID], 1)
	assert.Equal(t, empty.ID, grouped[post.ID][0].ID)
}

func TestListPostsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	var ids []int
	for _, content := range []string{"one", "two", "three"} {
		p, err := f.content.CreatePost(ctx, alice.ID, content, nil)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	posts, err := f.content.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []int{ids[2], ids[1], ids[0]}, []int{posts[0].ID, posts[1].ID, posts[2].ID})
}

func TestCanceledContextIsUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.content.ListPosts(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = f.content.ToggleLike(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDeletePostLeavesEverythingWhenPostDeleteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	post, err := f.content.CreatePost(ctx, alice.ID, "sticky", &ImageUpload{
		Filename: "photo.png",
		Content:  strings.NewReader("PNGDATA"),
	})
	require.NoError(t, err)
	_, err = f.content.CreateComment(ctx, bob.ID, post.ID, "entry")
	require.NoError(t, err)
	_, err = f.content.ToggleLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)

	// entries and likes go first, then the post row refuses to go
	_, err = f.store.DB.Exec(`CREATE TRIGGER refuse_post_delete BEFORE DELETE ON posts
		BEGIN SELECT RAISE(ABORT, 'post delete refused'); END`)
	require.NoError(t, err)

	err = f.content.DeletePost(ctx, alice, post.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "post delete refused")

	got, err := f.content.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikeCount)
	assert.Equal(t, 1, f.countRows(t, "comments", post.ID))
	assert.Equal(t, 1, f.countRows(t, "likes", post.ID))
	assert.Len(t, f.uploadedFiles(t), 1)
}

func TestConcurrentTogglesKeepLikeCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var users []*models.User
	for _, h := range []string{"u1", "u2", "u3", "u4", "u5", "u6"} {
		users = append(users, f.user(t, h))
	}
	var posts []*models.Post
	for i := 0; i < 2; i++ {
		p, err := f.content.CreatePost(ctx, users[0].ID, "contested", nil)
		require.NoError(t, err)
		posts = append(posts, p)
	}

	// toggles[u][p] counts the toggles each goroutine made
	toggles := make([][]int, len(users))
	var wg sync.WaitGroup
	for ui, u := range users {
		toggles[ui] = make([]int, len(posts))
		wg.Add(1)
		go func(ui int, u *models.User) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(ui + 1)))
			for i := 0; i < 25; i++ {
				pi := rng.Intn(len(posts))
				_, err := f.content.ToggleLike(ctx, u.ID, posts[pi].ID)
				if assert.NoError(t, err) {
					toggles[ui][pi]++
				}
			}
		}(ui, u)
	}
	wg.Wait()

	r := f.store.Repos()
	for pi, p := range posts {
		want := 0
		for ui := range users {
			want += toggles[ui][pi] % 2
		}

		got, err := f.content.GetPost(ctx, p.ID)
		require.NoError(t, err)
		active, err := r.Likes.CountActive(ctx, p.ID)
		require.NoError(t, err)

		assert.Equal(t, want, got.LikeCount, "post %d", p.ID)
		assert.Equal(t, active, got.LikeCount, "post %d", p.ID)
		assert.LessOrEqual(t, f.countRows(t, "likes", p.ID), len(users))
	}
}

func TestToggleLikeRepairsDriftedCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	post, err := f.content.CreatePost(ctx, alice.ID, "drifting", nil)
	require.NoError(t, err)

	_, err = f.content.ToggleLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	_, err = f.store.DB.Exec("UPDATE posts SET like_count = 7 WHERE id = ?", post.ID)
	require.NoError(t, err)

	count, err := f.content.ToggleLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := f.content.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.LikeCount)
}

// reloadFailingStore breaks the post lookup inside transactions
type reloadFailingStore struct{ repos.Store }

type reloadFailingPosts struct{ repos.PostRepo }

func (reloadFailingPosts) GetByID(context.Context, int) (*models.Post, error) {
	return nil, errors.New("reload failed")
}

func (s reloadFailingStore) InTx(ctx context.Context, fn func(ctx context.Context, r *repos.Repos) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, r *repos.Repos) error {
		broken := *r
		broken.Posts = reloadFailingPosts{r.Posts}
		return fn(ctx, &broken)
	})
}

func TestCreatePostLeavesNothingWhenReloadFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	content := NewContentStore(reloadFailingStore{f.store}, f.images, []string{"png"}, nil)
	_, err := content.CreatePost(ctx, alice.ID, "half written", &ImageUpload{
		Filename: "photo.png",
		Content:  strings.NewReader("PNGDATA"),
	})
	require.Error(t, err)

	posts, err := f.content.ListPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Empty(t, f.uploadedFiles(t))
}

func TestPostWithEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	post, err := f.content.CreatePost(ctx, alice.ID, "sign me", nil)
	require.NoError(t, err)
	for _, text := range []string{"first", "second"} {
		_, err := f.content.CreateComment(ctx, bob.ID, post.ID, text)
		require.NoError(t, err)
	}

	got, entries, err := f.content.PostWithEntries(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Text)
	assert.Equal(t, "second", entries[1].Text)
	assert.Equal(t, "bob name", entries[0].Username)

	_, _, err = f.content.PostWithEntries(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
