package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"guestbook/internal/models"
	"guestbook/internal/repos"
	"guestbook/internal/uploads"
	"guestbook/internal/utils"
)

// ImageUpload is an image attached to a new post
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

// ContentStore owns posts, guestbook entries and likes
type ContentStore struct {
	store      repos.Store
	images     uploads.Storage
	allowedExt []string
	isAdmin    func(handle string) bool
	now        func() time.Time
}

// NewContentStore wires the store. isAdmin may be nil when there are no admins.
func NewContentStore(store repos.Store, images uploads.Storage, allowedExt []string, isAdmin func(handle string) bool) *ContentStore {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &ContentStore{
		store:      store,
		images:     images,
		allowedExt: allowedExt,
		isAdmin:    isAdmin,
		now:        time.Now,
	}
}

// authorize allows the author and admins
func (s *ContentStore) authorize(actor *models.User, authorID int) error {
	if actor == nil {
		return ErrForbidden
	}
	if actor.ID == authorID || s.isAdmin(actor.Handle) {
		return nil
	}
	return ErrForbidden
}

// ---- Posts ----

// CreatePost stores the image (if any) and then inserts the post.
// A rejected file type leaves neither a row nor a file behind.
func (s *ContentStore) CreatePost(ctx context.Context, authorID int, content string, img *ImageUpload) (*models.Post, error) {
	content, msg := utils.ValidatePostContent(content)
	if msg != "" {
		return nil, fmt.Errorf("create post: %w", invalid(msg))
	}

	var ext string
	if img != nil && img.Filename != "" {
		var ok bool
		if ext, ok = utils.ImageExtension(img.Filename, s.allowedExt); !ok {
			return nil, fmt.Errorf("create post with %q: %w", img.Filename, ErrInvalidFileType)
		}
	}

	var imagePath string
	if ext != "" {
		path, err := s.images.Save(ctx, uploads.NewName(ext), img.Content)
		if err != nil {
			return nil, storeErr(ctx, "save image", err)
		}
		imagePath = path
	}

	// insert and reload commit together
	var post *models.Post
	err := s.store.InTx(ctx, func(ctx context.Context, r *repos.Repos) error {
		id, err := r.Posts.Create(ctx, authorID, content, imagePath, s.now().UTC())
		if err != nil {
			return err
		}
		post, err = r.Posts.GetByID(ctx, id)
		return err
	})
	if err != nil {
		s.removeImage(ctx, imagePath)
		return nil, storeErr(ctx, "create post", err)
	}

	zerolog.Ctx(ctx).Info().Int("post_id", post.ID).Int("user_id", authorID).Bool("image", imagePath != "").Msg("Post created")
	return post, nil
}

// removeImage is best-effort; failures are logged
func (s *ContentStore) removeImage(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.images.Delete(context.WithoutCancel(ctx), path); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("image", path).Msg("Failed to remove image")
	}
}

func (s *ContentStore) GetPost(ctx context.Context, id int) (*models.Post, error) {
	post, err := s.store.Repos().Posts.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(ctx, fmt.Sprintf("get post %d", id), err)
	}
	return post, nil
}

// PostWithEntries returns a post and its guestbook entries, oldest entry first
func (s *ContentStore) PostWithEntries(ctx context.Context, id int) (*models.Post, []models.Comment, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.store.Repos().Comments.ListByPost(ctx, id)
	if err != nil {
		return nil, nil, storeErr(ctx, fmt.Sprintf("list entries of post %d", id), err)
	}
	return post, entries, nil
}

// ListPosts returns posts newest first; posts created in the same instant
// are ordered by descending id.
func (s *ContentStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts, err := s.store.Repos().Posts.List(ctx)
	if err != nil {
		return nil, storeErr(ctx, "list posts", err)
	}
	return posts, nil
}

func (s *ContentStore) EditPost(ctx context.Context, actor *models.User, id int, content string) (*models.Post, error) {
	content, msg := utils.ValidatePostContent(content)
	if msg != "" {
		return nil, fmt.Errorf("edit post %d: %w", id, invalid(msg))
	}

	var post *models.Post
	err := s.store.InTx(ctx, func(ctx context.Context, r *repos.Repos) error {
		var err error
		if post, err = r.Posts.GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.authorize(actor, post.UserID); err != nil {
			return err
		}
		if err := r.Posts.UpdateContent(ctx, id, content); err != nil {
			return err
		}
		post.Content = content
		return nil
	})
	if errors.Is(err, ErrForbidden) {
		return nil, fmt.Errorf("edit post %d: %w", id, err)
	}
	if err != nil {
		return nil, storeErr(ctx, fmt.Sprintf("edit post %d", id), err)
	}
	return post, nil
}

// DeletePost removes the post with its entries and likes in one transaction.
// The image file is removed after commit.
func (s *ContentStore) DeletePost(ctx context.Context, actor *models.User, id int) error {
	var imagePath string
	err := s.store.InTx(ctx, func(ctx context.Context, r *repos.Repos) error {
		post, err := r.Posts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, post.UserID); err != nil {
			return err
		}
		if _, err := r.Comments.DeleteByPost(ctx, id); err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}
		if _, err := r.Likes.DeleteByPost(ctx, id); err != nil {
			return fmt.Errorf("delete likes: %w", err)
		}
		if err := r.Posts.Delete(ctx, id); err != nil {
			return err
		}
		imagePath = post.ImagePath
		return nil
	})
	if errors.Is(err, ErrForbidden) {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	if err != nil {
		return storeErr(ctx, fmt.Sprintf("delete post %d", id), err)
	}

	s.removeImage(ctx, imagePath)
	zerolog.Ctx(ctx).Info().Int("post_id", id).Int("actor_id", actor.ID).Msg("Post deleted")
	return nil
}

// ---- Guestbook entries ----

func (s *ContentStore) CreateComment(ctx context.Context, authorID, postID int, text string) (*models.Comment, error) {
	text, msg := utils.ValidateCommentText(text)
	if msg != "" {
		return nil, fmt.Errorf("create entry: %w", invalid(msg))
	}

	var comment *models.Comment
	err := s.store.InTx(ctx, func(ctx context.Context, r *repos.Repos) error {
		if _, err := r.Posts.GetByID(ctx, postID); err != nil {
			return err
		}
		id, err := r.Comments.Create(ctx, postID, authorID, text, s.now().UTC())
		if err != nil {
			return err
		}
		comment, err = r.Comments.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, storeErr(ctx, fmt.Sprintf("create entry on post %d", postID), err)
	}
	return comment, nil
}

func (s *ContentStore) EditComment(ctx context.Context, actor *models.User, id int, text string) (*models.Comment, error) {
	text, msg := utils.ValidateCommentText(text)
	if msg != "" {
		return nil, fmt.Errorf("edit entry %d: %w", id, invalid(msg))
	}

	var comment *models.Comment
	err := s.store.InTx(ctx, func(ctx context.Context, r *repos.Repos) error {
		var err error
		if comment, err = r.Comments.GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.authorize(actor, comment.UserID); err != nil {
			return err
		}
		if err := r.Comments.UpdateText(ctx, id, text); err != nil {
			return err
		}
		comment.Text = text
		return nil
	})
	if errors.Is(err, ErrForbidden) {
		return nil, fmt.Errorf("edit entry %d: %w", id, err)
	}
	if err != nil {
		return nil, storeErr(ctx, fmt.Sprintf("edit entry %d", id), err)
	}
	return comment, nil
}

// DeleteComment removes an entry and returns it as it was
func (s *ContentStore) DeleteComment(ctx context.Context, actor *models.User, id int) (*models.Comment, error) {
	var comment *models.Comment
	err := s.store.InTx(ctx, func(ctx context.Context, r *repos.Repos) error {
		var err error
		if comment, err = r.Comments.GetByID(ctx, id); err != nil {
			return err
		}
		if err := s.authorize(actor, comment.UserID); err != nil {
			return err
		}
		return r.Comments.Delete(ctx, id)
	})
	if errors.Is(err, ErrForbidden) {
		return nil, fmt.Errorf("delete entry %d: %w", id, err)
	}
	if err != nil {
		return nil, storeErr(ctx, fmt.Sprintf("delete entry %d", id), err)
	}
	return comment, nil
}

// ListComments returns entries grouped by post id, oldest first within a post
func (s *ContentStore) ListComments(ctx context.Context) (map[int][]models.Comment, error) {
	comments, err := s.store.Repos().Comments.List(ctx)
	if err != nil {
		return nil, storeErr(ctx, "list entries", err)
	}

	byPost := make(map[int][]models.Comment)
	for _, c := range comments {
		byPost[c.PostID] = append(byPost[c.PostID], c)
	}
	return byPost, nil
}

// ---- Likes ----

// ToggleLike flips the user's like on a post and returns the new like count.
// The lookup, the flip and the counter update share one transaction.
func (s *ContentStore) ToggleLike(ctx context.Context, userID, postID int) (int, error) {
	var count int
	err := s.store.InTx(ctx, func(ctx context.Context, r *repos.Repos) error {
		if _, err := r.Posts.GetByID(ctx, postID); err != nil {
			return err
		}

		delta := 1
		like, err := r.Likes.Get(ctx, userID, postID)
		switch {
		case errors.Is(err, repos.ErrNotFound):
			if _, err := r.Likes.Insert(ctx, userID, postID, true); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if like.Liked {
				delta = -1
			}
			if err := r.Likes.SetLiked(ctx, like.ID, !like.Liked); err != nil {
				return err
			}
		}

		if count, err = r.Posts.AdjustLikeCount(ctx, postID, delta); err != nil {
			return err
		}

		active, err := r.Likes.CountActive(ctx, postID)
		if err != nil {
			return err
		}
		if active != count {
			zerolog.Ctx(ctx).Warn().Int("post_id", postID).Int("like_count", count).Int("active", active).Msg("Repairing like count")
			count, err = r.Posts.AdjustLikeCount(ctx, postID, active-count)
		}
		return err
	})
	if err != nil {
		return 0, storeErr(ctx, fmt.Sprintf("toggle like on post %d", postID), err)
	}
	return count, nil
}

// LikedPostIDs returns the set of posts the user currently likes
func (s *ContentStore) LikedPostIDs(ctx context.Context, userID int) (map[int]bool, error) {
	ids, err := s.store.Repos().Likes.LikedPostIDs(ctx, userID)
	if err != nil {
		return nil, storeErr(ctx, "liked posts", err)
	}

	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
