package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"guestbook/internal/middleware"
	"guestbook/internal/models"
)

// JSON bodies of the edit endpoints are tiny
const maxJSONBody = 64 << 10

type postSummary struct {
	ID        int    `json:"id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// GET /posts
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.content.ListPosts(r.Context())
	if err != nil {
		writeError(w, r, err, "Post")
		return
	}

	out := make([]postSummary, 0, len(posts))
	for _, p := range posts {
		out = append(out, postSummary{
			ID:        p.ID,
			Content:   p.Content,
			Timestamp: p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /posts/{postId} returns the post with its guestbook entries
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "postId")
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Post not found")
		return
	}

	post, entries, err := h.content.PostWithEntries(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Post")
		return
	}
	if entries == nil {
		entries = []models.Comment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": post, "entries": entries})
}

// GET /users/{userId} returns the public profile of a user
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userId")
	if !ok {
		writeJSONError(w, http.StatusNotFound, "User not found")
		return
	}

	user, err := h.creds.UserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// PATCH /posts/edit/{postId}
func (h *Handler) EditPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "postId")
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Post not found")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	post, err := h.content.EditPost(r.Context(), middleware.UserFromContext(r.Context()), id, req.Content)
	if err != nil {
		writeError(w, r, err, "Post")
		return
	}

	h.hub.Broadcast(postEvent(EventPostUpdated, post))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Post updated"})
}

// DELETE /posts/delete/{postId}
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "postId")
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Post not found")
		return
	}

	if err := h.content.DeletePost(r.Context(), middleware.UserFromContext(r.Context()), id); err != nil {
		writeError(w, r, err, "Post")
		return
	}

	h.hub.Broadcast(Event{Type: EventPostDeleted, PostID: id})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Post deleted"})
}

// PATCH /book/edit/{bookId}
func (h *Handler) EditBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "bookId")
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Entry not found")
		return
	}

	var req struct {
		Text string `json:"book_text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	comment, err := h.content.EditComment(r.Context(), middleware.UserFromContext(r.Context()), id, req.Text)
	if err != nil {
		writeError(w, r, err, "Entry")
		return
	}

	h.hub.Broadcast(commentEvent(EventCommentUpdated, comment))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Entry updated"})
}

// DELETE /book/delete/{bookId}
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "bookId")
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Entry not found")
		return
	}

	comment, err := h.content.DeleteComment(r.Context(), middleware.UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err, "Entry")
		return
	}

	h.hub.Broadcast(Event{Type: EventCommentDeleted, CommentID: comment.ID, PostID: comment.PostID})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Entry deleted"})
}

// POST /addLike/{postId}
func (h *Handler) AddLike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "postId")
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Post not found")
		return
	}

	user := middleware.UserFromContext(r.Context())
	count, err := h.content.ToggleLike(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, err, "Post")
		return
	}

	if h.metrics != nil {
		h.metrics.LikeToggled()
	}
	h.hub.Broadcast(likeEvent(id, count))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "current_likes": count})
}

// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
